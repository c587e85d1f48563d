package domain

// BackupCodeCount is how many recovery codes accompany an MFA enrollment.
const BackupCodeCount = 8

// MFASetup is returned from enrollment start. The secret is stored but MFA
// is not enabled until the user proves possession with a valid code.
type MFASetup struct {
	Secret      string   `json:"secret"`       // base32 TOTP secret
	OTPAuthURI  string   `json:"otpauth_uri"`  // otpauth:// enrollment URI
	QRCodePNG   []byte   `json:"qr_code_png"`  // rendered scannable image
	BackupCodes []string `json:"backup_codes"` // shown once, stored hashed
}
