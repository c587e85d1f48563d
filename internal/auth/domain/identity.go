package domain

import "time"

// Identity is the local mirror of a user known to the external identity
// provider. The provider owns credentials; we own the MFA enrollment state
// and the numeric local id everything else keys on.
type Identity struct {
	ID          int64
	ExternalID  string // durable id issued by the identity provider
	Email       string
	DisplayName string
	MFAEnabled  *time.Time // timestamp when MFA was enabled (nullable)
	MFASecret   *string    // TOTP secret (nullable, base32 encoded)
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MFAActive reports whether MFA is enrolled AND enabled for this identity.
func (i Identity) MFAActive() bool {
	return i.MFAEnabled != nil && i.MFASecret != nil && *i.MFASecret != ""
}
