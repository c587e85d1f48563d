package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/internal/auth/store"
	"github.com/luminara-labs/storefront-auth/pkg/cryptox"
)

const (
	backupCodeLength = 8 // upper-case alphanumerics, read out loud over the phone

	// qrCodeSize is the pixel edge of the rendered enrollment QR image.
	qrCodeSize = 256

	// totpSkewSteps accepts codes from the adjacent 30s windows, so a code
	// typed just as it rolls over still works.
	totpSkewSteps = 1
)

// MFAService manages TOTP enrollment and verification. Enrollment is
// two-phase: the secret is stored immediately but MFA only counts as enabled
// once the user proves possession with a valid code.
type MFAService struct {
	Store  store.Store
	Issuer string // shown in authenticator apps next to the account
}

// EnrollTOTP generates a fresh secret for the identity and returns the
// enrollment material: secret, otpauth URI, a scannable QR PNG, and the
// one-time-visible backup codes.
func (s *MFAService) EnrollTOTP(ctx context.Context, identityID int64) (domain.MFASetup, error) {
	ident, err := s.Store.Identities().GetIdentityByID(ctx, identityID)
	if err != nil {
		return domain.MFASetup{}, fmt.Errorf("load identity: %w", err)
	}
	if ident.MFAActive() {
		return domain.MFASetup{}, domain.ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: ident.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFASetup{}, fmt.Errorf("generate totp key: %w", err)
	}

	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return domain.MFASetup{}, fmt.Errorf("render qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.MFASetup{}, fmt.Errorf("encode qr: %w", err)
	}

	codes := make([]string, domain.BackupCodeCount)
	for i := range codes {
		code, err := cryptox.GenerateCode(backupCodeLength)
		if err != nil {
			return domain.MFASetup{}, fmt.Errorf("generate backup code: %w", err)
		}
		codes[i] = code
	}

	// Secret and hashed backup codes land together; a crash between the two
	// would otherwise leave an enrollment that can never be recovered.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Identities().UpdateMFASecret(ctx, identityID, key.Secret()); err != nil {
			return fmt.Errorf("store secret: %w", err)
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, identityID); err != nil {
			return fmt.Errorf("clear old backup codes: %w", err)
		}
		for _, code := range codes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, identityID, cryptox.FingerprintToken(code)); err != nil {
				return fmt.Errorf("store backup code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.MFASetup{}, err
	}

	return domain.MFASetup{
		Secret:      key.Secret(),
		OTPAuthURI:  key.URL(),
		QRCodePNG:   buf.Bytes(),
		BackupCodes: codes,
	}, nil
}

// ConfirmTOTP enables MFA once the user submits a valid code against the
// stored (but not yet enabled) secret.
func (s *MFAService) ConfirmTOTP(ctx context.Context, identityID int64, code string, now time.Time) error {
	ident, err := s.Store.Identities().GetIdentityByID(ctx, identityID)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	if ident.MFAActive() {
		return domain.ErrMFAAlreadyEnabled
	}
	if ident.MFASecret == nil || *ident.MFASecret == "" {
		return domain.ErrMFANotEnabled
	}

	ok, err := validateTOTP(code, *ident.MFASecret, now)
	if err != nil || !ok {
		return domain.ErrMFAInvalidCode
	}

	return s.Store.Identities().EnableMFA(ctx, identityID)
}

// VerifyCode checks a six-digit TOTP code against an enabled enrollment.
// Backup codes are issued and stored but are not an accepted second factor
// here; they exist for a future out-of-band recovery path.
func (s *MFAService) VerifyCode(ctx context.Context, ident domain.Identity, code string, now time.Time) error {
	if !ident.MFAActive() {
		return domain.ErrMFANotEnabled
	}

	if IsSixDigit(code) {
		ok, err := validateTOTP(code, *ident.MFASecret, now)
		if err == nil && ok {
			return nil
		}
	}

	return domain.ErrMFAInvalidCode
}

// Disable turns MFA off and wipes the secret and all backup codes. The
// caller must have already re-verified a code.
func (s *MFAService) Disable(ctx context.Context, identityID int64) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, identityID); err != nil {
			return fmt.Errorf("delete backup codes: %w", err)
		}
		if err := tx.Identities().DisableMFA(ctx, identityID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.ErrMFANotEnabled
			}
			return fmt.Errorf("disable mfa: %w", err)
		}
		return nil
	})
}

// IsSixDigit reports whether code looks like a TOTP code rather than a
// backup code.
func IsSixDigit(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validateTOTP(code, secret string, now time.Time) (bool, error) {
	return totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      totpSkewSteps,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
