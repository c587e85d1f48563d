package auth_test

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

type enrollResult struct {
	Secret      string   `json:"secret"`
	OTPAuthURI  string   `json:"otpauth_uri"`
	QRCodePNG   string   `json:"qr_code_png"`
	BackupCodes []string `json:"backup_codes"`
}

func TestMFAJourney(t *testing.T) {
	e := startEnv(t)
	session := e.login(t, "")

	// Enroll: secret, provisioning URI, scannable QR, backup codes.
	var setup enrollResult
	resp := e.do(t, http.MethodPost, "/v1/auth/mfa/totp/enroll", session.AccessToken, nil, &setup)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, setup.Secret)
	require.Contains(t, setup.OTPAuthURI, "otpauth://totp/")
	require.Len(t, setup.BackupCodes, 8)

	png, err := base64.StdEncoding.DecodeString(setup.QRCodePNG)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	// Enrollment is pending until the first code proves possession, so
	// logins stay single-factor for now.
	relogin := e.login(t, "")
	require.NotEmpty(t, relogin.AccessToken)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	resp = e.do(t, http.MethodPost, "/v1/auth/mfa/totp/verify", session.AccessToken,
		map[string]string{"code": code}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Now a bare password is no longer enough.
	var errBody struct {
		Error string `json:"error"`
	}
	resp = e.do(t, http.MethodPost, "/v1/auth/login", "",
		map[string]string{"email": testEmail, "password": testPassword}, &errBody)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "mfa_required", errBody.Error)

	code, err = totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	withTOTP := e.login(t, code)
	require.NotEmpty(t, withTOTP.AccessToken)

	// A backup code is not a second factor; it is refused at login.
	resp = e.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": testEmail, "password": testPassword, "mfa_code": setup.BackupCodes[0],
	}, &errBody)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "mfa_invalid_code", errBody.Error)

	// Disabling demands a fresh code; then plain logins work again.
	code, err = totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	resp = e.do(t, http.MethodDelete, "/v1/auth/mfa/totp", withTOTP.AccessToken,
		map[string]string{"code": code}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	plain := e.login(t, "")
	require.NotEmpty(t, plain.AccessToken)
}
