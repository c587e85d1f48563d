package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// MinSigningKeyBytes is the smallest secret accepted as-is for HMAC
	// signing. Shorter configured secrets are stretched, never rejected.
	MinSigningKeyBytes = 32

	// SigningKeyBytes is the size of generated and stretched signing keys.
	SigningKeyBytes = 64
)

// stretchInfo domain-separates the HKDF expansion from any other use of the
// same input secret.
var stretchInfo = []byte("storefront-auth/token-signing-key/v1")

// NewSigningKey generates a random signing key of SigningKeyBytes. Used when
// no secret is configured; tokens signed with it will not verify after a
// process restart.
func NewSigningKey() ([]byte, error) {
	key := make([]byte, SigningKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return key, nil
}

// StretchKey derives a SigningKeyBytes key from a configured secret using
// HKDF-SHA256. Secrets already at or above MinSigningKeyBytes are returned
// unchanged so operator-provided key material stays verifiable elsewhere.
func StretchKey(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("cannot stretch an empty secret")
	}
	if len(secret) >= MinSigningKeyBytes {
		return secret, nil
	}

	out := make([]byte, SigningKeyBytes)
	r := hkdf.New(sha256.New, secret, nil, stretchInfo)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("failed to stretch signing key: %w", err)
	}
	return out, nil
}
