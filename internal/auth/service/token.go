package service

import (
	"errors"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/pkg/jwtx"
)

// TokenService issues and verifies the signed access tokens that ride in the
// Authorization header. Tokens are stateless on their own; the auth gate
// still resolves the embedded session id against the store, so revocation
// wins even while a token is cryptographically valid.
type TokenService struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Issuer   string
	Audience []string
	TTL      time.Duration
}

// NewTokenService wires a signer/verifier pair over a shared HS256 key.
func NewTokenService(key []byte, issuer string, audience []string, ttl time.Duration) (*TokenService, error) {
	signer, err := jwtx.NewSignerHS256(key)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}
	return &TokenService{
		Signer: signer,
		Verifier: jwtx.NewVerifierHS256(key, jwtx.VerifyOptions{
			Issuer:   issuer,
			Audience: audience,
			Leeway:   30 * time.Second,
		}),
		Issuer:   issuer,
		Audience: audience,
		TTL:      ttl,
	}, nil
}

// Issue signs an access token binding the identity to a session.
func (s *TokenService) Issue(ident domain.Identity, sessionID string, now time.Time) (string, error) {
	claims := jwtx.NewAccessClaims(
		ident.ID,
		ident.ExternalID,
		ident.Email,
		ident.DisplayName,
		sessionID,
		s.TTL,
		s.Issuer,
		s.Audience,
		now,
	)
	return s.Signer.Sign(claims)
}

// Verify validates signature, registered claims, and payload shape, and maps
// verification failures onto the domain taxonomy. Expiry is reported as its
// own error so callers can tell "come back with a fresh token" from "this
// was never a token of ours".
func (s *TokenService) Verify(raw string) (jwtx.Claims, error) {
	claims, err := s.Verifier.Verify(raw)
	if err != nil {
		switch {
		case errors.Is(err, jwtx.ErrExpired):
			return jwtx.Claims{}, domain.ErrTokenExpired
		case errors.Is(err, jwtx.ErrInvalidClaim):
			return jwtx.Claims{}, domain.ErrTokenInvalidPayload
		default:
			return jwtx.Claims{}, domain.ErrTokenMalformed
		}
	}
	return claims, nil
}

// Decode extracts claims without verifying the signature. Diagnostics only;
// nothing downstream of Decode may make an access decision.
func (s *TokenService) Decode(raw string) (jwtx.Claims, error) {
	claims, err := jwtx.Decode(raw)
	if err != nil {
		return jwtx.Claims{}, domain.ErrTokenMalformed
	}
	return claims, nil
}
