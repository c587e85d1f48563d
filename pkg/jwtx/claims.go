package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the default lifetime for access tokens. The
// session window slides with activity, so the token matches the session TTL
// rather than a short-lived OAuth2-style expiry.
const DefaultAccessTokenTTL = 30 * 24 * time.Hour

// MinSessionIDLength is the minimum length of the "sid" claim. Anything
// shorter cannot be a real session identifier and the token is rejected as
// semantically incomplete.
const MinSessionIDLength = 10

// Claims are access-token claims asserted across the storefront services.
// We keep changes additive to preserve compatibility.
type Claims struct {
	jwt.RegisteredClaims

	/* Cross-service custom fields */

	// UserID is the numeric local user id.
	UserID int64 `json:"uid,omitempty"`

	// ExternalID is the durable id issued by the identity provider.
	ExternalID string `json:"ext,omitempty"`

	// Email of the authenticated user.
	Email string `json:"email,omitempty"`

	// DisplayName is the display name for the user.
	DisplayName string `json:"name,omitempty"`

	// SID is the session ID the token is bound to. Access decisions always
	// resolve the session row; a token with no live session is worthless.
	SID string `json:"sid,omitempty"`
}

// NewAccessClaims builds minimally-correct claims.
func NewAccessClaims(
	userID int64,
	externalID, email, displayName, sid string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		UserID:      userID,
		ExternalID:  externalID,
		Email:       email,
		DisplayName: displayName,
		SID:         sid,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before
// nbf, with leeway absorbing clock skew between services.
func (c *Claims) ValidateExpiry(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Add(leeway).Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}

// ValidatePayload asserts presence and shape of every claim access decisions
// depend on. A syntactically valid but semantically incomplete token must be
// rejected, so this runs on every Verify.
func (c *Claims) ValidatePayload() error {
	if c.UserID <= 0 {
		return ErrInvalidClaim
	}
	if len(c.SID) < MinSessionIDLength {
		return ErrInvalidClaim
	}
	return nil
}
