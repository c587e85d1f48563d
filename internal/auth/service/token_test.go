package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
)

func newTokenService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(
		[]byte("test-signing-key-test-signing-key"),
		"storefront-auth",
		[]string{"storefront-api"},
		time.Hour,
	)
	require.NoError(t, err)
	return svc
}

func testIdentity() domain.Identity {
	return domain.Identity{
		ID:          42,
		ExternalID:  "ext-42",
		Email:       "alice@example.com",
		DisplayName: "Alice",
	}
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()
	svc := newTokenService(t)
	now := time.Now().UTC()

	raw, err := svc.Issue(testIdentity(), "session-0001", now)
	require.NoError(t, err)

	claims, err := svc.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, "ext-42", claims.ExternalID)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, "session-0001", claims.SID)
	require.Equal(t, "42", claims.Subject)
	require.NotEmpty(t, claims.ID) // jti
}

func TestTokenVerifyDistinguishesFailures(t *testing.T) {
	t.Parallel()
	svc := newTokenService(t)
	now := time.Now().UTC()

	t.Run("expired", func(t *testing.T) {
		raw, err := svc.Issue(testIdentity(), "session-0001", now.Add(-2*time.Hour))
		require.NoError(t, err)

		_, err = svc.Verify(raw)
		require.ErrorIs(t, err, domain.ErrTokenExpired)
	})

	t.Run("tampered", func(t *testing.T) {
		raw, err := svc.Issue(testIdentity(), "session-0001", now)
		require.NoError(t, err)

		parts := strings.Split(raw, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

		_, err = svc.Verify(tampered)
		require.ErrorIs(t, err, domain.ErrTokenMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Verify("not.a.token")
		require.ErrorIs(t, err, domain.ErrTokenMalformed)
	})

	t.Run("short session id", func(t *testing.T) {
		raw, err := svc.Issue(testIdentity(), "sid", now)
		require.NoError(t, err)

		_, err = svc.Verify(raw)
		require.ErrorIs(t, err, domain.ErrTokenInvalidPayload)
	})

	t.Run("other issuer", func(t *testing.T) {
		other, err := NewTokenService(
			[]byte("test-signing-key-test-signing-key"),
			"someone-else",
			[]string{"storefront-api"},
			time.Hour,
		)
		require.NoError(t, err)

		raw, err := other.Issue(testIdentity(), "session-0001", now)
		require.NoError(t, err)

		_, err = svc.Verify(raw)
		require.ErrorIs(t, err, domain.ErrTokenMalformed)
	})
}

func TestTokenDecodeWithoutVerification(t *testing.T) {
	t.Parallel()
	svc := newTokenService(t)

	raw, err := svc.Issue(testIdentity(), "session-0001", time.Now().UTC().Add(-48*time.Hour))
	require.NoError(t, err)

	// Decode reads an expired token fine; it makes no access decision.
	claims, err := svc.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)

	_, err = svc.Decode("garbage")
	require.ErrorIs(t, err, domain.ErrTokenMalformed)
}
