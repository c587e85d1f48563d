package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
)

const (
	testUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	testIP = "198.51.100.7"
)

func newSessionService(t *testing.T) *SessionService {
	t.Helper()
	return NewSessionService(newTestStore(t), nil, 0, slog.Default())
}

func TestDeviceFingerprint(t *testing.T) {
	t.Parallel()

	a := DeviceFingerprint(testUA, testIP)
	require.Len(t, a, fingerprintLength)
	require.Equal(t, a, DeviceFingerprint(testUA, testIP))
	require.NotEqual(t, a, DeviceFingerprint(testUA, "198.51.100.8"))
	require.NotEqual(t, a, DeviceFingerprint("curl/8.0", testIP))
}

func TestCreateOrReuseDedupsPerDevice(t *testing.T) {
	ctx := context.Background()
	svc := newSessionService(t)
	ident := seedIdentity(t, svc.Store, "alice@example.com")
	now := time.Now().UTC()

	first, reused, err := svc.CreateOrReuse(ctx, ident.ID, testUA, testIP, now)
	require.NoError(t, err)
	require.False(t, reused)
	require.NotEmpty(t, first.SessionToken)
	require.Equal(t, "Chrome", first.Browser)
	require.Equal(t, "macOS", first.OS)

	// Same device logs in again: same row, same token, expiry slid forward.
	later := now.Add(time.Hour)
	second, reused, err := svc.CreateOrReuse(ctx, ident.ID, testUA, testIP, later)
	require.NoError(t, err)
	require.True(t, reused)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.SessionToken, second.SessionToken)
	require.True(t, second.ExpiresAt.After(first.ExpiresAt))

	// Different device gets its own session.
	third, reused, err := svc.CreateOrReuse(ctx, ident.ID, "curl/8.0", testIP, later)
	require.NoError(t, err)
	require.False(t, reused)
	require.NotEqual(t, first.ID, third.ID)

	sessions, err := svc.ListActiveByUser(ctx, ident.ID, later)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
}

func TestCreateOrReuseAfterRevocationMakesNewSession(t *testing.T) {
	ctx := context.Background()
	svc := newSessionService(t)
	ident := seedIdentity(t, svc.Store, "bob@example.com")
	now := time.Now().UTC()

	first, _, err := svc.CreateOrReuse(ctx, ident.ID, testUA, testIP, now)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, first.ID, now))

	// Revocation is final: the old row stays revoked and a new login from
	// the same device starts fresh.
	second, reused, err := svc.CreateOrReuse(ctx, ident.ID, testUA, testIP, now.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, reused)
	require.NotEqual(t, first.ID, second.ID)
	require.NotEqual(t, first.SessionToken, second.SessionToken)

	old, err := svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, old.Revoked)
}

func TestGetByTokenHidesDefunctSessions(t *testing.T) {
	ctx := context.Background()
	svc := newSessionService(t)
	ident := seedIdentity(t, svc.Store, "carol@example.com")
	now := time.Now().UTC()

	sess, _, err := svc.CreateOrReuse(ctx, ident.ID, testUA, testIP, now)
	require.NoError(t, err)

	got, err := svc.GetByToken(ctx, sess.SessionToken, now)
	require.NoError(t, err)
	require.Equal(t, sess.ID, got.ID)

	t.Run("expired", func(t *testing.T) {
		_, err := svc.GetByToken(ctx, sess.SessionToken, now.Add(svc.TTL+time.Minute))
		require.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, svc.Revoke(ctx, sess.ID, now))
		_, err := svc.GetByToken(ctx, sess.SessionToken, now)
		require.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := svc.GetByToken(ctx, "no-such-token", now)
		require.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}

func TestTouchActivitySlidesExpiry(t *testing.T) {
	ctx := context.Background()
	svc := newSessionService(t)
	ident := seedIdentity(t, svc.Store, "dave@example.com")
	now := time.Now().UTC()

	sess, _, err := svc.CreateOrReuse(ctx, ident.ID, testUA, testIP, now)
	require.NoError(t, err)

	later := now.Add(2 * time.Hour)
	require.NoError(t, svc.TouchActivity(ctx, sess.ID, later))

	got, err := svc.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	require.WithinDuration(t, later.Add(svc.TTL), got.ExpiresAt, time.Second)
	require.WithinDuration(t, later, got.LastActivityAt, time.Second)
}

func TestRevokeAllExceptKeepsCurrentDevice(t *testing.T) {
	ctx := context.Background()
	svc := newSessionService(t)
	ident := seedIdentity(t, svc.Store, "erin@example.com")
	now := time.Now().UTC()

	phone, _, err := svc.CreateOrReuse(ctx, ident.ID, "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)", testIP, now)
	require.NoError(t, err)
	laptop, _, err := svc.CreateOrReuse(ctx, ident.ID, testUA, testIP, now)
	require.NoError(t, err)
	tablet, _, err := svc.CreateOrReuse(ctx, ident.ID, "Mozilla/5.0 (iPad; CPU OS 17_0)", testIP, now)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAllExcept(ctx, ident.ID, laptop.SessionToken, now))

	sessions, err := svc.ListActiveByUser(ctx, ident.ID, now)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, laptop.ID, sessions[0].ID)

	for _, id := range []string{phone.ID, tablet.ID} {
		got, err := svc.GetByID(ctx, id)
		require.NoError(t, err)
		require.True(t, got.Revoked)
	}
}

func TestCleanupExpiredDeletesDefunctRows(t *testing.T) {
	ctx := context.Background()
	svc := newSessionService(t)
	ident := seedIdentity(t, svc.Store, "frank@example.com")
	now := time.Now().UTC()

	live, _, err := svc.CreateOrReuse(ctx, ident.ID, testUA, testIP, now)
	require.NoError(t, err)
	dead, _, err := svc.CreateOrReuse(ctx, ident.ID, "curl/8.0", testIP, now)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, dead.ID, now))

	deleted, err := svc.CleanupExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	_, err = svc.GetByID(ctx, dead.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.GetByID(ctx, live.ID)
	require.NoError(t, err)
}
