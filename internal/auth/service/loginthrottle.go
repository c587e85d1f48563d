package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/internal/auth/store"
	"github.com/luminara-labs/storefront-auth/pkg/idx"
	"github.com/luminara-labs/storefront-auth/pkg/slogx"
)

const (
	// DefaultLockThreshold is how many failures inside the window trip a lock.
	DefaultLockThreshold = 3

	// DefaultFailureWindow is the rolling window failures are counted over.
	DefaultFailureWindow = 15 * time.Minute

	// DefaultLockDuration is how long a tripped lock holds.
	DefaultLockDuration = 15 * time.Minute

	// attemptRetention is how far back per-identity attempt rows are kept
	// after a successful login clears the slate.
	attemptRetention = time.Hour
)

// LoginThrottle rate-limits login attempts per identity. Every attempt is
// recorded, success or failure; repeated failures inside the window lock the
// identity out for a fixed period. Locks expire on their own: an expired
// lock row reads as unlocked without waiting for housekeeping.
type LoginThrottle struct {
	Store         store.Store
	LockThreshold int
	FailureWindow time.Duration
	LockDuration  time.Duration
}

// NewLoginThrottle applies the default policy for any zero-valued knob.
func NewLoginThrottle(st store.Store) *LoginThrottle {
	return &LoginThrottle{
		Store:         st,
		LockThreshold: DefaultLockThreshold,
		FailureWindow: DefaultFailureWindow,
		LockDuration:  DefaultLockDuration,
	}
}

// RecordAttempt appends to the attempt log. The identity is recorded as
// given whether or not a matching account exists; enumeration resistance
// depends on treating both the same.
func (t *LoginThrottle) RecordAttempt(ctx context.Context, identity string, success bool, ip, userAgent string, now time.Time) error {
	return t.Store.LoginAttempts().InsertLoginAttempt(ctx, domain.LoginAttempt{
		ID:        idx.New().String(),
		Identity:  identity,
		Success:   success,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now,
	})
}

// IsLocked reports whether the identity is currently locked out. A lock
// whose release time has passed counts as absent. Store failures report
// unlocked: a degraded throttle must not take logins down with it.
func (t *LoginThrottle) IsLocked(ctx context.Context, identity string, now time.Time) (domain.LockState, error) {
	lock, err := t.Store.LoginLocks().GetLoginLock(ctx, identity)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slogx.FromContext(ctx).Warn("lock check degraded, allowing", slog.Any("error", err))
		}
		return domain.LockState{}, nil
	}
	if !now.Before(lock.LockedUntil) {
		return domain.LockState{}, nil
	}
	return domain.LockState{Locked: true, Until: lock.LockedUntil}, nil
}

// HandleFailure records a failed attempt and, if the failure count inside
// the window has reached the threshold, writes the lock. The lock write is
// an atomic upsert so two racing failures converge on one lock row.
func (t *LoginThrottle) HandleFailure(ctx context.Context, identity, ip, userAgent string, now time.Time) (domain.FailureResult, error) {
	if err := t.RecordAttempt(ctx, identity, false, ip, userAgent, now); err != nil {
		return domain.FailureResult{}, fmt.Errorf("record attempt: %w", err)
	}

	count, err := t.Store.LoginAttempts().CountFailedSince(ctx, identity, now.Add(-t.FailureWindow))
	if err != nil {
		return domain.FailureResult{}, fmt.Errorf("count failures: %w", err)
	}

	result := domain.FailureResult{AttemptCount: count}
	if count >= t.LockThreshold {
		if err := t.Store.LoginLocks().UpsertLoginLock(ctx, identity, now.Add(t.LockDuration), now); err != nil {
			return result, fmt.Errorf("write lock: %w", err)
		}
		result.Locked = true
	}
	return result, nil
}

// ClearOnSuccess removes the lock and prunes stale attempt rows after a
// successful login. Neither cleanup is allowed to fail the login.
func (t *LoginThrottle) ClearOnSuccess(ctx context.Context, identity string, now time.Time) error {
	if err := t.Store.LoginLocks().DeleteLoginLock(ctx, identity); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("clear lock: %w", err)
	}
	if err := t.Store.LoginAttempts().DeleteAttemptsBefore(ctx, identity, now.Add(-attemptRetention)); err != nil {
		return fmt.Errorf("prune attempts: %w", err)
	}
	return nil
}

// Stats aggregates the attempt log and lock state for one identity.
// Diagnostics only.
func (t *LoginThrottle) Stats(ctx context.Context, identity string, now time.Time) (domain.LoginStats, error) {
	total, failed, lastAt, err := t.Store.LoginAttempts().GetLoginStats(ctx, identity)
	if err != nil {
		return domain.LoginStats{}, fmt.Errorf("aggregate attempts: %w", err)
	}

	stats := domain.LoginStats{
		TotalAttempts:  total,
		FailedAttempts: failed,
		LastAttemptAt:  lastAt,
	}

	state, err := t.IsLocked(ctx, identity, now)
	if err != nil {
		return stats, nil
	}
	if state.Locked {
		stats.IsLocked = true
		until := state.Until
		stats.LockedUntil = &until
	}
	return stats, nil
}
