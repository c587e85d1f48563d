package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/internal/auth/store"
	"github.com/luminara-labs/storefront-auth/pkg/slogx"
)

const (
	// DefaultRecoveryThreshold is the number of recovery requests allowed
	// before a block kicks in.
	DefaultRecoveryThreshold = 3

	// DefaultRecoveryBlock is how long a blocked identity must wait.
	DefaultRecoveryBlock = 2 * time.Minute
)

// RecoveryThrottle rate-limits password recovery requests per identity.
// State expires lazily: once the block release time has passed, the next
// check reads the row as fresh without any sweep having run.
type RecoveryThrottle struct {
	Store     store.Store
	Threshold int
	Block     time.Duration
}

// NewRecoveryThrottle applies the default policy for any zero-valued knob.
func NewRecoveryThrottle(st store.Store) *RecoveryThrottle {
	return &RecoveryThrottle{
		Store:     st,
		Threshold: DefaultRecoveryThreshold,
		Block:     DefaultRecoveryBlock,
	}
}

// CheckLimits reports whether a recovery request may proceed. A block whose
// release time has passed resets the counter in place. Store failures
// report allowed: recovery is how locked-out users get back in, so the
// throttle degrades open.
func (t *RecoveryThrottle) CheckLimits(ctx context.Context, identity string, now time.Time) (domain.RecoveryDecision, error) {
	state, err := t.Store.RecoveryStates().GetRecoveryState(ctx, identity)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slogx.FromContext(ctx).Warn("recovery check degraded, allowing", slog.Any("error", err))
		}
		return domain.RecoveryDecision{Allowed: true, RemainingAttempts: t.Threshold}, nil
	}

	if state.BlockedUntil != nil {
		if now.Before(*state.BlockedUntil) {
			return domain.RecoveryDecision{
				RetryAfter: state.BlockedUntil.Sub(now),
			}, nil
		}
		// Block has lapsed. Reset so the identity starts a fresh window.
		if err := t.Store.RecoveryStates().ResetRecoveryState(ctx, identity); err != nil {
			return domain.RecoveryDecision{}, fmt.Errorf("reset lapsed block: %w", err)
		}
		return domain.RecoveryDecision{Allowed: true, RemainingAttempts: t.Threshold}, nil
	}

	remaining := t.Threshold - state.Attempts
	if remaining <= 0 {
		// Counter at threshold but no block stamped yet (interrupted between
		// increment and block write). Stamp the block now so it self-releases
		// through the lapsed-block path above instead of lasting forever.
		until := now.Add(t.Block)
		if err := t.Store.RecoveryStates().SetRecoveryBlockedUntil(ctx, identity, until); err != nil {
			return domain.RecoveryDecision{}, fmt.Errorf("stamp recovery block: %w", err)
		}
		return domain.RecoveryDecision{RetryAfter: t.Block}, nil
	}
	return domain.RecoveryDecision{Allowed: true, RemainingAttempts: remaining}, nil
}

// IncrementAttempt bumps the counter atomically and stamps the block once
// the threshold is reached. Returns the post-increment state.
func (t *RecoveryThrottle) IncrementAttempt(ctx context.Context, identity string, now time.Time) (domain.RecoveryState, error) {
	state, err := t.Store.RecoveryStates().IncrementRecoveryAttempts(ctx, identity, now)
	if err != nil {
		return domain.RecoveryState{}, fmt.Errorf("increment recovery attempts: %w", err)
	}

	if state.Attempts >= t.Threshold && state.BlockedUntil == nil {
		until := now.Add(t.Block)
		if err := t.Store.RecoveryStates().SetRecoveryBlockedUntil(ctx, identity, until); err != nil {
			return state, fmt.Errorf("stamp recovery block: %w", err)
		}
		state.BlockedUntil = &until
	}
	return state, nil
}

// Reset clears the counter and any block for an identity.
func (t *RecoveryThrottle) Reset(ctx context.Context, identity string) error {
	if err := t.Store.RecoveryStates().ResetRecoveryState(ctx, identity); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("reset recovery state: %w", err)
	}
	return nil
}

// ResetAfterSuccess clears throttle state once a recovery completes, so a
// user who just proved control of their account is not still rationed.
func (t *RecoveryThrottle) ResetAfterSuccess(ctx context.Context, identity string) error {
	return t.Reset(ctx, identity)
}
