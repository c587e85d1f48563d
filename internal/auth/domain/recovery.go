package domain

import "time"

// RecoveryState is the per-identity password-recovery counter. It expires
// lazily: once BlockedUntil has passed the state reads as fresh without a
// background sweep.
type RecoveryState struct {
	Identity      string
	Attempts      int
	LastAttemptAt time.Time
	BlockedUntil  *time.Time
	UpdatedAt     time.Time
}

// RecoveryDecision is the result of a recovery limit check.
type RecoveryDecision struct {
	Allowed           bool
	RemainingAttempts int
	RetryAfter        time.Duration // zero when Allowed
}
