package domain

import "time"

// LoginAttempt is one row in the append-only attempt log. Identity is the
// normalized email the caller tried to log in as; it is recorded whether or
// not such a user exists.
type LoginAttempt struct {
	ID        string
	Identity  string
	Success   bool
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// LoginLock is the advisory lock record for an identity. Once LockedUntil
// has passed the lock is treated as absent; no delete is required.
type LoginLock struct {
	Identity    string
	LockedUntil time.Time
	UpdatedAt   time.Time
}

// LockState is the result of a lock check.
type LockState struct {
	Locked bool
	Until  time.Time // zero unless Locked
}

// FailureResult reports the outcome of recording a failed login.
type FailureResult struct {
	Locked       bool
	AttemptCount int // failures inside the rolling window, including this one
}

// LoginStats is the diagnostic read path over the attempt log.
type LoginStats struct {
	TotalAttempts  int
	FailedAttempts int
	LastAttemptAt  *time.Time
	IsLocked       bool
	LockedUntil    *time.Time
}
