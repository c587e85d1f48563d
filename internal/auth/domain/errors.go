package domain

import (
	"errors"
	"fmt"
	"time"
)

// The authentication error taxonomy. Handlers branch on these with errors.Is
// / errors.As; none of them are ever thrown as generic failures.
var (
	ErrInvalidCredentials  = errors.New("auth: invalid credentials")
	ErrTokenExpired        = errors.New("auth: token expired")
	ErrTokenMalformed      = errors.New("auth: token malformed")
	ErrTokenInvalidPayload = errors.New("auth: token payload invalid")
	ErrSessionRevoked      = errors.New("auth: session revoked")
	ErrSessionExpired      = errors.New("auth: session expired")
	ErrSessionNotFound     = errors.New("auth: session not found")
	ErrMFARequired         = errors.New("auth: mfa code required")
	ErrMFAInvalidCode      = errors.New("auth: invalid mfa code")
	ErrMFAAlreadyEnabled   = errors.New("auth: mfa already enabled")
	ErrMFANotEnabled       = errors.New("auth: mfa not enabled")
	ErrStoreUnavailable    = errors.New("auth: store unavailable")
)

// AccountLockedError reports a login lockout. It carries the release time so
// the response can state the remaining wait; revealing that is an accepted
// usability trade-off.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("auth: account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// RecoveryBlockedError reports a throttled recovery request.
type RecoveryBlockedError struct {
	RetryAfter time.Duration
}

func (e *RecoveryBlockedError) Error() string {
	return fmt.Sprintf("auth: recovery blocked, retry in %s", e.RetryAfter.Round(time.Second))
}
