package domain

import "time"

// Session binds a user, a device, and an opaque reference string with its own
// expiry/revocation state.
//
// Invariants:
//   - SessionToken is globally unique and never reused.
//   - At most one active session exists per (UserID, DeviceFingerprint);
//     a second login from the same device refreshes the existing row.
//   - ExpiresAt is a sliding window: every reuse or activity touch pushes it
//     forward by the full TTL.
//   - Once Revoked, the row is never un-revoked.
type Session struct {
	ID                string
	UserID            int64
	SessionToken      string // opaque, unguessable reference
	DeviceFingerprint string
	DeviceName        string
	Browser           string
	OS                string
	IPAddress         string
	UserAgent         string
	Location          string // best-effort, filled in asynchronously
	CreatedAt         time.Time
	LastActivityAt    time.Time
	ExpiresAt         time.Time
	Revoked           bool
	RevokedAt         *time.Time
}

// Active reports whether the session is usable at the given instant.
func (s Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// SessionHandle is what login returns to the caller: enough to present the
// credential pair without exposing the full row.
type SessionHandle struct {
	SessionID    string
	SessionToken string
	ExpiresAt    time.Time
}
