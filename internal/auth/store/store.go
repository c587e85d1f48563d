package store

import (
	"context"
	"errors"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to stop callers from accidentally nesting transactions.
type Store interface {
	Identities() Identities
	Sessions() Sessions
	LoginAttempts() LoginAttempts
	LoginLocks() LoginLocks
	RecoveryStates() RecoveryStates
	BackupCodes() BackupCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Identities interface {
	// GetIdentityByID returns an identity by its numeric local id.
	GetIdentityByID(ctx context.Context, id int64) (domain.Identity, error)

	// GetIdentityByExternalID returns the local mirror row for a provider id.
	GetIdentityByExternalID(ctx context.Context, externalID string) (domain.Identity, error)

	// GetIdentityByEmail is used by the recovery flow.
	GetIdentityByEmail(ctx context.Context, email string) (domain.Identity, error)

	// UpsertIdentity inserts or refreshes the mirror row keyed on the
	// external id and returns the stored row (with its local id).
	UpsertIdentity(ctx context.Context, ident domain.Identity) (domain.Identity, error)

	// UpdateMFASecret sets the TOTP secret without enabling MFA.
	UpdateMFASecret(ctx context.Context, id int64, secret string) error

	// EnableMFA stamps mfa_enabled for an identity.
	EnableMFA(ctx context.Context, id int64) error

	// DisableMFA clears both the enabled stamp and the secret.
	DisableMFA(ctx context.Context, id int64) error
}

type Sessions interface {
	// UpsertActiveSession atomically creates a session or refreshes the
	// active one for the same (user, device fingerprint). Returns the
	// resulting row and whether an existing row was reused. The uniqueness
	// constraint lives in the schema; there is no read-then-insert race.
	// Returns ErrAlreadyExists only on a session-token collision.
	UpsertActiveSession(ctx context.Context, s domain.Session, now time.Time) (domain.Session, bool, error)

	// GetActiveSessionByToken returns the session for an opaque token.
	// Revoked and expired rows are invisible: ErrNotFound.
	GetActiveSessionByToken(ctx context.Context, token string, now time.Time) (domain.Session, error)

	// GetSessionByID returns a session regardless of state. The auth gate
	// needs to tell "revoked" from "expired" from "missing".
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// ListActiveSessionsByUser returns all live sessions, newest first.
	ListActiveSessionsByUser(ctx context.Context, userID int64, now time.Time) ([]domain.Session, error)

	// TouchSessionActivity bumps last_activity_at and slides expires_at.
	TouchSessionActivity(ctx context.Context, id string, activityAt, expiresAt time.Time) error

	// UpdateSessionLocation patches the best-effort location field.
	UpdateSessionLocation(ctx context.Context, id string, location string) error

	// RevokeSession flips revoked on a single row. Idempotent.
	RevokeSession(ctx context.Context, id string, at time.Time) error

	// RevokeSessionByToken revokes the row holding an opaque token.
	RevokeSessionByToken(ctx context.Context, token string, at time.Time) error

	// RevokeAllSessionsExcept revokes every live session of a user except
	// the one holding keepToken.
	RevokeAllSessionsExcept(ctx context.Context, userID int64, keepToken string, at time.Time) error

	// RevokeAllSessions revokes every live session of a user.
	RevokeAllSessions(ctx context.Context, userID int64, at time.Time) error

	// DeleteDefunctSessions removes revoked or expired rows (housekeeping).
	DeleteDefunctSessions(ctx context.Context, now time.Time) (int64, error)
}

type LoginAttempts interface {
	// InsertLoginAttempt appends to the attempt log.
	InsertLoginAttempt(ctx context.Context, a domain.LoginAttempt) error

	// CountFailedSince counts failures for an identity inside the window,
	// ignoring anything before the identity's most recent success.
	CountFailedSince(ctx context.Context, identity string, since time.Time) (int, error)

	// GetLoginStats aggregates the attempt log for the diagnostics path.
	GetLoginStats(ctx context.Context, identity string) (total int, failed int, lastAt *time.Time, err error)

	// DeleteAttemptsBefore prunes one identity's attempts older than cutoff.
	DeleteAttemptsBefore(ctx context.Context, identity string, cutoff time.Time) error

	// DeleteAllAttemptsBefore prunes the whole log (housekeeping).
	DeleteAllAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type LoginLocks interface {
	// GetLoginLock returns the lock row for an identity, expired or not.
	GetLoginLock(ctx context.Context, identity string) (domain.LoginLock, error)

	// UpsertLoginLock writes or extends the lock atomically.
	UpsertLoginLock(ctx context.Context, identity string, until, now time.Time) error

	// DeleteLoginLock removes the lock (successful login, manual unlock).
	DeleteLoginLock(ctx context.Context, identity string) error

	// DeleteExpiredLoginLocks is housekeeping; expired locks are already
	// treated as absent on read.
	DeleteExpiredLoginLocks(ctx context.Context, now time.Time) (int64, error)
}

type RecoveryStates interface {
	// GetRecoveryState returns the counter row for an identity.
	GetRecoveryState(ctx context.Context, identity string) (domain.RecoveryState, error)

	// IncrementRecoveryAttempts atomically bumps the counter (creating the
	// row if needed) and returns the new state.
	IncrementRecoveryAttempts(ctx context.Context, identity string, at time.Time) (domain.RecoveryState, error)

	// SetRecoveryBlockedUntil stamps the block release time.
	SetRecoveryBlockedUntil(ctx context.Context, identity string, until time.Time) error

	// ResetRecoveryState zeroes the counter and clears any block.
	ResetRecoveryState(ctx context.Context, identity string) error

	// DeleteStaleRecoveryStates drops rows untouched since cutoff (housekeeping).
	DeleteStaleRecoveryStates(ctx context.Context, cutoff time.Time) (int64, error)
}

type BackupCodes interface {
	// CreateBackupCode stores a backup code hash for an identity.
	CreateBackupCode(ctx context.Context, identityID int64, codeHash string) error

	// HasBackupCode checks if a backup code hash exists for an identity.
	HasBackupCode(ctx context.Context, identityID int64, codeHash string) (bool, error)

	// DeleteBackupCode removes a specific backup code.
	DeleteBackupCode(ctx context.Context, identityID int64, codeHash string) error

	// DeleteAllBackupCodes removes all backup codes for an identity.
	DeleteAllBackupCodes(ctx context.Context, identityID int64) error

	// CountBackupCodes returns the number of stored codes for an identity.
	CountBackupCodes(ctx context.Context, identityID int64) (int, error)
}
