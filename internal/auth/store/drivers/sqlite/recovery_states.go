package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
)

type recoveryStatesRepo struct {
	q querier
}

func scanRecoveryState(row interface{ Scan(...any) error }) (domain.RecoveryState, error) {
	var (
		state        domain.RecoveryState
		blockedUntil sql.NullTime
	)

	err := row.Scan(
		&state.Identity,
		&state.Attempts,
		&state.LastAttemptAt,
		&blockedUntil,
		&state.UpdatedAt,
	)
	if err != nil {
		return domain.RecoveryState{}, err
	}

	state.BlockedUntil = mapNullTimePtr(blockedUntil)
	return state, nil
}

func (r *recoveryStatesRepo) GetRecoveryState(ctx context.Context, identity string) (domain.RecoveryState, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT identity, attempts, last_attempt_at, blocked_until, updated_at
		FROM recovery_states WHERE identity = ?`, identity)

	state, err := scanRecoveryState(row)
	if err != nil {
		return domain.RecoveryState{}, mapNotFound(err)
	}
	return state, nil
}

func (r *recoveryStatesRepo) IncrementRecoveryAttempts(ctx context.Context, identity string, at time.Time) (domain.RecoveryState, error) {
	at = at.UTC()

	row := r.q.QueryRowContext(ctx, `
		INSERT INTO recovery_states (identity, attempts, last_attempt_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (identity) DO UPDATE SET
			attempts        = recovery_states.attempts + 1,
			last_attempt_at = excluded.last_attempt_at,
			updated_at      = excluded.updated_at
		RETURNING identity, attempts, last_attempt_at, blocked_until, updated_at`,
		identity, at, at)

	return scanRecoveryState(row)
}

func (r *recoveryStatesRepo) SetRecoveryBlockedUntil(ctx context.Context, identity string, until time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE recovery_states SET blocked_until = ?, updated_at = ? WHERE identity = ?`,
		until.UTC(), time.Now().UTC(), identity)
	return err
}

func (r *recoveryStatesRepo) ResetRecoveryState(ctx context.Context, identity string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE recovery_states
		SET attempts = 0, blocked_until = NULL, updated_at = ?
		WHERE identity = ?`,
		time.Now().UTC(), identity)
	return err
}

func (r *recoveryStatesRepo) DeleteStaleRecoveryStates(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM recovery_states WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
