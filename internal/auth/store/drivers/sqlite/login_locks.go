package sqlite

import (
	"context"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
)

type loginLocksRepo struct {
	q querier
}

func (r *loginLocksRepo) GetLoginLock(ctx context.Context, identity string) (domain.LoginLock, error) {
	var lock domain.LoginLock

	err := r.q.QueryRowContext(ctx, `
		SELECT identity, locked_until, updated_at FROM login_locks WHERE identity = ?`,
		identity).Scan(&lock.Identity, &lock.LockedUntil, &lock.UpdatedAt)
	if err != nil {
		return domain.LoginLock{}, mapNotFound(err)
	}
	return lock, nil
}

func (r *loginLocksRepo) UpsertLoginLock(ctx context.Context, identity string, until, now time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO login_locks (identity, locked_until, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (identity) DO UPDATE SET
			locked_until = excluded.locked_until,
			updated_at   = excluded.updated_at`,
		identity, until.UTC(), now.UTC())
	return err
}

func (r *loginLocksRepo) DeleteLoginLock(ctx context.Context, identity string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM login_locks WHERE identity = ?`, identity)
	return err
}

func (r *loginLocksRepo) DeleteExpiredLoginLocks(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM login_locks WHERE locked_until <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
