package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
)

type loginAttemptsRepo struct {
	q querier
}

func (r *loginAttemptsRepo) InsertLoginAttempt(ctx context.Context, a domain.LoginAttempt) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO login_attempts (id, identity, success, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Identity, a.Success, a.IPAddress, a.UserAgent, a.CreatedAt.UTC())
	return err
}

func (r *loginAttemptsRepo) CountFailedSince(ctx context.Context, identity string, since time.Time) (int, error) {
	// Failures before the most recent success do not count: a completed
	// login proves the caller holds the password, so the budget restarts.
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE identity = ? AND success = 0 AND created_at > ?
		  AND created_at > COALESCE(
			(SELECT MAX(created_at) FROM login_attempts WHERE identity = ? AND success = 1),
			'')`,
		identity, since.UTC(), identity).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *loginAttemptsRepo) GetLoginStats(ctx context.Context, identity string) (int, int, *time.Time, error) {
	var (
		total  int
		failed int
		lastAt sql.NullTime
	)

	// A bare MAX(created_at) loses the column's declared type, so the
	// driver hands back a string that cannot scan into sql.NullTime; the
	// equivalent subselect keeps the declared type.
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
		       (SELECT created_at FROM login_attempts
		        WHERE identity = ? ORDER BY created_at DESC LIMIT 1)
		FROM login_attempts WHERE identity = ?`,
		identity, identity).Scan(&total, &failed, &lastAt)
	if err != nil {
		return 0, 0, nil, err
	}

	return total, failed, mapNullTimePtr(lastAt), nil
}

func (r *loginAttemptsRepo) DeleteAttemptsBefore(ctx context.Context, identity string, cutoff time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM login_attempts WHERE identity = ? AND created_at < ?`,
		identity, cutoff.UTC())
	return err
}

func (r *loginAttemptsRepo) DeleteAllAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM login_attempts WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
