package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/internal/auth/store"
)

type sessionsRepo struct {
	q querier
}

const sessionColumns = `id, user_id, session_token, device_fingerprint, device_name, browser, os,
	ip_address, user_agent, location, created_at, last_activity_at, expires_at, revoked, revoked_at`

func scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var (
		s         domain.Session
		revokedAt sql.NullTime
	)

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.SessionToken,
		&s.DeviceFingerprint,
		&s.DeviceName,
		&s.Browser,
		&s.OS,
		&s.IPAddress,
		&s.UserAgent,
		&s.Location,
		&s.CreatedAt,
		&s.LastActivityAt,
		&s.ExpiresAt,
		&s.Revoked,
		&revokedAt,
	)
	if err != nil {
		return domain.Session{}, err
	}

	s.RevokedAt = mapNullTimePtr(revokedAt)
	return s, nil
}

const upsertSessionSQL = `
	INSERT INTO sessions (
		id, user_id, session_token, device_fingerprint, device_name, browser, os,
		ip_address, user_agent, location, created_at, last_activity_at, expires_at, revoked
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	ON CONFLICT (user_id, device_fingerprint) WHERE revoked = 0 DO UPDATE SET
		last_activity_at = excluded.last_activity_at,
		expires_at       = excluded.expires_at,
		ip_address       = excluded.ip_address,
		user_agent       = excluded.user_agent
	WHERE sessions.expires_at > excluded.last_activity_at
	RETURNING ` + sessionColumns

func (r *sessionsRepo) UpsertActiveSession(ctx context.Context, s domain.Session, now time.Time) (domain.Session, bool, error) {
	now = now.UTC()
	expiresAt := s.ExpiresAt.UTC()

	// Two passes at most: the second runs only after retiring an
	// expired-but-unrevoked row that blocked the first.
	for range 2 {
		row := r.q.QueryRowContext(ctx, upsertSessionSQL,
			s.ID, s.UserID, s.SessionToken, s.DeviceFingerprint,
			s.DeviceName, s.Browser, s.OS,
			s.IPAddress, s.UserAgent, s.Location,
			now, now, expiresAt,
		)

		stored, err := scanSession(row)
		if err == nil {
			reused := stored.ID != s.ID
			return stored, reused, nil
		}

		if errors.Is(err, sql.ErrNoRows) {
			// The conflict row exists but failed the liveness guard: it is
			// expired yet not revoked. Retire it, then insert fresh.
			_, uerr := r.q.ExecContext(ctx, `
				UPDATE sessions SET revoked = 1, revoked_at = ?
				WHERE user_id = ? AND device_fingerprint = ? AND revoked = 0`,
				now, s.UserID, s.DeviceFingerprint)
			if uerr != nil {
				return domain.Session{}, false, uerr
			}
			continue
		}

		if isUniqueViolation(err, "sessions.session_token") {
			return domain.Session{}, false, store.ErrAlreadyExists
		}
		return domain.Session{}, false, err
	}

	return domain.Session{}, false, store.ErrAlreadyExists
}

func (r *sessionsRepo) GetActiveSessionByToken(ctx context.Context, token string, now time.Time) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE session_token = ? AND revoked = 0 AND expires_at > ?`,
		token, now.UTC())

	s, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	s, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) ListActiveSessionsByUser(ctx context.Context, userID int64, now time.Time) ([]domain.Session, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND revoked = 0 AND expires_at > ?
		ORDER BY last_activity_at DESC`,
		userID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionsRepo) TouchSessionActivity(ctx context.Context, id string, activityAt, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE sessions SET last_activity_at = ?, expires_at = ?
		WHERE id = ? AND revoked = 0`,
		activityAt.UTC(), expiresAt.UTC(), id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) UpdateSessionLocation(ctx context.Context, id string, location string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET location = ? WHERE id = ?`, location, id)
	return err
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE sessions SET revoked = 1, revoked_at = ?
		WHERE id = ? AND revoked = 0`,
		at.UTC(), id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Already revoked rows stay revoked; missing rows surface as such.
		if _, gerr := r.GetSessionByID(ctx, id); gerr != nil {
			return gerr
		}
	}
	return nil
}

func (r *sessionsRepo) RevokeSessionByToken(ctx context.Context, token string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE sessions SET revoked = 1, revoked_at = ?
		WHERE session_token = ? AND revoked = 0`,
		at.UTC(), token)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) RevokeAllSessionsExcept(ctx context.Context, userID int64, keepToken string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE sessions SET revoked = 1, revoked_at = ?
		WHERE user_id = ? AND session_token <> ? AND revoked = 0`,
		at.UTC(), userID, keepToken)
	return err
}

func (r *sessionsRepo) RevokeAllSessions(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE sessions SET revoked = 1, revoked_at = ?
		WHERE user_id = ? AND revoked = 0`,
		at.UTC(), userID)
	return err
}

func (r *sessionsRepo) DeleteDefunctSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM sessions WHERE revoked = 1 OR expires_at <= ?`,
		now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
