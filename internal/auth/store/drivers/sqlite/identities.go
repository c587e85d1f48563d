package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
)

type identitiesRepo struct {
	q querier
}

const identityColumns = `id, external_id, email, display_name, mfa_enabled, mfa_secret, created_at, updated_at`

func scanIdentity(row interface{ Scan(...any) error }) (domain.Identity, error) {
	var (
		ident      domain.Identity
		mfaEnabled sql.NullTime
		mfaSecret  sql.NullString
	)

	err := row.Scan(
		&ident.ID,
		&ident.ExternalID,
		&ident.Email,
		&ident.DisplayName,
		&mfaEnabled,
		&mfaSecret,
		&ident.CreatedAt,
		&ident.UpdatedAt,
	)
	if err != nil {
		return domain.Identity{}, err
	}

	ident.MFAEnabled = mapNullTimePtr(mfaEnabled)
	ident.MFASecret = mapNullStringPtr(mfaSecret)
	return ident, nil
}

func (r *identitiesRepo) GetIdentityByID(ctx context.Context, id int64) (domain.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)

	ident, err := scanIdentity(row)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return ident, nil
}

func (r *identitiesRepo) GetIdentityByExternalID(ctx context.Context, externalID string) (domain.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE external_id = ?`, externalID)

	ident, err := scanIdentity(row)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return ident, nil
}

func (r *identitiesRepo) GetIdentityByEmail(ctx context.Context, email string) (domain.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = ? ORDER BY id LIMIT 1`, email)

	ident, err := scanIdentity(row)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return ident, nil
}

func (r *identitiesRepo) UpsertIdentity(ctx context.Context, ident domain.Identity) (domain.Identity, error) {
	now := time.Now().UTC()

	row := r.q.QueryRowContext(ctx, `
		INSERT INTO identities (external_id, email, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			email        = excluded.email,
			display_name = excluded.display_name,
			updated_at   = excluded.updated_at
		RETURNING `+identityColumns,
		ident.ExternalID, ident.Email, ident.DisplayName, now, now)

	stored, err := scanIdentity(row)
	if err != nil {
		return domain.Identity{}, err
	}
	return stored, nil
}

func (r *identitiesRepo) UpdateMFASecret(ctx context.Context, id int64, secret string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE identities SET mfa_secret = ?, updated_at = ? WHERE id = ?`,
		secret, time.Now().UTC(), id)
	return err
}

func (r *identitiesRepo) EnableMFA(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		UPDATE identities SET mfa_enabled = ?, updated_at = ? WHERE id = ?`,
		now, now, id)
	return err
}

func (r *identitiesRepo) DisableMFA(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE identities SET mfa_enabled = NULL, mfa_secret = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	return err
}
