package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type backupCodesRepo struct {
	q querier
}

func (r *backupCodesRepo) CreateBackupCode(ctx context.Context, identityID int64, codeHash string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO backup_codes (identity_id, code_hash, created_at)
		VALUES (?, ?, ?)`,
		identityID, codeHash, time.Now().UTC())
	return err
}

func (r *backupCodesRepo) HasBackupCode(ctx context.Context, identityID int64, codeHash string) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx, `
		SELECT 1 FROM backup_codes WHERE identity_id = ? AND code_hash = ?`,
		identityID, codeHash).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *backupCodesRepo) DeleteBackupCode(ctx context.Context, identityID int64, codeHash string) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM backup_codes WHERE identity_id = ? AND code_hash = ?`,
		identityID, codeHash)
	return err
}

func (r *backupCodesRepo) DeleteAllBackupCodes(ctx context.Context, identityID int64) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE identity_id = ?`, identityID)
	return err
}

func (r *backupCodesRepo) CountBackupCodes(ctx context.Context, identityID int64) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE identity_id = ?`, identityID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
