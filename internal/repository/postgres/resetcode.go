package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/models"
)

type ResetCodeRepo struct {
	db DBTX
}

const resetCodeColumns = `id, user_id, code, created_at, expires_at, used_at, is_used`

const invalidateActiveCodes = `-- name: InvalidateActiveCodes
UPDATE password_reset_codes
SET is_used = TRUE, used_at = $2
WHERE user_id = $1 AND NOT is_used
`

func (r *ResetCodeRepo) InvalidateActive(ctx context.Context, userID uuid.UUID, usedAt time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, invalidateActiveCodes, userID, usedAt)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const createResetCode = `-- name: CreateResetCode
INSERT INTO password_reset_codes (user_id, code, created_at, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING ` + resetCodeColumns

func (r *ResetCodeRepo) Create(ctx context.Context, c models.ResetCode) (models.ResetCode, error) {
	rows, _ := r.db.Query(ctx, createResetCode, c.UserID, c.Code, c.CreatedAt, c.ExpiresAt)
	code, err := pgx.CollectOneRow(rows, rowToResetCode)
	if err != nil {
		return code, fmt.Errorf("db error: %w", err)
	}
	return code, nil
}

// The latest row wins if concurrent issues left more than one active
const getLatestActiveCode = `-- name: GetLatestActiveCode
SELECT ` + resetCodeColumns + `
FROM password_reset_codes
WHERE user_id = $1 AND NOT is_used AND expires_at > $2
ORDER BY created_at DESC, id DESC
LIMIT 1
`

func (r *ResetCodeRepo) GetLatestActive(ctx context.Context, userID uuid.UUID, now time.Time) (models.ResetCode, error) {
	rows, _ := r.db.Query(ctx, getLatestActiveCode, userID, now)
	code, err := pgx.CollectOneRow(rows, rowToResetCode)

	switch {
	case err == nil:
		return code, nil
	case errors.Is(err, pgx.ErrNoRows):
		return code, fmt.Errorf("repo error: %w", apperrors.ErrResetCodeNotFound)
	default:
		return code, fmt.Errorf("db error: %w", err)
	}
}

const listUsedUnexpiredCodes = `-- name: ListUsedUnexpiredCodes
SELECT ` + resetCodeColumns + `
FROM password_reset_codes
WHERE user_id = $1 AND is_used AND expires_at > $2
ORDER BY created_at DESC, id DESC
`

func (r *ResetCodeRepo) ListUsedUnexpired(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.ResetCode, error) {
	rows, _ := r.db.Query(ctx, listUsedUnexpiredCodes, userID, now)
	codes, err := pgx.CollectRows(rows, rowToResetCode)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return codes, nil
}

const markCodeUsed = `-- name: MarkCodeUsed if it not used
UPDATE password_reset_codes
SET is_used = TRUE, used_at = $2
WHERE id = $1 AND NOT is_used
`

// Only one of concurrent callers may flip the code
func (r *ResetCodeRepo) MarkUsed(ctx context.Context, codeID int64, usedAt time.Time) error {
	tag, err := r.db.Exec(ctx, markCodeUsed, codeID, usedAt)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return fmt.Errorf("repo error: %w", apperrors.ErrResetCodeUsed)
	default:
		return nil
	}
}

const deleteExpiredCodes = `-- name: DeleteExpiredCodes
DELETE FROM password_reset_codes
WHERE expires_at < $1
`

func (r *ResetCodeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteExpiredCodes, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToResetCode(row pgx.CollectableRow) (models.ResetCode, error) {
	var c models.ResetCode
	err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.CreatedAt, &c.ExpiresAt, &c.UsedAt, &c.IsUsed)
	return c, err
}
