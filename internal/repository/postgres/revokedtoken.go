package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/models"
)

type RevokedTokenRepo struct {
	db DBTX
}

const createRevokedToken = `-- name: CreateRevokedToken
INSERT INTO revoked_tokens (jti, token_type, user_id, revoked_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
`

func (r *RevokedTokenRepo) Create(ctx context.Context, t models.RevokedToken) error {
	_, err := r.db.Exec(ctx, createRevokedToken, t.JTI, t.TokenType, t.UserID, t.RevokedAt, t.ExpiresAt)

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
		return fmt.Errorf("repo error: %w", apperrors.ErrTokenAlreadyRevoked)
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

const revokedTokenExists = `-- name: RevokedTokenExists
SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)
`

func (r *RevokedTokenRepo) Exists(ctx context.Context, jti string) (bool, error) {
	rows, _ := r.db.Query(ctx, revokedTokenExists, jti)
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

const deleteExpiredRevokedTokens = `-- name: DeleteExpiredRevokedTokens
DELETE FROM revoked_tokens
WHERE expires_at < $1
`

func (r *RevokedTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteExpiredRevokedTokens, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
