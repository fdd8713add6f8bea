// Package revocation makes issued tokens unusable before they expire.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/logger"
	"github.com/nkiryanov/netcraft/internal/models"
	"github.com/nkiryanov/netcraft/internal/repository"
)

type Ledger struct {
	repo   repository.RevokedTokenRepo
	logger logger.Logger
}

func NewLedger(repo repository.RevokedTokenRepo, l logger.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		logger: l.With("component", "revocation"),
	}
}

// Revoke token. Revoking the same jti twice is a conflict: apperrors.ErrTokenAlreadyRevoked
func (l *Ledger) Revoke(ctx context.Context, token models.RevokedToken) error {
	err := l.repo.Create(ctx, token)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrTokenAlreadyRevoked):
		l.logger.Warn("token revoked twice", "jti", token.JTI, "user_id", token.UserID.String(), "token_type", token.TokenType)
		return err
	default:
		return fmt.Errorf("revoke token: %w", err)
	}
}

func (l *Ledger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := l.repo.Exists(ctx, jti)
	if err != nil {
		return false, fmt.Errorf("check token revoked: %w", err)
	}
	return revoked, nil
}

// Drop records of tokens expired before now. They are unusable anyway
func (l *Ledger) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := l.repo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep revoked tokens: %w", err)
	}
	return n, nil
}

// Name used by cleanup scheduler
func (l *Ledger) Name() string {
	return "revoked_tokens"
}
