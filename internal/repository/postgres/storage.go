package postgres

import (
	"context"
	"fmt"

	"github.com/nkiryanov/netcraft/internal/repository"
)

type Storage struct {
	db      DBTX
	revoked repository.RevokedTokenRepo
}

type StorageOption func(*Storage)

// Keep revoked tokens somewhere else (redis, for instance)
// Such repo is not part of the storage transaction
func WithRevokedTokenRepo(repo repository.RevokedTokenRepo) StorageOption {
	return func(s *Storage) {
		s.revoked = repo
	}
}

func NewStorage(db DBTX, opts ...StorageOption) repository.Storage {
	s := &Storage{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{db: s.db}
}

func (s *Storage) Project() repository.ProjectRepo {
	return &ProjectRepo{db: s.db}
}

func (s *Storage) RevokedToken() repository.RevokedTokenRepo {
	if s.revoked != nil {
		return s.revoked
	}
	return &RevokedTokenRepo{db: s.db}
}

func (s *Storage) ResetCode() repository.ResetCodeRepo {
	return &ResetCodeRepo{db: s.db}
}

func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(&Storage{db: tx, revoked: s.revoked})

	return err
}
