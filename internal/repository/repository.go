package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/netcraft/internal/models"
)

// Storage gives access to every repository and allows to run them in a single transaction
type Storage interface {
	User() UserRepo
	Project() ProjectRepo
	RevokedToken() RevokedTokenRepo
	ResetCode() ResetCodeRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

type CreateUserParams struct {
	Nickname       string
	Email          string
	FirstName      string
	LastName       string
	HashedPassword string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with email or nickname exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Replace password hash; apperrors.ErrUserNotFound if user not exists
	SetPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error
}

type ProjectRepo interface {
	Create(ctx context.Context, ownerID uuid.UUID, name string, data json.RawMessage) (models.Project, error)

	// Get project regardless of it's owner
	// If project not found must return apperrors.ErrProjectNotFound
	Get(ctx context.Context, projectID uuid.UUID) (models.Project, error)

	// List owner projects, newest first. Data is not loaded
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error)

	// Delete project; apperrors.ErrProjectNotFound if nothing deleted
	Delete(ctx context.Context, projectID uuid.UUID) error
}

// Revoked tokens repository
// Implemented both by postgres and redis
type RevokedTokenRepo interface {
	// Store revocation. If jti revoked already must return apperrors.ErrTokenAlreadyRevoked
	// Existing records never updated
	Create(ctx context.Context, token models.RevokedToken) error

	// Whether jti is revoked. Absence of record is not an error
	Exists(ctx context.Context, jti string) (bool, error)

	// Delete records with expires_at strictly before 'before'; return number of deleted
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Password reset codes repository
type ResetCodeRepo interface {
	// Mark every not used user code as used. Return number of invalidated codes
	InvalidateActive(ctx context.Context, userID uuid.UUID, usedAt time.Time) (int64, error)

	Create(ctx context.Context, code models.ResetCode) (models.ResetCode, error)

	// Latest active code (not used and expires after 'now')
	// If there is no one must return apperrors.ErrResetCodeNotFound
	GetLatestActive(ctx context.Context, userID uuid.UUID, now time.Time) (models.ResetCode, error)

	// Used but not yet expired codes, latest first
	ListUsedUnexpired(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.ResetCode, error)

	// Mark code used only if it is not used yet
	// If it was used already (or not exists) must return apperrors.ErrResetCodeUsed
	MarkUsed(ctx context.Context, codeID int64, usedAt time.Time) error

	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
