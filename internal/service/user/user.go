package user

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/models"
	"github.com/nkiryanov/netcraft/internal/repository"
)

const (
	maxNicknameLength = 50
	maxNameLength     = 100
)

type UserService struct {
	hasher  PasswordHasher
	storage repository.Storage
}

func NewService(hasher PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

// Service that works within storage (transaction, usually) of the caller
func (s *UserService) WithStorage(storage repository.Storage) *UserService {
	return &UserService{hasher: s.hasher, storage: storage}
}

type NewUser struct {
	Nickname  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func (s *UserService) CreateUser(ctx context.Context, u NewUser) (models.User, error) {
	var user models.User
	if u.Password == "" {
		return user, errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(u.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Nickname:       sanitize(u.Nickname, maxNicknameLength),
		Email:          NormalizeEmail(u.Email),
		FirstName:      sanitize(u.FirstName, maxNameLength),
		LastName:       sanitize(u.LastName, maxNameLength),
		HashedPassword: hash,
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Return user if password matches
// apperrors.ErrUserNotFound or apperrors.ErrInvalidPassword otherwise
func (s *UserService) Login(ctx context.Context, email string, password string) (models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.ErrInvalidPassword
	}

	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.storage.User().GetUserByEmail(ctx, NormalizeEmail(email))
}

// Change password of the logged in user who knows the current one
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, current string, newPassword string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(user.HashedPassword, current); err != nil {
		return apperrors.ErrInvalidPassword
	}

	return s.SetPassword(ctx, userID, newPassword)
}

// Set password without any checks
func (s *UserService) SetPassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("can't use this as password, Err: %w", err)
	}

	return s.storage.User().SetPassword(ctx, userID, hash)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Trim, escape html and cut to max runes
func sanitize(value string, maxLen int) string {
	escaped := []rune(html.EscapeString(strings.TrimSpace(value)))
	if len(escaped) > maxLen {
		escaped = escaped[:maxLen]
	}
	return string(escaped)
}
