// Package passwordreset runs the "forgot password" flow: request a code by email,
// check it and set a new password with it.
package passwordreset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/clock"
	"github.com/nkiryanov/netcraft/internal/logger"
	"github.com/nkiryanov/netcraft/internal/repository"
	"github.com/nkiryanov/netcraft/internal/service/mailer"
	"github.com/nkiryanov/netcraft/internal/service/otp"
	"github.com/nkiryanov/netcraft/internal/service/user"
)

type Config struct {
	// How long issued code is valid. otp.DefaultTTL if not set
	CodeTTL time.Duration

	Clock clock.Clock
}

type Service struct {
	storage repository.Storage
	codes   *otp.Engine
	users   *user.UserService
	sender  mailer.Sender

	ttl    time.Duration
	clock  clock.Clock
	logger logger.Logger
}

func NewService(cfg Config, storage repository.Storage, codes *otp.Engine, users *user.UserService, sender mailer.Sender, l logger.Logger) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = otp.DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System
	}

	return &Service{
		storage: storage,
		codes:   codes,
		users:   users,
		sender:  sender,
		ttl:     cfg.CodeTTL,
		clock:   cfg.Clock,
		logger:  l.With("component", "passwordreset"),
	}
}

func (s *Service) CodeTTL() time.Duration {
	return s.ttl
}

// Issue new code and send it to the user
// Unknown email is not an error: caller must not reveal whether account exists
// Failed delivery is logged only, the code stays valid
func (s *Service) RequestReset(ctx context.Context, email string) error {
	u, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		s.logger.Info("Password reset requested for unknown email")
		return nil
	case err != nil:
		return err
	}

	code, err := s.codes.IssueOTP(ctx, u.ID, s.ttl)
	if err != nil {
		return err
	}

	err = s.sender.SendResetCode(ctx, mailer.ResetCodeMessage{
		To:        u.Email,
		FirstName: u.DisplayName(),
		Code:      code.Code,
		TTL:       s.ttl,
	})
	if err != nil {
		s.logger.Error("Failed to deliver reset code", "user_id", u.ID.String(), "error", err.Error())
	}

	return nil
}

// Check the code without using it. Return how long the code remains valid
//
// Errors:
//   - apperrors.ErrUserNotFound
//   - apperrors.ErrResetCodeNotFound, apperrors.ErrResetCodeInvalid
func (s *Service) VerifyCode(ctx context.Context, email string, code string) (time.Duration, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return 0, err
	}

	active, err := s.codes.Verify(ctx, u.ID, code)
	if err != nil {
		return 0, err
	}

	return active.ValidFor(s.clock.Now()), nil
}

// Use the code and set new password. Everything happens in one transaction
// so the code is not burned if password can't be set
func (s *Service) ResetPassword(ctx context.Context, email string, code string, newPassword string) error {
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		users := s.users.WithStorage(st)
		codes := s.codes.WithStorage(st)

		u, err := users.GetUserByEmail(ctx, email)
		if err != nil {
			return err
		}

		// No active code may still mean it was used: Consume tells used from not found
		if _, err := codes.Verify(ctx, u.ID, code); err != nil && !errors.Is(err, apperrors.ErrResetCodeNotFound) {
			return err
		}
		if err := codes.Consume(ctx, u.ID, code); err != nil {
			return err
		}

		return users.SetPassword(ctx, u.ID, newPassword)
	})
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	s.logger.Info("Password reset")
	return nil
}
