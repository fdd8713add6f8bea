// Package otp issues and checks one-time password reset codes.
//
// A code is "active" while it is not used and not expired. Issuing a new code
// invalidates every previous one, so a user has at most one active code at a time.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/clock"
	"github.com/nkiryanov/netcraft/internal/logger"
	"github.com/nkiryanov/netcraft/internal/models"
	"github.com/nkiryanov/netcraft/internal/repository"
)

const (
	CodeLength = 6

	DefaultTTL = 15 * time.Minute
)

type Engine struct {
	storage repository.Storage
	clock   clock.Clock
	rng     io.Reader
	logger  logger.Logger
}

type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// Source of randomness for codes. crypto/rand by default
func WithRand(r io.Reader) Option {
	return func(e *Engine) { e.rng = r }
}

func New(storage repository.Storage, l logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		storage: storage,
		clock:   clock.System,
		rng:     rand.Reader,
		logger:  l.With("component", "otp"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine that works within storage (transaction, usually) of the caller
func (e *Engine) WithStorage(storage repository.Storage) *Engine {
	bound := *e
	bound.storage = storage
	return &bound
}

// Six uniformly distributed decimal digits
func (e *Engine) GenerateCode() (string, error) {
	var b strings.Builder
	b.Grow(CodeLength)

	ten := big.NewInt(10)
	for range CodeLength {
		n, err := rand.Int(e.rng, ten)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// Invalidate every not used user code and issue a new one
func (e *Engine) IssueOTP(ctx context.Context, userID uuid.UUID, ttl time.Duration) (models.ResetCode, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	code, err := e.GenerateCode()
	if err != nil {
		return models.ResetCode{}, err
	}

	var issued models.ResetCode
	err = e.storage.InTx(ctx, func(st repository.Storage) error {
		now := e.clock.Now()

		invalidated, err := st.ResetCode().InvalidateActive(ctx, userID, now)
		if err != nil {
			return err
		}
		if invalidated > 0 {
			e.logger.Debug("previous reset codes invalidated", "user_id", userID.String(), "count", invalidated)
		}

		issued, err = st.ResetCode().Create(ctx, models.ResetCode{
			UserID:    userID,
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		})
		return err
	})
	if err != nil {
		return models.ResetCode{}, fmt.Errorf("issue reset code: %w", err)
	}

	return issued, nil
}

// Check the code against the latest active one. Never changes anything
//
// Errors:
//   - apperrors.ErrResetCodeNotFound if there is no active code
//   - apperrors.ErrResetCodeInvalid if code does not match
func (e *Engine) Verify(ctx context.Context, userID uuid.UUID, code string) (models.ResetCode, error) {
	active, err := e.storage.ResetCode().GetLatestActive(ctx, userID, e.clock.Now())
	if err != nil {
		return models.ResetCode{}, err
	}

	if !codesEqual(active.Code, code) {
		return models.ResetCode{}, apperrors.ErrResetCodeInvalid
	}

	return active, nil
}

// Check the code the same way Verify does and mark it used
// Only one caller may consume a code, others get apperrors.ErrResetCodeUsed
func (e *Engine) Consume(ctx context.Context, userID uuid.UUID, code string) error {
	now := e.clock.Now()

	active, err := e.storage.ResetCode().GetLatestActive(ctx, userID, now)
	switch {
	case err == nil && codesEqual(active.Code, code):
		return e.storage.ResetCode().MarkUsed(ctx, active.ID, now)
	case err == nil:
		return apperrors.ErrResetCodeInvalid
	case !errors.Is(err, apperrors.ErrResetCodeNotFound):
		return err
	}

	// No active code. Tell "used" from "never existed" for a nicer message
	used, err := e.storage.ResetCode().ListUsedUnexpired(ctx, userID, now)
	if err != nil {
		return err
	}
	for _, c := range used {
		if codesEqual(c.Code, code) {
			return apperrors.ErrResetCodeUsed
		}
	}

	return apperrors.ErrResetCodeNotFound
}

// Remove expired codes, used or not
func (e *Engine) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := e.storage.ResetCode().DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep reset codes: %w", err)
	}
	return n, nil
}

func (e *Engine) Name() string {
	return "password_reset_codes"
}

func codesEqual(stored, given string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
