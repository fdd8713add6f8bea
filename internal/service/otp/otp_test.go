package otp

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/clock"
	"github.com/nkiryanov/netcraft/internal/logger"
	"github.com/nkiryanov/netcraft/internal/repository"
	"github.com/nkiryanov/netcraft/internal/repository/postgres"
	"github.com/nkiryanov/netcraft/internal/testutil"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

// Reader producing given codes one after another
// Byte with value below 10 is turned by rand.Int into the same digit
func codesReader(codes ...string) *bytes.Reader {
	var b []byte
	for _, code := range codes {
		for _, ch := range code {
			b = append(b, byte(ch-'0'))
		}
	}
	return bytes.NewReader(b)
}

func TestEngine_GenerateCode(t *testing.T) {
	t.Parallel()

	t.Run("six digits", func(t *testing.T) {
		e := New(nil, logger.NewNoOpLogger())
		format := regexp.MustCompile(`^[0-9]{6}$`)

		for range 100 {
			code, err := e.GenerateCode()

			require.NoError(t, err)
			require.Regexp(t, format, code)
		}
	})

	t.Run("uses injected rand", func(t *testing.T) {
		e := New(nil, logger.NewNoOpLogger(), WithRand(codesReader("042917")))

		code, err := e.GenerateCode()

		require.NoError(t, err)
		require.Equal(t, "042917", code)
	})

	t.Run("rand failure", func(t *testing.T) {
		e := New(nil, logger.NewNoOpLogger(), WithRand(failingReader{}))

		_, err := e.GenerateCode()

		require.Error(t, err)
	})
}

func TestEngine(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Run test with engine bound to rolled back transaction and controllable clock
	withEngine := func(t *testing.T, codes []string, fn func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			st := postgres.NewStorage(tx)
			user, err := st.User().CreateUser(t.Context(), repository.CreateUserParams{
				Nickname:       "otp-user",
				Email:          "otp@example.com",
				HashedPassword: "hash",
			})
			require.NoError(t, err)

			now := issuedAt
			e := New(st, logger.NewNoOpLogger(),
				WithClock(clock.Func(func() time.Time { return now })),
				WithRand(codesReader(codes...)),
			)

			fn(e, st, user.ID, &now)
		})
	}

	t.Run("issue ok", func(t *testing.T) {
		withEngine(t, []string{"123456"}, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			code, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)

			require.NoError(t, err)
			assert.Equal(t, "123456", code.Code)
			assert.Equal(t, userID, code.UserID)
			assert.False(t, code.IsUsed)
			assert.WithinDuration(t, issuedAt.Add(15*time.Minute), code.ExpiresAt, 0)
		})
	})

	t.Run("issue invalidates previous codes", func(t *testing.T) {
		withEngine(t, []string{"111111", "222222"}, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			first, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)
			*now = now.Add(time.Second)

			second, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)

			used, err := st.ResetCode().ListUsedUnexpired(t.Context(), userID, *now)
			require.NoError(t, err)
			require.Len(t, used, 1)
			assert.Equal(t, first.ID, used[0].ID)

			active, err := st.ResetCode().GetLatestActive(t.Context(), userID, *now)
			require.NoError(t, err)
			assert.Equal(t, second.ID, active.ID)
		})
	})

	t.Run("double issue accepts only the latest code", func(t *testing.T) {
		withEngine(t, []string{"111111", "222222"}, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			_, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)
			_, err = e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)

			_, err = e.Verify(t.Context(), userID, "111111")
			require.ErrorIs(t, err, apperrors.ErrResetCodeInvalid)

			_, err = e.Verify(t.Context(), userID, "222222")
			require.NoError(t, err)

			err = e.Consume(t.Context(), userID, "111111")
			require.ErrorIs(t, err, apperrors.ErrResetCodeInvalid, "mismatch against the active code")
		})
	})

	t.Run("verify valid is side effect free", func(t *testing.T) {
		withEngine(t, []string{"123456"}, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			issued, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)

			for range 3 {
				got, err := e.Verify(t.Context(), userID, "123456")
				require.NoError(t, err)
				assert.Equal(t, issued.ID, got.ID)
				assert.False(t, got.IsUsed)
			}

			active, err := st.ResetCode().GetLatestActive(t.Context(), userID, *now)
			require.NoError(t, err)
			assert.Equal(t, issued, active)
		})
	})

	t.Run("verify wrong is side effect free", func(t *testing.T) {
		withEngine(t, []string{"123456"}, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			_, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)

			_, err = e.Verify(t.Context(), userID, "654321")
			require.ErrorIs(t, err, apperrors.ErrResetCodeInvalid)

			_, err = e.Verify(t.Context(), userID, "123456")
			require.NoError(t, err, "wrong attempt must not burn the code")
		})
	})

	t.Run("verify without code", func(t *testing.T) {
		withEngine(t, nil, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			_, err := e.Verify(t.Context(), userID, "123456")

			require.ErrorIs(t, err, apperrors.ErrResetCodeNotFound)
		})
	})

	t.Run("ttl boundary", func(t *testing.T) {
		withEngine(t, []string{"123456"}, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			_, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)

			*now = issuedAt.Add(14*time.Minute + 59*time.Second)
			code, err := e.Verify(t.Context(), userID, "123456")
			require.NoError(t, err)
			assert.Equal(t, time.Second, code.ValidFor(*now))

			*now = issuedAt.Add(15*time.Minute + time.Second)
			_, err = e.Verify(t.Context(), userID, "123456")
			require.ErrorIs(t, err, apperrors.ErrResetCodeNotFound)

			err = e.Consume(t.Context(), userID, "123456")
			require.ErrorIs(t, err, apperrors.ErrResetCodeNotFound, "expired code can't be consumed")
		})
	})

	t.Run("consume is monotonic", func(t *testing.T) {
		withEngine(t, []string{"123456"}, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			_, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)

			err = e.Consume(t.Context(), userID, "123456")
			require.NoError(t, err)

			err = e.Consume(t.Context(), userID, "123456")
			require.ErrorIs(t, err, apperrors.ErrResetCodeUsed)

			_, err = e.Verify(t.Context(), userID, "123456")
			require.ErrorIs(t, err, apperrors.ErrResetCodeNotFound)
		})
	})

	t.Run("consume superseded code", func(t *testing.T) {
		withEngine(t, []string{"111111", "222222"}, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			_, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)
			second, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)
			require.NoError(t, e.Consume(t.Context(), userID, second.Code))

			err = e.Consume(t.Context(), userID, "111111")

			require.ErrorIs(t, err, apperrors.ErrResetCodeUsed)
		})
	})

	t.Run("consume unknown code", func(t *testing.T) {
		withEngine(t, []string{"123456"}, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			_, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)
			require.NoError(t, e.Consume(t.Context(), userID, "123456"))

			err = e.Consume(t.Context(), userID, "000000")

			require.ErrorIs(t, err, apperrors.ErrResetCodeNotFound)
		})
	})

	t.Run("consume rolled back with caller transaction", func(t *testing.T) {
		withEngine(t, []string{"123456"}, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			_, err := e.IssueOTP(t.Context(), userID, 15*time.Minute)
			require.NoError(t, err)
			boom := errors.New("password change failed")

			err = st.InTx(t.Context(), func(tx repository.Storage) error {
				if err := e.WithStorage(tx).Consume(t.Context(), userID, "123456"); err != nil {
					return err
				}
				return boom
			})
			require.ErrorIs(t, err, boom)

			_, err = e.Verify(t.Context(), userID, "123456")
			require.NoError(t, err, "code is still active after rollback")
		})
	})

	t.Run("sweep", func(t *testing.T) {
		withEngine(t, []string{"111111", "222222"}, func(e *Engine, st repository.Storage, userID uuid.UUID, now *time.Time) {
			_, err := e.IssueOTP(t.Context(), userID, time.Minute)
			require.NoError(t, err)
			_, err = e.IssueOTP(t.Context(), userID, time.Hour)
			require.NoError(t, err)

			n, err := e.Sweep(t.Context(), issuedAt.Add(time.Minute))
			require.NoError(t, err)
			assert.Zero(t, n, "code expiring exactly now is kept")

			n, err = e.Sweep(t.Context(), issuedAt.Add(2*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, int64(1), n, "used and expired code removed")

			_, err = e.Verify(t.Context(), userID, "222222")
			require.NoError(t, err)
		})
	})
}
