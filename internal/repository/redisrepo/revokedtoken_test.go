package redisrepo

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/models"
	"github.com/nkiryanov/netcraft/internal/testutil"
)

func newTestRepo(t *testing.T) (*RevokedTokenRepo, *miniredis.Miniredis) {
	t.Helper()

	rs := testutil.StartRedis(t)

	return NewRevokedTokenRepo(rs.Client), rs.Server
}

func Test_RevokedTokenRepo(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC)
	token := func(jti string, expiresAt time.Time) models.RevokedToken {
		return models.RevokedToken{
			JTI:       jti,
			TokenType: models.TokenTypeRefresh,
			UserID:    uuid.New(),
			RevokedAt: now,
			ExpiresAt: expiresAt,
		}
	}

	t.Run("create and exists", func(t *testing.T) {
		repo, mr := newTestRepo(t)

		err := repo.Create(t.Context(), token("abc", now.Add(time.Hour)))
		require.NoError(t, err)

		exists, err := repo.Exists(t.Context(), "abc")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.True(t, mr.Exists(defaultJTIPrefix+"abc"))

		exists, err = repo.Exists(t.Context(), "unknown")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("duplicate is conflict", func(t *testing.T) {
		repo, _ := newTestRepo(t)
		require.NoError(t, repo.Create(t.Context(), token("dup", now.Add(time.Hour))))

		err := repo.Create(t.Context(), token("dup", now.Add(2*time.Hour)))

		require.ErrorIs(t, err, apperrors.ErrTokenAlreadyRevoked)
	})

	t.Run("delete expired strictly before", func(t *testing.T) {
		repo, _ := newTestRepo(t)
		require.NoError(t, repo.Create(t.Context(), token("expired", now.Add(-time.Second))))
		require.NoError(t, repo.Create(t.Context(), token("boundary", now)))
		require.NoError(t, repo.Create(t.Context(), token("alive", now.Add(time.Second))))

		n, err := repo.DeleteExpired(t.Context(), now)

		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		for jti, want := range map[string]bool{"expired": false, "boundary": true, "alive": true} {
			exists, err := repo.Exists(t.Context(), jti)
			require.NoError(t, err)
			assert.Equal(t, want, exists, "jti %s", jti)
		}

		n, err = repo.DeleteExpired(t.Context(), now)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("failed index write leaves nothing", func(t *testing.T) {
		repo, mr := newTestRepo(t)
		// Index of wrong type makes ZADD fail with WRONGTYPE
		require.NoError(t, mr.Set(defaultExpiryIndex, "not a sorted set"))

		err := repo.Create(t.Context(), token("half", now.Add(-time.Second)))

		require.Error(t, err)
		exists, err := repo.Exists(t.Context(), "half")
		require.NoError(t, err)
		assert.False(t, exists, "jti key must not be written without index entry")

		mr.Del(defaultExpiryIndex)
		require.NoError(t, repo.Create(t.Context(), token("half", now.Add(-time.Second))), "retry should succeed")

		n, err := repo.DeleteExpired(t.Context(), now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "retried record is swept")
	})

	t.Run("jti does not collide with index", func(t *testing.T) {
		repo, _ := newTestRepo(t)

		for _, jti := range []string{"index:expires_at", "../revoked-index:expires_at", defaultExpiryIndex} {
			require.NoError(t, repo.Create(t.Context(), token(jti, now.Add(-time.Second))), "jti %q", jti)
		}
		require.NoError(t, repo.Create(t.Context(), token("regular", now.Add(time.Hour))))

		n, err := repo.DeleteExpired(t.Context(), now)

		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		exists, err := repo.Exists(t.Context(), "regular")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("redis unavailable", func(t *testing.T) {
		repo, mr := newTestRepo(t)
		mr.SetError("LOADING redis is loading the dataset")

		_, err := repo.Exists(t.Context(), "abc")

		require.Error(t, err)
	})
}
