package tokenmanager

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/clock"
	"github.com/nkiryanov/netcraft/internal/models"
)

func Test_TokenManager(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	newManager := func(t *testing.T, now *time.Time) *TokenManager {
		cfg := Config{SecretKey: "test-secret-key"}
		if now != nil {
			cfg.Clock = clock.Func(func() time.Time { return *now })
		}
		m, err := New(cfg)
		require.NoError(t, err, "token manager should be created without errors")
		return m
	}

	t.Run("new defaults", func(t *testing.T) {
		m, err := New(Config{SecretKey: "secret"})
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, "secret", m.key, "secret key should be set")
		require.Equal(t, defaultAccessTokenTTL, m.accessTTL, "default access token TTL should be set")
		require.Equal(t, defaultRefreshTokenTTL, m.refreshTTL, "default refresh token TTL")
		require.Equal(t, defaultSigningMethod, m.alg.Alg(), "default signing method should be set")
	})

	t.Run("new fails", func(t *testing.T) {
		_, err := New(Config{})
		require.Error(t, err, "secret key is required")

		_, err = New(Config{SecretKey: "secret", Alg: "ROT13"})
		require.Error(t, err, "unknown alg")
	})

	t.Run("GeneratePair", func(t *testing.T) {
		t.Run("return token pair", func(t *testing.T) {
			m := newManager(t, nil)

			pair, err := m.GeneratePair(userID)

			require.NoError(t, err)
			assert.NotEmpty(t, pair.Access.Value, "access token should not be empty")
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), pair.Access.ExpiresAt, time.Second)
			assert.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
			assert.WithinDuration(t, time.Now().Add(24*time.Hour), pair.Refresh.ExpiresAt, time.Second)
		})

		t.Run("access claims", func(t *testing.T) {
			m := newManager(t, nil)
			pair, err := m.GeneratePair(userID)
			require.NoError(t, err)

			token, err := jwt.ParseWithClaims(pair.Access.Value, &TokenClaims{}, func(token *jwt.Token) (any, error) {
				return []byte("test-secret-key"), nil
			})
			require.NoError(t, err)
			require.True(t, token.Valid, "access token should be valid")

			claims, ok := token.Claims.(*TokenClaims)
			require.True(t, ok, "claims should be of type TokenClaims")
			assert.Equal(t, userID, claims.UserID, "user ID in token should match")
			assert.Equal(t, models.TokenTypeAccess, claims.Type)
			assert.NotEmpty(t, claims.ID, "token has to has jti")
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second, "issued at should be close to now")
			assert.WithinDuration(t, pair.Access.ExpiresAt, claims.ExpiresAt.Time, 0, "access expires at should match token pair")
		})

		t.Run("generate different tokens", func(t *testing.T) {
			m := newManager(t, nil)

			pair1, err := m.GeneratePair(userID)
			require.NoError(t, err)
			pair2, err := m.GeneratePair(userID)
			require.NoError(t, err)

			assert.NotEqual(t, pair1.Refresh.Value, pair2.Refresh.Value, "refresh tokens should be different")
			assert.NotEqual(t, pair1.Access.Value, pair2.Access.Value, "access tokens should be different")
		})
	})

	t.Run("Parse", func(t *testing.T) {
		t.Run("valid tokens", func(t *testing.T) {
			m := newManager(t, nil)
			pair, err := m.GeneratePair(userID)
			require.NoError(t, err)

			access, err := m.ParseAccess(pair.Access.Value)
			require.NoError(t, err)
			refresh, err := m.ParseRefresh(pair.Refresh.Value)
			require.NoError(t, err)

			assert.Equal(t, userID, access.UserID)
			assert.Equal(t, models.TokenTypeAccess, access.Type)
			assert.WithinDuration(t, pair.Access.ExpiresAt, access.ExpiresAt, 0)
			assert.Equal(t, userID, refresh.UserID)
			assert.Equal(t, models.TokenTypeRefresh, refresh.Type)
			assert.NotEqual(t, access.ID, refresh.ID, "each token has its own jti")
		})

		t.Run("wrong token type", func(t *testing.T) {
			m := newManager(t, nil)
			pair, err := m.GeneratePair(userID)
			require.NoError(t, err)

			_, err = m.ParseAccess(pair.Refresh.Value)
			require.ErrorIs(t, err, apperrors.ErrTokenInvalid, "refresh token is not an access one")

			_, err = m.ParseRefresh(pair.Access.Value)
			require.ErrorIs(t, err, apperrors.ErrTokenInvalid, "access token is not a refresh one")
		})

		t.Run("not a token", func(t *testing.T) {
			m := newManager(t, nil)

			_, err := m.ParseAccess("invalid token")

			require.ErrorIs(t, err, apperrors.ErrTokenInvalid, "parsing even not a token should return an error")
		})

		t.Run("expired token", func(t *testing.T) {
			now := time.Now()
			m := newManager(t, &now)
			pair, err := m.GeneratePair(userID)
			require.NoError(t, err)

			now = now.Add(16 * time.Minute)

			_, err = m.ParseAccess(pair.Access.Value)
			require.ErrorIs(t, err, apperrors.ErrTokenInvalid, "token has to become expired")
			_, err = m.ParseRefresh(pair.Refresh.Value)
			require.NoError(t, err, "refresh token lives longer")
		})

		t.Run("signed with other key", func(t *testing.T) {
			other, err := New(Config{SecretKey: "other-key"})
			require.NoError(t, err)
			pair, err := other.GeneratePair(userID)
			require.NoError(t, err)

			_, err = newManager(t, nil).ParseAccess(pair.Access.Value)

			require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
		})

		t.Run("not signed token", func(t *testing.T) {
			m := newManager(t, nil)
			// Create valid but unsigned token
			token := jwt.NewWithClaims(
				jwt.SigningMethodNone,
				TokenClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						ID:        uuid.NewString(),
						IssuedAt:  jwt.NewNumericDate(time.Now()),
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
					},
					UserID: userID,
					Type:   models.TokenTypeAccess,
				},
			)
			access, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)

			_, err = m.ParseAccess(access)
			require.Error(t, err, "Valid token with empty alg must fail")
		})
	})
}
