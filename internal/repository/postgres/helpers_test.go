package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/netcraft/internal/models"
	"github.com/nkiryanov/netcraft/internal/repository"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

// Create user with unique nickname and email
func createTestUser(t *testing.T, db DBTX) models.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	r := UserRepo{db: db}
	user, err := r.CreateUser(t.Context(), repository.CreateUserParams{
		Nickname:       "user-" + suffix,
		Email:          suffix + "@example.com",
		HashedPassword: "hashedpassword123",
	})
	require.NoError(t, err)

	return user
}
