package models

import (
	"time"

	"github.com/google/uuid"
)

// One-time password reset code
type ResetCode struct {
	ID        int64
	UserID    uuid.UUID
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time // nil if code not used
	IsUsed    bool
}

// Active code is the only one which can satisfy verification
func (c ResetCode) IsActive(now time.Time) bool {
	return !c.IsUsed && c.ExpiresAt.After(now)
}

// Time left until the code expires; zero if it expired already
func (c ResetCode) ValidFor(now time.Time) time.Duration {
	left := c.ExpiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
