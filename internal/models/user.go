package models

import (
	"time"

	"github.com/google/uuid"
)

// User as stored in users table.
// Nickname and Email are unique, Email is kept lowercased.
type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Nickname       string
	Email          string
	FirstName      string
	LastName       string
	HashedPassword string
}

// Name to address the user with in messages
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Nickname
}
