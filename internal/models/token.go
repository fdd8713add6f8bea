package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims of issued (access or refresh) token the service cares about
type TokenClaims struct {
	ID        string // jti
	Type      string
	UserID    uuid.UUID
	ExpiresAt time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issues by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Revoked token record. Exists only until the token itself expires
type RevokedToken struct {
	JTI       string
	TokenType string
	UserID    uuid.UUID
	RevokedAt time.Time
	ExpiresAt time.Time
}

// Build revocation record from token claims
func NewRevokedToken(claims TokenClaims, revokedAt time.Time) RevokedToken {
	return RevokedToken{
		JTI:       claims.ID,
		TokenType: claims.Type,
		UserID:    claims.UserID,
		RevokedAt: revokedAt,
		ExpiresAt: claims.ExpiresAt,
	}
}
