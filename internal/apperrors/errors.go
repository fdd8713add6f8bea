package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user with this email or nickname already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidPassword   = errors.New("invalid password")

	ErrTokenInvalid        = errors.New("token is invalid")
	ErrTokenRevoked        = errors.New("token has been revoked")
	ErrTokenAlreadyRevoked = errors.New("token already revoked")

	ErrResetCodeNotFound = errors.New("no valid reset code found")
	ErrResetCodeInvalid  = errors.New("reset code is invalid")
	ErrResetCodeUsed     = errors.New("reset code is already used")

	ErrProjectNotFound = errors.New("project not found")
	ErrProjectNotOwned = errors.New("project belongs to another user")
	ErrProjectTooLarge = errors.New("project data too large")
	ErrProjectNameBad  = errors.New("project name must be 1-100 characters")
)
