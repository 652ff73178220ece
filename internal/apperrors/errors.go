package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// One error for unknown user and wrong password on purpose:
	// the caller must not learn which part was wrong
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrSessionNotFound     = errors.New("session not found")
	ErrRefreshTokenInvalid = errors.New("refresh token is invalid")
	ErrAccessTokenInvalid  = errors.New("access token is invalid")

	ErrLoginRateLimited = errors.New("too many login attempts")
)
