package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vparshin/authgate/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, email string, username string, hashedPassword string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Session repository interface
// One row per issued refresh token, exact string match lookups only
type SessionRepo interface {
	// Create session in repository
	Create(ctx context.Context, session models.Session) (models.Session, error)

	// Return the live session that stores exactly refreshToken
	// Live means: not revoked and not expired at the call time
	// If no such session exists must return apperrors.ErrSessionNotFound
	GetLive(ctx context.Context, refreshToken string) (models.Session, error)

	// Revoke every live session of the user
	// Returns the number of sessions revoked
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete sessions that expired before the given time
	// Used by the background cleaner only
	DeleteExpired(ctx context.Context, expiredBefore time.Time) (int64, error)
}

// Storage aggregates all repositories over one db connection or transaction
type Storage interface {
	User() UserRepo
	Session() SessionRepo

	// Run fn within a db transaction
	InTx(ctx context.Context, fn func(Storage) error) error
}
