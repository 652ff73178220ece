package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one issued refresh token.
// A user may have many rows but at most one live one: login revokes the rest.
type Session struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	RefreshToken string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time // nil while the session is live
}
