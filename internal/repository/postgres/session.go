package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vparshin/authgate/internal/apperrors"
	"github.com/vparshin/authgate/internal/models"
)

type SessionRepo struct {
	DB DBTX
}

const createSession = `-- name: CreateSession
INSERT INTO sessions (id, user_id, refresh_token, created_at, expires_at, revoked_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, refresh_token, created_at, expires_at, revoked_at
`

func (r *SessionRepo) Create(ctx context.Context, session models.Session) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, createSession,
		session.ID, session.UserID, session.RefreshToken,
		session.CreatedAt, session.ExpiresAt, session.RevokedAt,
	)
	created, err := pgx.CollectOneRow(rows, rowToSession)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getLiveSession = `-- name: GetLiveSession by the exact refresh token string
SELECT id, user_id, refresh_token, created_at, expires_at, revoked_at
FROM sessions
WHERE refresh_token = $1
  AND revoked_at IS NULL
  AND expires_at > $2
`

// Return the live session that stores exactly refreshToken
// Revoked or expired rows are invisible here: a superseded token
// must look the same as a token that never existed
func (r *SessionRepo) GetLive(ctx context.Context, refreshToken string) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, getLiveSession, refreshToken, time.Now())
	session, err := pgx.CollectOneRow(rows, rowToSession)

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, apperrors.ErrSessionNotFound
	default:
		return session, fmt.Errorf("db error: %w", err)
	}
}

const revokeAllForUser = `-- name: RevokeAllForUser
UPDATE sessions
SET revoked_at = $2
WHERE user_id = $1 AND revoked_at IS NULL
`

// Revoke every live session of the user
// Must not rewrite revoked_at of already revoked sessions
func (r *SessionRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, revokeAllForUser, userID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}

const deleteExpiredSessions = `-- name: DeleteExpiredSessions
DELETE FROM sessions
WHERE expires_at < $1
`

func (r *SessionRepo) DeleteExpired(ctx context.Context, expiredBefore time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredSessions, expiredBefore)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}

func rowToSession(row pgx.CollectableRow) (models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshToken, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt)
	return s, err
}
