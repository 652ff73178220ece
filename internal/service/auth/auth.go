package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vparshin/authgate/internal/apperrors"
	"github.com/vparshin/authgate/internal/models"
	"github.com/vparshin/authgate/internal/repository"
)

const (
	defaultRefreshCookieName = "jwt"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

// Manager to issue and validate signed tokens
type TokenManager interface {
	IssueAccess(username string) (models.IssuedToken, error)
	IssueRefresh(username string) (models.IssuedToken, error)
	ParseAccess(access string) (username string, err error)
	ParseRefresh(refresh string) (username string, err error)
}

// Throttle for failed login attempts
// Optional: service works without it
type LoginLimiter interface {
	Enforce(ctx context.Context, username string, ip string) error
	RecordFailure(ctx context.Context, username string, ip string) error
	Reset(ctx context.Context, username string) error
}

type Config struct {
	// Hasher to use during user registration or login
	// Defaults to BcryptHasher
	Hasher PasswordHasher

	// Name of the cookie carrying the refresh token
	// Defaults to "jwt"
	RefreshCookieName string

	// Failed login throttle, disabled when nil
	Limiter LoginLimiter
}

type AuthService struct {
	token   TokenManager
	hasher  PasswordHasher
	storage repository.Storage
	limiter LoginLimiter

	refreshCookieName string
}

func NewService(cfg Config, token TokenManager, storage repository.Storage) (*AuthService, error) {
	if token == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	cookieName := cfg.RefreshCookieName
	if cookieName == "" {
		cookieName = defaultRefreshCookieName
	}

	return &AuthService{
		token:             token,
		hasher:            hasher,
		storage:           storage,
		limiter:           cfg.Limiter,
		refreshCookieName: cookieName,
	}, nil
}

// Register creates the user with hashed password
// Registration issues no tokens: the user is expected to login after
func (s *AuthService) Register(ctx context.Context, email string, username string, password string) (models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, email, username, hash)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

// Login verifies the password and issues a fresh token pair.
// All live sessions of the user are revoked before the new one is stored,
// so the pair returned here belongs to the only live session.
// ip is used by the login limiter only and may be empty.
func (s *AuthService) Login(ctx context.Context, username string, password string, ip string) (models.TokenPair, error) {
	var pair models.TokenPair

	if s.limiter != nil {
		if err := s.limiter.Enforce(ctx, username, ip); err != nil {
			return pair, err
		}
	}

	user, err := s.storage.User().GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		// Burn comparable time on a throwaway compare so that unknown
		// usernames are not distinguishable by response latency
		_ = s.hasher.Compare(dummyHash, password)
		s.recordFailure(ctx, username, ip)
		return pair, apperrors.ErrInvalidCredentials
	case err != nil:
		return pair, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		s.recordFailure(ctx, username, ip)
		return pair, apperrors.ErrInvalidCredentials
	}

	access, err := s.token.IssueAccess(user.Username)
	if err != nil {
		return pair, fmt.Errorf("error while issuing access token. Err: %w", err)
	}
	refresh, err := s.token.IssueRefresh(user.Username)
	if err != nil {
		return pair, fmt.Errorf("error while issuing refresh token. Err: %w", err)
	}

	// Supersede: the previous refresh token stops working the moment
	// the new one is stored, single live session per user
	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		if _, err := st.Session().RevokeAllForUser(ctx, user.ID); err != nil {
			return err
		}

		_, err := st.Session().Create(ctx, models.Session{
			ID:           uuid.New(),
			UserID:       user.ID,
			RefreshToken: refresh.Value,
			CreatedAt:    time.Now().Truncate(time.Second),
			ExpiresAt:    refresh.ExpiresAt,
			RevokedAt:    nil,
		})
		return err
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving session. Err: %w", err)
	}

	if s.limiter != nil {
		// Reset failure is not worth failing a correct login
		_ = s.limiter.Reset(ctx, username)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
// The refresh token itself is not rotated: it stays valid until it
// expires or a new login supersedes it.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.IssuedToken, error) {
	session, err := s.storage.Session().GetLive(ctx, refresh)
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound):
		s.revokeOnReuse(ctx, refresh)
		return models.IssuedToken{}, err
	case err != nil:
		return models.IssuedToken{}, err
	}

	// The stored value matched, now the token must also verify on its own
	username, err := s.token.ParseRefresh(session.RefreshToken)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("%w: %w", apperrors.ErrRefreshTokenInvalid, err)
	}

	access, err := s.token.IssueAccess(username)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while issuing access token. Err: %w", err)
	}

	return access, nil
}

// A refresh token that verifies cryptographically but matches no live
// session was superseded: someone is replaying it. Revoke everything
// the decoded user still has live.
func (s *AuthService) revokeOnReuse(ctx context.Context, refresh string) {
	username, err := s.token.ParseRefresh(refresh)
	if err != nil {
		return
	}

	user, err := s.storage.User().GetUserByUsername(ctx, username)
	if err != nil {
		return
	}

	_, _ = s.storage.Session().RevokeAllForUser(ctx, user.ID)
}

// SetRefreshCookie delivers the refresh token over the protected side
// channel: http-only, same-site strict, scoped to all paths, lifetime
// bound to the token expiry
func (s *AuthService) SetRefreshCookie(w http.ResponseWriter, refresh models.IssuedToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    refresh.Value,
		Path:     "/",
		MaxAge:   int(time.Until(refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ReadRefreshToken extracts the refresh token from the request cookie
func (s *AuthService) ReadRefreshToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", apperrors.ErrRefreshTokenInvalid
	}
	return cookie.Value, nil
}

func (s *AuthService) recordFailure(ctx context.Context, username string, ip string) {
	if s.limiter == nil {
		return
	}
	_ = s.limiter.RecordFailure(ctx, username, ip)
}

// Valid bcrypt hash of an unknowable password, used to keep the
// not-found path as slow as the wrong-password path
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
