package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vparshin/authgate/internal/models"
)

const (
	defaultAccessTokenTTL  = 60 * time.Second
	defaultRefreshTokenTTL = 24 * time.Hour
	defaultSigningMethod   = "HS256"
)

type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Token manager config with sensible defaults
type Config struct {
	// Secret keys to sign token payloads
	// Both required; access and refresh keys are independent so that
	// possession of one token kind cannot forge the other
	AccessSecretKey  string
	RefreshSecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	accessKey  string
	refreshKey string

	alg jwt.SigningMethod

	accessTTL  time.Duration
	refreshTTL time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.AccessSecretKey == "" || cfg.RefreshSecretKey == "" {
		return nil, errors.New("both access and refresh secret keys must not be empty")
	}
	if cfg.AccessSecretKey == cfg.RefreshSecretKey {
		return nil, errors.New("access and refresh secret keys must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		accessKey:  cfg.AccessSecretKey,
		refreshKey: cfg.RefreshSecretKey,
		alg:        jwt.GetSigningMethod(cfg.Alg),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

// Issue short lived access token for the user
func (m *TokenManager) IssueAccess(username string) (models.IssuedToken, error) {
	return m.issue(username, m.accessKey, m.accessTTL)
}

// Issue refresh token for the user
// The caller is responsible for persisting the value next to the user
func (m *TokenManager) IssueRefresh(username string) (models.IssuedToken, error) {
	return m.issue(username, m.refreshKey, m.refreshTTL)
}

func (m *TokenManager) issue(username string, key string, ttl time.Duration) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Username: username,
		},
	)
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Parse and validate access token, return the username it was issued for
func (m *TokenManager) ParseAccess(access string) (string, error) {
	return m.parse(access, m.accessKey)
}

// Parse and validate refresh token, return the username it was issued for
func (m *TokenManager) ParseRefresh(refresh string) (string, error) {
	return m.parse(refresh, m.refreshKey)
}

func (m *TokenManager) parse(value string, key string) (string, error) {
	claims := &Claims{}

	// ParseWithClaims checks the signature and the expiry both,
	// either failure ends up here as an error
	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("error while parsing or validating token. Err: %w", err)
	}

	return claims.Username, nil
}
