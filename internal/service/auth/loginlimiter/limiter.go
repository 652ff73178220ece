package loginlimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vparshin/authgate/internal/apperrors"
)

const (
	defaultMaxAttempts = 10
	defaultCooldown    = 15 * time.Minute
)

// Limiter throttles failed login attempts per username and per client IP.
// Counters live in redis: INCR on failure, EXPIRE sets the cooldown window
// on the first failure, successful login drops the username counter.
type Limiter struct {
	redis *redis.Client

	maxAttempts int64
	cooldown    time.Duration
}

type Config struct {
	// Failed attempts allowed within one cooldown window
	// If not set than default is used
	MaxAttempts int64

	// Counter lifetime
	// If not set than default is used
	Cooldown time.Duration
}

func New(client *redis.Client, cfg Config) *Limiter {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = defaultCooldown
	}

	return &Limiter{
		redis:       client,
		maxAttempts: cfg.MaxAttempts,
		cooldown:    cfg.Cooldown,
	}
}

// Enforce returns apperrors.ErrLoginRateLimited when the username or the IP
// already spent its failure budget. Call it before checking the password.
func (l *Limiter) Enforce(ctx context.Context, username string, ip string) error {
	if err := l.enforceKey(ctx, usernameKey(username)); err != nil {
		return err
	}

	if ip != "" {
		if err := l.enforceKey(ctx, ipKey(ip)); err != nil {
			return err
		}
	}

	return nil
}

// RecordFailure counts one failed attempt against the username and the IP
func (l *Limiter) RecordFailure(ctx context.Context, username string, ip string) error {
	keys := []string{usernameKey(username)}
	if ip != "" {
		keys = append(keys, ipKey(ip))
	}

	for _, key := range keys {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("limiter redis error: %w", err)
		}

		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.cooldown).Err(); err != nil {
				return fmt.Errorf("limiter redis error: %w", err)
			}
		}
	}

	return nil
}

// Reset drops the username failure counter after a successful login
// The IP counter is left alone: one good account must not launder an IP
func (l *Limiter) Reset(ctx context.Context, username string) error {
	if err := l.redis.Del(ctx, usernameKey(username)).Err(); err != nil {
		return fmt.Errorf("limiter redis error: %w", err)
	}
	return nil
}

func (l *Limiter) enforceKey(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	switch {
	case err == redis.Nil:
		return nil
	case err != nil:
		return fmt.Errorf("limiter redis error: %w", err)
	}

	if count >= l.maxAttempts {
		return apperrors.ErrLoginRateLimited
	}

	return nil
}

func usernameKey(username string) string {
	return "login:user:" + username
}

func ipKey(ip string) string {
	return "login:ip:" + ip
}
