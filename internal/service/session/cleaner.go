package session

import (
	"context"
	"time"

	"github.com/vparshin/authgate/internal/logger"
	"github.com/vparshin/authgate/internal/repository"
)

const (
	defaultCleanInterval = time.Hour
)

// Cleaner deletes session rows nothing can use anymore: expired ones.
// Revoked rows are kept until they expire so reuse detection still
// sees recently superseded tokens while they verify cryptographically.
type Cleaner struct {
	interval time.Duration
	sessions repository.SessionRepo
	logger   logger.Logger
}

func NewCleaner(interval time.Duration, sessions repository.SessionRepo, logger logger.Logger) *Cleaner {
	if interval == 0 {
		interval = defaultCleanInterval
	}

	return &Cleaner{
		interval: interval,
		sessions: sessions,
		logger:   logger,
	}
}

// Run cleans on every tick until ctx is cancelled
// Returned channel is closed when the cleaner fully stopped
func (c *Cleaner) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	c.logger.Debug("Starting session cleaner", "interval", c.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Debug("Session cleaner stopped by context")
				return

			case <-ticker.C:
				deleted, err := c.sessions.DeleteExpired(ctx, time.Now())
				if err != nil {
					c.logger.Error("Failed to delete expired sessions", "error", err)
					continue
				}

				if deleted > 0 {
					c.logger.Info("Deleted expired sessions", "count", deleted)
				}
			}
		}
	}()

	return idleStopped
}
