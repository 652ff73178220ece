package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vparshin/authgate/internal/db"
	"github.com/vparshin/authgate/internal/handlers"
	"github.com/vparshin/authgate/internal/handlers/middleware"
	"github.com/vparshin/authgate/internal/logger"
	"github.com/vparshin/authgate/internal/repository/postgres"
	"github.com/vparshin/authgate/internal/service/auth"
	"github.com/vparshin/authgate/internal/service/auth/loginlimiter"
	"github.com/vparshin/authgate/internal/service/auth/tokenmanager"
	"github.com/vparshin/authgate/internal/service/session"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	cleaner *session.Cleaner
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize token manager with its two independent keys
	tm, err := tokenmanager.New(tokenmanager.Config{
		AccessSecretKey:  c.AccessSecretKey,
		RefreshSecretKey: c.RefreshSecretKey,
		AccessTTL:        c.AccessTokenTTL,
		RefreshTTL:       c.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	// Login limiter is optional: only wired when redis is configured
	var limiter auth.LoginLimiter
	if c.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		limiter = loginlimiter.New(client, loginlimiter.Config{})
	}

	authService, err := auth.NewService(auth.Config{Limiter: limiter}, tm, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mux := handlers.NewRouter(
		handlers.NewAuth(authService, log),
		middleware.AuthMiddleware(tm),
		middleware.LoggerMiddleware(log),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     log,
		cleaner:    session.NewCleaner(0, storage.Session(), log),
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	// Background purge of expired sessions
	cleanerStopped := s.cleaner.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-cleanerStopped

	return err
}
