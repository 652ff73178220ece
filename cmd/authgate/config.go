package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/vparshin/authgate/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction

	defaultAccessTokenTTL  = 60 * time.Second
	defaultRefreshTokenTTL = 24 * time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the authgate service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis address for the login limiter
	// Limiter is disabled when empty
	RedisAddr string

	// Secret keys to sign token payloads, must differ from each other
	AccessSecretKey  string
	RefreshSecretKey string

	// Token lifetimes
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		Environment:     defaultEnvironment,
		AccessTokenTTL:  defaultAccessTokenTTL,
		RefreshTokenTTL: defaultRefreshTokenTTL,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			if d, err := time.ParseDuration(value); err == nil {
				*o = d
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"REDIS_ADDR":         setString(&c.RedisAddr),
		"ACCESS_SECRET_KEY":  setString(&c.AccessSecretKey),
		"REFRESH_SECRET_KEY": setString(&c.RefreshSecretKey),
		"ACCESS_TOKEN_TTL":   setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL":  setDuration(&c.RefreshTokenTTL),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authgate", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for the login limiter (disabled if empty)")
	fs.StringVar(&c.AccessSecretKey, "access-secret-key", c.AccessSecretKey, "Secret key to sign access tokens")
	fs.StringVar(&c.RefreshSecretKey, "refresh-secret-key", c.RefreshSecretKey, "Secret key to sign refresh tokens")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-ttl", c.RefreshTokenTTL, "Refresh token lifetime")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}
