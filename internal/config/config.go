package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the tutorial store.
type Config struct {
	DBDriver         string `validate:"required,oneof=sqlite postgres"`
	DBPath           string `validate:"required_if=DBDriver sqlite"`
	DatabaseURL      string `validate:"required_if=DBDriver postgres"`
	SQLiteDriverName string `validate:"required,oneof=sqlite3 sqlite"`
	MaxOpenConns     int    `validate:"gte=0"`
	MaxIdleConns     int    `validate:"gte=0"`
	BusyTimeout      time.Duration
	LogLevel         string
	SentryDSN        string
	Environment      string
}

const (
	defaultDBDriver         = "sqlite"
	defaultDBPath           = "./data/tutorials.db"
	defaultSQLiteDriverName = "sqlite3"
	defaultBusyTimeout      = 5 * time.Second
	defaultLogLevel         = "info"
	defaultEnvironment      = "development"
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", defaultDBDriver)),
		DBPath:           getEnv("DB_PATH", defaultDBPath),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLiteDriverName: getEnv("SQLITE_DRIVER", defaultSQLiteDriverName),
		LogLevel:         getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		Environment:      getEnv("ENV", defaultEnvironment),
		BusyTimeout:      defaultBusyTimeout,
	}

	var err error
	if cfg.MaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS"); err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS"); err != nil {
		return nil, err
	}

	if raw := os.Getenv("DB_BUSY_TIMEOUT"); raw != "" {
		timeout, parseErr := time.ParseDuration(raw)
		if parseErr != nil {
			return nil, eris.Wrapf(parseErr, "invalid DB_BUSY_TIMEOUT value: %s", raw)
		}
		if timeout <= 0 {
			return nil, eris.Errorf("invalid DB_BUSY_TIMEOUT value: %s (must be positive)", raw)
		}
		cfg.BusyTimeout = timeout
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, eris.Wrap(err, "validating configuration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}
