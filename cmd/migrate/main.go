package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"tutorials/app/internal/config"
	appdb "tutorials/app/internal/db"
	applog "tutorials/app/internal/log"
	"tutorials/app/internal/tutorial"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}

	_, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Tags:        map[string]string{"db.driver": cfg.DBDriver},
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	dbConn, err := appdb.Open(appdb.Options{
		Driver:           cfg.DBDriver,
		Path:             cfg.DBPath,
		DSN:              cfg.DatabaseURL,
		SQLiteDriverName: cfg.SQLiteDriverName,
		Logger:           applog.NewGormLogger(logger, applog.GormLoggerOptions{}),
		BusyTimeout:      cfg.BusyTimeout,
		MaxOpenConns:     cfg.MaxOpenConns,
		MaxIdleConns:     cfg.MaxIdleConns,
	})
	if err != nil {
		logger.WithError(err).Error("opening database")
		return eris.Wrap(err, "opening database")
	}
	defer func() {
		if closeErr := appdb.Close(dbConn); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	if err := appdb.Ping(ctx, dbConn); err != nil {
		logger.WithError(err).Error("database unreachable")
		return eris.Wrap(err, "checking database connectivity")
	}

	if err := tutorial.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running migrations")
	}

	repository, err := tutorial.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building tutorial repository")
	}

	count, err := repository.Count(ctx)
	if err != nil {
		return eris.Wrap(err, "counting tutorials")
	}

	logger.WithFields(logrus.Fields{
		"driver":    cfg.DBDriver,
		"env":       cfg.Environment,
		"tutorials": count,
	}).Info("tutorial store ready")

	return nil
}
