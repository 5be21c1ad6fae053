package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// Registers the pure-Go "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// SQLiteDriverCGO names the mattn/go-sqlite3 driver used by gorm.io/driver/sqlite.
	SQLiteDriverCGO = "sqlite3"
	// SQLiteDriverPure names the modernc.org/sqlite driver.
	SQLiteDriverPure = "sqlite"
)

// Options controls how the database connection is initialised.
type Options struct {
	Driver           string
	Path             string
	DSN              string
	SQLiteDriverName string
	Logger           logger.Interface
	BusyTimeout      time.Duration
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxIdle      time.Duration
	ConnMaxLife      time.Duration
}

// Open establishes a database connection using Gorm.
func Open(opts Options) (*gorm.DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}

	gormLogger := opts.Logger
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	var (
		db  *gorm.DB
		err error
	)

	switch opts.Driver {
	case DriverSQLite:
		db, err = openSQLite(&opts, gormLogger)
	case DriverPostgres:
		db, err = openPostgres(opts, gormLogger)
	default:
		return nil, eris.Errorf("unsupported database driver: %s", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := applyConnectionSettings(db, opts); err != nil {
		return nil, discard(db, err)
	}

	if opts.Driver == DriverSQLite {
		if err := enforcePragmas(db, opts.BusyTimeout); err != nil {
			return nil, discard(db, err)
		}
	}

	return db, nil
}

// discard closes a half-initialised connection and returns the error that caused it.
func discard(db *gorm.DB, cause error) error {
	if closeErr := Close(db); closeErr != nil {
		return eris.Wrapf(cause, "closing after failed setup also failed: %v", closeErr)
	}
	return cause
}

func openSQLite(opts *Options, gormLogger logger.Interface) (*gorm.DB, error) {
	if opts.Path == "" {
		return nil, eris.New("database path is required")
	}

	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	if opts.SQLiteDriverName == "" {
		opts.SQLiteDriverName = SQLiteDriverCGO
	}

	busyTimeoutMillis := opts.BusyTimeout / time.Millisecond

	var dsn string
	switch opts.SQLiteDriverName {
	case SQLiteDriverCGO:
		dsn = fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1&_journal_mode=WAL", opts.Path, busyTimeoutMillis)
	case SQLiteDriverPure:
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", opts.Path, busyTimeoutMillis)
	default:
		return nil, eris.Errorf("unsupported sqlite driver: %s", opts.SQLiteDriverName)
	}

	dialector := sqlite.New(sqlite.Config{DriverName: opts.SQLiteDriverName, DSN: dsn})

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, eris.Wrap(err, "opening sqlite database")
	}

	return db, nil
}

func openPostgres(opts Options, gormLogger logger.Interface) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, eris.New("database DSN is required")
	}

	db, err := gorm.Open(postgres.Open(opts.DSN), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, eris.Wrap(err, "opening postgres database")
	}

	return db, nil
}

func applyConnectionSettings(db *gorm.DB, opts Options) error {
	sqlDB, err := db.DB()
	if err != nil {
		return eris.Wrap(err, "retrieving sql.DB from gorm")
	}

	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}

	if opts.ConnMaxIdle > 0 {
		sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdle)
	}

	if opts.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLife)
	}

	return nil
}

func enforcePragmas(db *gorm.DB, busyTimeout time.Duration) error {
	timeoutMillis := int(busyTimeout / time.Millisecond)

	if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		return eris.Wrap(err, "enabling foreign keys pragma")
	}

	if err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d;", timeoutMillis)).Error; err != nil {
		return eris.Wrap(err, "configuring busy timeout pragma")
	}

	if err := db.Exec("PRAGMA journal_mode = WAL;").Error; err != nil {
		return eris.Wrap(err, "setting journal mode to WAL")
	}

	return nil
}

// Close releases the underlying database resources.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return eris.Wrap(err, "retrieving sql.DB for close")
	}

	if err := sqlDB.Close(); err != nil {
		return eris.Wrap(err, "closing database connection")
	}

	return nil
}

// SQLDB exposes the underlying *sql.DB for advanced use cases.
func SQLDB(db *gorm.DB) (*sql.DB, error) {
	if db == nil {
		return nil, eris.New("gorm.DB is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, eris.Wrap(err, "retrieving sql.DB")
	}

	return sqlDB, nil
}

// Ping verifies the database is reachable.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := SQLDB(db)
	if err != nil {
		return err
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return eris.Wrap(err, "pinging database")
	}

	return nil
}
