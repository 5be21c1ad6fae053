package log

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

// GormLoggerOptions tunes how ORM activity is reported.
type GormLoggerOptions struct {
	SlowThreshold time.Duration
	Level         gormlogger.LogLevel
}

// GormLogger forwards Gorm diagnostics to logrus.
type GormLogger struct {
	entry         *logrus.Entry
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger builds a Gorm logger backed by the provided logrus logger. The Gorm level
// defaults to Info when the logrus logger runs at debug or trace, and Warn otherwise.
func NewGormLogger(logger *logrus.Logger, opts GormLoggerOptions) *GormLogger {
	if logger == nil {
		logger = Discard()
	}

	level := opts.Level
	if level == 0 {
		level = gormlogger.Warn
		if logger.IsLevelEnabled(logrus.DebugLevel) {
			level = gormlogger.Info
		}
	}

	threshold := opts.SlowThreshold
	if threshold <= 0 {
		threshold = defaultSlowQueryThreshold
	}

	return &GormLogger{
		entry:         Component(logger, "gorm"),
		level:         level,
		slowThreshold: threshold,
	}
}

// LogMode returns a copy of the logger running at the given level.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.entry.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.entry.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.entry.Error(fmt.Sprintf(msg, data...))
	}
}

// Trace reports a finished statement. Record-not-found is treated as a normal outcome.
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	fields := func() logrus.Fields {
		sql, rows := fc()
		return logrus.Fields{
			"sql":         sql,
			"rows":        rows,
			"duration_ms": float64(elapsed.Microseconds()) / 1000,
		}
	}

	switch {
	case err != nil && l.level >= gormlogger.Error && !eris.Is(err, gorm.ErrRecordNotFound):
		l.entry.WithFields(fields()).WithField("error", err.Error()).Error("query failed")
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.entry.WithFields(fields()).WithField("threshold_ms", l.slowThreshold.Milliseconds()).Warn("slow query")
	case l.level >= gormlogger.Info:
		l.entry.WithFields(fields()).Debug("query executed")
	}
}
