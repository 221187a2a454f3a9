package sqlite

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm/logger"
)

// slowQueryThreshold marks queries worth a warning.
const slowQueryThreshold = time.Second

// gormLogger routes gorm's logging to slog.
type gormLogger struct {
	log      *slog.Logger
	LogLevel logger.LogLevel
}

func newGormLogger(l *slog.Logger) *gormLogger {
	return &gormLogger{log: l, LogLevel: logger.Warn}
}

// LogMode sets the log level.
func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.log.InfoContext(ctx, msg, "data", data)
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.log.WarnContext(ctx, msg, "data", data)
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.log.ErrorContext(ctx, msg, "data", data)
	}
}

// Trace logs executed SQL.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{
		"sql", sql,
		"rows", rows,
		"timeMs", float64(elapsed.Nanoseconds()) / 1e6,
	}

	switch {
	case err != nil && l.LogLevel >= logger.Error:
		l.log.ErrorContext(ctx, "sql failed", append(fields, "error", err)...)
	case elapsed > slowQueryThreshold && l.LogLevel >= logger.Warn:
		l.log.WarnContext(ctx, "slow sql", append(fields, "threshold", slowQueryThreshold.String())...)
	case l.LogLevel == logger.Info:
		l.log.DebugContext(ctx, "sql", fields...)
	}
}
