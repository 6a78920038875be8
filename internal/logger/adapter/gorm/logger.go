// Package gorm routes gorm's SQL logging through zerolog.
package gorm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SlowThreshold marks queries slower than this as warnings.
const SlowThreshold = 200 * time.Millisecond

// Logger implements gorm's logger.Interface on top of the global zerolog logger.
type Logger struct {
	level gormlogger.LogLevel
}

// New returns a Logger. With debug set every statement is traced.
func New(debug bool) *Logger {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}

	return &Logger{level: level}
}

// LogMode returns a copy of the logger with the given level.
func (l *Logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &Logger{level: level}
}

// Info logs at info level.
func (l *Logger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		log.Info().Msgf(msg, args...)
	}
}

// Warn logs at warn level.
func (l *Logger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		log.Warn().Msgf(msg, args...)
	}
}

// Error logs at error level.
func (l *Logger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		log.Error().Msgf(msg, args...)
	}
}

// Trace logs a finished SQL statement. Not-found errors are expected and only traced.
func (l *Logger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		log.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query failed")
	case elapsed > SlowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		log.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		log.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
	}
}
