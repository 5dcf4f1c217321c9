package logging

import (
	"log/slog"
	"os"
	"strings"

	gormlogger "gorm.io/gorm/logger"
)

// Setup creates a configured *slog.Logger, sets it as the default, and returns it.
// The level parameter accepts: "debug", "info", "warn", "error" (case-insensitive).
// Defaults to info if the level string is unrecognized.
func Setup(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GormLevel maps the service log level onto gorm's SQL logger. SQL is only
// traced at debug.
func GormLevel(level string) gormlogger.LogLevel {
	switch ParseLevel(level) {
	case slog.LevelDebug:
		return gormlogger.Info
	case slog.LevelError:
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}
