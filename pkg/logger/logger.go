package logger

import (
	"os"
	"strings"
	"time"

	"github.com/research-output-api/internal/config"
	"github.com/rs/zerolog"
)

// New creates a new zerolog logger with structured output
func New(cfg config.LogConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	// Use pretty console output in development
	if cfg.Format == "pretty" || os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(level).
			With().
			Timestamp().
			Caller().
			Str("service", "research-output-api").
			Logger()
	}

	// JSON output for production
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", "research-output-api").
		Logger()
}
