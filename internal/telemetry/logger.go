package telemetry

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig configures the root logger.
type LoggerConfig struct {
	Service string
	Version string
	Level   string // zerolog level name, default info
	Format  string // "console" for human-readable output, anything else for JSON
}

// NewLogger builds the root logger every component derives from.
func NewLogger(w io.Writer, cfg LoggerConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Str("version", cfg.Version).
		Logger()
}
