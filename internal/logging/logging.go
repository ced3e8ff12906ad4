// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/config"
	"github.com/rs/zerolog"
)

// New returns a logger writing to stderr. An unparseable level falls back
// to info.
func New(cfg config.LogConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

func NewWithWriter(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "tigertix").Logger()
}
