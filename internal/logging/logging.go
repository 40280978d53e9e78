// Package logging builds the zerolog logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/olliecrow/screen_usage_monitor/internal/config"
)

// New returns a logger writing to w at the configured level and format.
func New(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	if cfg.Format == "text" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// NewFile opens cfg.File for appending, since the terminal belongs to the TUI.
// The returned closer must be called on exit.
func NewFile(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	if cfg.File == "" {
		return zerolog.Nop(), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	return New(cfg, f), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
