// Package logger provides the structured logger shared by the ingest binaries.
// It wraps "log/slog" so every service formats lines the same way (JSON or text)
// and stamps them with service identity.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rafaeljc/fitbit-ingest/internal/config"
)

// New returns a logger writing to os.Stdout.
func New(cfg *config.AppConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// Open returns a logger writing to os.Stdout and, when cfg.LogFile is set, also
// appending to that file. The returned closer must be called on shutdown.
func Open(cfg *config.AppConfig) (*slog.Logger, io.Closer, error) {
	if cfg.LogFile == "" {
		return New(cfg), io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %q: %w", cfg.LogFile, err)
	}
	return NewWithWriter(cfg, io.MultiWriter(os.Stdout, f)), f, nil
}

// NewWithWriter returns a logger writing to w. Tests pass a buffer.
func NewWithWriter(cfg *config.AppConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		panic("logger: config cannot be nil")
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.LogLevel),
		AddSource: cfg.Environment != config.EnvironmentProduction && cfg.LogLevel == "debug",
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Environment),
	)
}

// parseLevel converts a string to slog.Level. Defaults to INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
