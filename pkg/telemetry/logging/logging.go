// Package logging configures the process-wide structured logger from the
// telemetry configuration.
package logging

import (
	"io"
	"log/slog"
	"os"

	"myinfra-hq/smartgate/pkg/config"
)

// Setup builds a slog.Logger per the configuration, installs it as the
// process default, and returns it. An unknown level or format falls back
// to info/JSON rather than failing startup.
func Setup(cfg *config.LoggingConfig) *slog.Logger {
	return SetupWithWriter(cfg, os.Stdout)
}

// SetupWithWriter is Setup with an explicit output writer, for tests.
func SetupWithWriter(cfg *config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
