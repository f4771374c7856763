// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Level  string // debug, info, warn, error
	Format string // text or json

	// Debug toggles force level to debug for their subsystems by
	// tagging the root logger; handlers stay shared.
	DebugIndex   bool
	DebugResults bool
	DebugUI      bool
}

// Configure builds the root logger, installs it as slog's default,
// and returns it.
func Configure(cfg Config) *slog.Logger {
	level := parseLevel(cfg.Level)
	if cfg.DebugIndex || cfg.DebugResults || cfg.DebugUI {
		level = slog.LevelDebug
	}

	out := io.Writer(os.Stderr)
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}

	attrs := make([]slog.Attr, 0, 3)
	if cfg.DebugIndex {
		attrs = append(attrs, slog.Bool("debug_index", true))
	}
	if cfg.DebugResults {
		attrs = append(attrs, slog.Bool("debug_results", true))
	}
	if cfg.DebugUI {
		attrs = append(attrs, slog.Bool("debug_ui", true))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
