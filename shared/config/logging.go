package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLogLevel converts a case-insensitive level name to an [slog.Level].
// An empty string means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", s)
	}
}

// NewLogger builds the process logger. JSON output is meant for the server,
// text output for interactive CLI use.
func NewLogger(w io.Writer, level string, jsonOutput bool) *slog.Logger {
	lvl, _ := ParseLogLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
