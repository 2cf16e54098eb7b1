// ABOUTME: slog construction for library packages
// ABOUTME: Maps LEADBOOK_LOG_LEVEL names onto slog levels
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LEADBOOK_LOG_LEVEL %q", level)
	}
}

// NewLogger returns a text logger on stderr. Unknown levels fall back to info.
func NewLogger(level string) *slog.Logger {
	lvl, _ := ParseLevel(level)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
