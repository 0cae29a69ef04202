// Package logging provides the operational logger used throughout dueue:
// a single slog.Logger whose level can be changed at startup from the
// LOG_LEVEL configuration value.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	level    = new(slog.LevelVar)
)

func init() {
	level.Set(slog.LevelInfo)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	opLogger.Store(slog.New(handler))
}

// Op returns the operational logger for daemon/infrastructure logs.
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetLevelFromString sets the log level from a string such as "debug",
// "info", "warn", or "error". Unrecognized values are ignored and the
// previous level is kept.
func SetLevelFromString(raw string) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}
}
