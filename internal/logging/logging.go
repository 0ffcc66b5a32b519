package logging

import (
	"log/slog"
	"os"
	"strings"
)

const service = "fraudsim"

// NewLogger builds the process-wide JSON logger. Unknown level strings fall
// back to info; every record carries the service name so mixed log streams
// stay attributable.
func NewLogger(level string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(h).With("service", service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
