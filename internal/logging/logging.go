package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates a *slog.Logger writing JSON to stderr and optionally to logFile.
// It also sets the logger as the slog default so package-level slog calls work.
// The returned cleanup func closes the log file if one was opened; callers must
// defer it.
func New(level, logFile string) (*slog.Logger, func(), error) {
	return build(level, logFile, true)
}

// NewFile is like New but keeps stderr quiet when logFile is set. The
// interactive console uses it so log lines do not interleave with output.
func NewFile(level, logFile string) (*slog.Logger, func(), error) {
	return build(level, logFile, logFile == "")
}

func build(level, logFile string, stderr bool) (*slog.Logger, func(), error) {
	lvl := parseLevel(level)

	var writers []io.Writer
	if stderr {
		writers = append(writers, os.Stderr)
	}
	cleanup := func() {}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		cleanup = func() { _ = f.Close() }
	}

	w := io.MultiWriter(writers...)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// Component returns logger tagged with the worker or subsystem name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
