// Package logging builds the slog logger shared by the binaries:
//   - PROCRASTABS_LOG_FORMAT picks text or json, otherwise text on a terminal
//   - PROCRASTABS_LOG_LEVEL sets the level (debug/info/warn/error)
//   - the run id stored in a context is available to log filters
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	logfilter "github.com/jmylchreest/slog-logfilter"
	"github.com/mattn/go-isatty"
)

type ContextKey string

const RunIDKey ContextKey = "log_run_id"

// WithRunID tags ctx with the daemon run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID extracts the run id from context.
func GetRunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(RunIDKey).(string); ok {
		return v
	}
	return ""
}

var registerOnce sync.Once

func registerContextExtractors() {
	registerOnce.Do(func() {
		logfilter.RegisterContextExtractor("run_id", func(ctx context.Context) (string, bool) {
			id := GetRunID(ctx)
			return id, id != ""
		})
	})
}

// New creates a logger writing to out.
func New(out io.Writer) *slog.Logger {
	registerContextExtractors()
	return logfilter.New(
		logfilter.WithLevel(parseLogLevel(os.Getenv("PROCRASTABS_LOG_LEVEL"))),
		logfilter.WithFormat(formatFor(os.Getenv("PROCRASTABS_LOG_FORMAT"), out)),
		logfilter.WithOutput(out),
		logfilter.WithSource(false),
	)
}

// SetDefault creates a stderr logger and installs it as the slog default.
func SetDefault() *slog.Logger {
	logger := New(os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the global log level at runtime.
func SetLevel(level slog.Level) {
	logfilter.SetLevel(level)
}

func formatFor(env string, out io.Writer) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "json":
		return "json"
	case "text":
		return "text"
	}
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "text"
	}
	return "json"
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
