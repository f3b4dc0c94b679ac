// Package log provides logging routines based on the slog package.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-logr/logr"
)

// LogLevel is an alias of slog.Level kept for readability at call sites.
type LogLevel = slog.Level

const (
	DebugLevel = slog.LevelDebug
	InfoLevel  = slog.LevelInfo
	WarnLevel  = slog.LevelWarn
	ErrorLevel = slog.LevelError
)

// DefaultLogger is the default logger used by the package-level helpers.
var DefaultLogger = slog.Default()

// Option configures the default logger.
type Option func(*options)

type options struct {
	level           LogLevel
	json            bool
	alsoLogToStderr bool
}

func defaultOptions() *options {
	return &options{level: InfoLevel}
}

// WithDevMode sets the logger to development mode: human-readable,
// DebugLevel, and always to stderr.
func WithDevMode() Option {
	return func(o *options) {
		o.json = false
		o.level = DebugLevel
		o.alsoLogToStderr = true
	}
}

// WithJSON switches the default logger to JSON output.
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithAlsoLogToStderr also logs to stderr in addition to the log file.
func WithAlsoLogToStderr() Option {
	return func(o *options) { o.alsoLogToStderr = true }
}

// WithLevel sets the minimum log level. Default is InfoLevel.
func WithLevel(level LogLevel) Option {
	return func(o *options) { o.level = level }
}

func replaceSource(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		if s, ok := a.Value.Any().(*slog.Source); ok {
			s.File = filepath.Base(s.File)
		}
	}
	return a
}

func buildLogger(o *options, w io.Writer) *slog.Logger {
	hOpts := &slog.HandlerOptions{
		AddSource:   true,
		Level:       o.level,
		ReplaceAttr: replaceSource,
	}
	if o.json {
		return slog.New(slog.NewJSONHandler(w, hOpts))
	}
	return slog.New(slog.NewTextHandler(w, hOpts))
}

// Init initializes the default logger and installs it as slog's default.
// logPath, when non-empty, also receives every record; stderr is always
// a target when WithAlsoLogToStderr or WithDevMode is set.
func Init(logPath string, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	var w io.Writer = os.Stderr
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		if o.alsoLogToStderr {
			w = io.MultiWriter(os.Stderr, f)
		} else {
			w = f
		}
	}

	DefaultLogger = buildLogger(o, w)
	slog.SetDefault(DefaultLogger)
	return nil
}

// Disable silences the default logger. Used in tests.
func Disable() {
	DefaultLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	slog.SetDefault(DefaultLogger)
}

func logf(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	logger := slog.Default()
	if !logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip [Callers, logf, Xf]
	r := slog.NewRecord(time.Now(), level, fmt.Sprintf(format, args...), pcs[0])
	_ = logger.Handler().Handle(ctx, r)
}

// Debugf logs a debug message via the default logger.
func Debugf(format string, args ...any) { logf(slog.LevelDebug, format, args...) }

// Infof logs an info message via the default logger.
func Infof(format string, args ...any) { logf(slog.LevelInfo, format, args...) }

// Warnf logs a warning message via the default logger.
func Warnf(format string, args ...any) { logf(slog.LevelWarn, format, args...) }

// Errorf logs an error message via the default logger.
func Errorf(format string, args ...any) { logf(slog.LevelError, format, args...) }

// New returns a logr.Logger backed by an slog handler, for components that
// prefer the logr interface. No package in this module calls it.
func New(enabled bool) logr.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if !enabled {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	}
	return logr.FromSlogHandler(logger.Handler())
}

// With returns a child logger with the given correlation id attached.
func With(correlationID string) *slog.Logger {
	return DefaultLogger.With("correlation_id", correlationID)
}
