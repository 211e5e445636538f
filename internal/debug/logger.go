// Package debug holds the engine-wide structured logger.
//
// The logger starts at warn level on stderr. Pool, executor and transaction
// code log through the package functions so a CLI or host application can
// swap the sink or level at any time with Init or InitWithLevel.
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

type state struct {
	logger *slog.Logger
	debug  bool
}

var current atomic.Pointer[state]

func init() {
	Init(false)
}

// Init logs to stderr at debug level when enable is set, otherwise at warn.
func Init(enable bool) {
	level := slog.LevelWarn
	if enable {
		level = slog.LevelDebug
	}
	InitWithLevel(os.Stderr, level)
}

// InitWithLevel writes records at or above level to w as logfmt text.
func InitWithLevel(w io.Writer, level slog.Level) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	current.Store(&state{logger: slog.New(handler), debug: level <= slog.LevelDebug})
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// Enabled reports whether debug records are written.
func Enabled() bool { return current.Load().debug }

// Logger returns the active logger.
func Logger() *slog.Logger { return current.Load().logger }

// With returns the active logger with args attached.
func With(args ...any) *slog.Logger { return Logger().With(args...) }

func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }
