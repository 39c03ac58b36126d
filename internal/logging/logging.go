// Package logging builds the process slog.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// File switches output to a rotating JSON log file.
	File string
	// Writer overrides stderr for text output; used by tests.
	Writer io.Writer
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%s: invalid log level", s)
}

// New returns a logger and a closer for its output. An unknown level falls
// back to info and is reported on the returned logger.
func New(opts Options) (*slog.Logger, io.Closer) {
	lvl, lerr := ParseLevel(opts.Level)
	var h slog.Handler
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		w := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    64, // MB
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
		closer = w
	} else {
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	l := slog.New(h)
	if lerr != nil {
		l.Warn("falling back to info", "err", lerr)
	}
	l.Debug("System information",
		slog.String("GOARCH", runtime.GOARCH),
		slog.String("GOOS", runtime.GOOS),
		slog.Int("NumCPUs", runtime.NumCPU()))
	return l, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
