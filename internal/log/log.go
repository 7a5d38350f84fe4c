// Package log builds the process-wide slog logger.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and the optional rotating log file.
type Options struct {
	Level string
	File  string
}

// ParseLevel maps a level string to a slog.Level. Unknown strings yield
// info together with an error so callers can report the typo.
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
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}

// New returns a logger writing text records to stderr. When opts.File is
// set, JSON records are also written to a lumberjack-rotated file; the
// returned closer releases it.
func New(opts Options) (*slog.Logger, io.Closer) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v, using info\n", err)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	console := slog.NewTextHandler(os.Stderr, handlerOpts)
	if opts.File == "" {
		return slog.New(console), nopCloser{}
	}

	w := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    16, // MB
		MaxBackups: 3,
		Compress:   true,
	}
	file := slog.NewJSONHandler(w, handlerOpts)

	return slog.New(fanout{console, file}), w
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
