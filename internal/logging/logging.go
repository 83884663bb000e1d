// Package logging sets up slog handlers for the console and the daemon log
// file and counts warnings so a build can fail on them.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Console returns a colored handler for interactive output on w.
func Console(w io.Writer, level slog.Level) slog.Handler {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	})
}

// File returns a plain text handler for the daemon log file.
func File(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

// Counter forwards records to another handler and counts those at warning
// level or above. Handlers derived with WithAttrs and WithGroup share the
// count.
type Counter struct {
	next     slog.Handler
	warnings *atomic.Int64
}

func NewCounter(next slog.Handler) *Counter {
	return &Counter{next: next, warnings: new(atomic.Int64)}
}

func (c *Counter) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn || c.next.Enabled(ctx, level)
}

func (c *Counter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		c.warnings.Add(1)
	}
	if !c.next.Enabled(ctx, r.Level) {
		return nil
	}
	return c.next.Handle(ctx, r)
}

func (c *Counter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Counter{next: c.next.WithAttrs(attrs), warnings: c.warnings}
}

func (c *Counter) WithGroup(name string) slog.Handler {
	return &Counter{next: c.next.WithGroup(name), warnings: c.warnings}
}

// Warnings returns the number of warning-or-worse records seen.
func (c *Counter) Warnings() int64 {
	return c.warnings.Load()
}

// Reset zeroes the count.
func (c *Counter) Reset() {
	c.warnings.Store(0)
}
