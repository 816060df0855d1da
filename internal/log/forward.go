package log

import (
	"context"
	"log/slog"
)

// Current returns a logger that resolves the global logger on every record,
// so components built before Init still write to the run's destination.
func Current() *slog.Logger {
	return slog.New(forward{})
}

type forward struct {
	ops []func(slog.Handler) slog.Handler
}

func (f forward) target() slog.Handler {
	h := Get().Handler()
	for _, op := range f.ops {
		h = op(h)
	}
	return h
}

func (f forward) Enabled(ctx context.Context, level slog.Level) bool {
	return Get().Handler().Enabled(ctx, level)
}

func (f forward) Handle(ctx context.Context, r slog.Record) error {
	return f.target().Handle(ctx, r)
}

func (f forward) with(op func(slog.Handler) slog.Handler) forward {
	ops := make([]func(slog.Handler) slog.Handler, len(f.ops), len(f.ops)+1)
	copy(ops, f.ops)
	return forward{ops: append(ops, op)}
}

func (f forward) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.with(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f forward) WithGroup(name string) slog.Handler {
	return f.with(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}
