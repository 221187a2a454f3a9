package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler sends each record to the rotating file and to the console.
// Each side keeps its own level check, so a failing file write never
// drops the console copy.
type teeHandler struct {
	file, console slog.Handler
}

func newTeeHandler(file, console slog.Handler) slog.Handler {
	return &teeHandler{file: file, console: console}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.file.Enabled(ctx, level) || t.console.Enabled(ctx, level)
}

func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var fileErr, consoleErr error
	if t.file.Enabled(ctx, r.Level) {
		fileErr = t.file.Handle(ctx, r.Clone())
	}
	if t.console.Enabled(ctx, r.Level) {
		consoleErr = t.console.Handle(ctx, r)
	}
	return errors.Join(fileErr, consoleErr)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{file: t.file.WithAttrs(attrs), console: t.console.WithAttrs(attrs)}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{file: t.file.WithGroup(name), console: t.console.WithGroup(name)}
}
