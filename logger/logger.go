// Package logger provides the structured logging sink used across the
// module. It is a thin adapter over zerolog, matching the teacher
// repo's LoggerInterface call shape.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// KV is a single structured logging field.
type KV struct {
	Key   string
	Value any
}

// F builds a KV pair, shorthand used at call sites.
func F(key string, value any) KV { return KV{Key: key, Value: value} }

// Interface is the logging contract components depend on.
type Interface interface {
	Debug(ctx context.Context, msg string, fields ...KV)
	Info(ctx context.Context, msg string, fields ...KV)
	Warn(ctx context.Context, msg string, fields ...KV)
	Error(ctx context.Context, msg string, fields ...KV)
}

// zerologLogger backs Interface with zerolog.
type zerologLogger struct {
	log zerolog.Logger
}

// New builds a zerolog logger writing JSON lines to w (stderr when w is
// nil) at the given level ("debug", "info",
// "warn", "error"). An unrecognized level defaults to info.
func New(level string, w io.Writer) Interface {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &zerologLogger{log: l}
}

func (z *zerologLogger) event(e *zerolog.Event, msg string, fields []KV) {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Value)
	}
	e.Msg(msg)
}

func (z *zerologLogger) Debug(_ context.Context, msg string, fields ...KV) {
	z.event(z.log.Debug(), msg, fields)
}

func (z *zerologLogger) Info(_ context.Context, msg string, fields ...KV) {
	z.event(z.log.Info(), msg, fields)
}

func (z *zerologLogger) Warn(_ context.Context, msg string, fields ...KV) {
	z.event(z.log.Warn(), msg, fields)
}

func (z *zerologLogger) Error(_ context.Context, msg string, fields ...KV) {
	z.event(z.log.Error(), msg, fields)
}

// Noop is a logger that discards everything; it's the default so the
// core never requires a concrete logging backend.
type noop struct{}

func (noop) Debug(context.Context, string, ...KV) {}
func (noop) Info(context.Context, string, ...KV)  {}
func (noop) Warn(context.Context, string, ...KV)  {}
func (noop) Error(context.Context, string, ...KV) {}

// Noop returns a logger that discards everything.
func Noop() Interface { return noop{} }
