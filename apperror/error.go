// Package apperror defines the typed error kinds surfaced through the
// runtime's error callback (see the Kind table in the streaming-runtime
// specification's error handling section).
package apperror

import (
	"fmt"
	"runtime"
	"time"
)

// Kind is one of the fixed error kinds the runtime can surface. The zero
// value, None, is a sentinel that converts to false.
type Kind string

const (
	None                 Kind = ""
	ConnectionFailed     Kind = "CONNECTION_FAILED"
	ConnectionClosed     Kind = "CONNECTION_CLOSED"
	AuthenticationFailed Kind = "AUTHENTICATION_FAILED"
	InvalidSymbol        Kind = "INVALID_SYMBOL"
	ParseError           Kind = "PARSE_ERROR"
	ChecksumMismatch     Kind = "CHECKSUM_MISMATCH"
	QueueOverflow        Kind = "QUEUE_OVERFLOW"
	Timeout              Kind = "TIMEOUT"
	CallbackError        Kind = "CALLBACK_ERROR"
)

// Bool reports whether the kind is anything other than None.
func (k Kind) Bool() bool { return k != None }

// Error is the concrete error type passed to the runtime's error callback.
type Error struct {
	Kind      Kind
	Message   string
	Channel   string
	Symbol    string
	Timestamp time.Time
	cause     error
	stack     []uintptr
}

// Option mutates an Error during construction.
type Option func(*Error)

// WithMessage sets a human-readable message.
func WithMessage(msg string) Option {
	return func(e *Error) { e.Message = msg }
}

// WithCause attaches an underlying error for Unwrap.
func WithCause(err error) Option {
	return func(e *Error) { e.cause = err }
}

// WithChannel records the originating channel name.
func WithChannel(channel string) Option {
	return func(e *Error) { e.Channel = channel }
}

// WithSymbol records the originating symbol.
func WithSymbol(symbol string) Option {
	return func(e *Error) { e.Symbol = symbol }
}

// New builds an *Error of the given kind, capturing a stack trace.
func New(kind Kind, opts ...Option) *Error {
	e := &Error{Kind: kind, Timestamp: time.Now(), stack: captureStack()}
	for _, opt := range opts {
		opt(e)
	}
	if e.Message == "" {
		e.Message = string(kind)
	}
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is compares by Kind, matching the teacher's code-based comparison.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func captureStack() []uintptr {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	return pcs[:n]
}

// Stack renders the captured stack as frame lines, used for logging.
func (e *Error) Stack() []string {
	frames := runtime.CallersFrames(e.stack)
	var out []string
	for {
		f, more := frames.Next()
		out = append(out, fmt.Sprintf("%s\n\t%s:%d", f.Function, f.File, f.Line))
		if !more {
			break
		}
	}
	return out
}

// Wrap produces a ConnectionFailed-style wrapper preserving kind if err is
// already an *Error, else constructs a new one of the given kind.
func Wrap(kind Kind, err error, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*Error); ok {
		return ae
	}
	opts = append(opts, WithCause(err), WithMessage(err.Error()))
	return New(kind, opts...)
}
