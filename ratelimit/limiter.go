// Package ratelimit paces outbound frames with a token bucket, wrapping
// golang.org/x/time/rate the way internal/ratelimit/ratelimit.go wraps
// it, extended with the Enabled bypass and monotonic counters the
// streaming runtime's rate limiter requires.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket with capacity Burst and refill rate Rate
// tokens/second. When Enabled is false, Acquire always succeeds but
// counters still update.
type Limiter struct {
	limiter *rate.Limiter
	enabled bool

	total   atomic.Int64
	allowed atomic.Int64
	limited atomic.Int64
}

// New constructs a Limiter with the given refill rate (tokens/second)
// and burst capacity. If enabled is false, every Acquire succeeds.
func New(ratePerSec, burst float64, enabled bool) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), int(burst)),
		enabled: enabled,
	}
}

// Acquire attempts to consume one token without blocking. It always
// updates Total and either Allowed or Limited.
func (l *Limiter) Acquire() bool {
	l.total.Add(1)
	if !l.enabled || l.limiter.Allow() {
		l.allowed.Add(1)
		return true
	}
	l.limited.Add(1)
	return false
}

// AcquireBlocking waits (bounded by timeout, or indefinitely if timeout
// <= 0) until a token is available or ctx is cancelled. It returns false
// on ctx cancellation or timeout; the caller must surface that as a
// connection error rather than retry silently.
func (l *Limiter) AcquireBlocking(ctx context.Context, timeout time.Duration) bool {
	l.total.Add(1)
	if !l.enabled {
		l.allowed.Add(1)
		return true
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := l.limiter.Wait(waitCtx); err != nil {
		// Wait fails at once when the token cannot arrive before the
		// deadline; block until the deadline or cancellation instead.
		if _, ok := waitCtx.Deadline(); ok {
			<-waitCtx.Done()
		}
		l.limited.Add(1)
		return false
	}
	l.allowed.Add(1)
	return true
}

// Tokens returns the current fractional token level, per spec.md §4.5.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}

// Counters is a point-in-time read of the limiter's monotonic counters.
type Counters struct {
	Total   int64
	Allowed int64
	Limited int64
}

// Snapshot reads the current counters.
func (l *Limiter) Snapshot() Counters {
	return Counters{
		Total:   l.total.Load(),
		Allowed: l.allowed.Load(),
		Limited: l.limited.Load(),
	}
}
