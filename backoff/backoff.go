// Package backoff provides pluggable reconnect-delay policies, grounded
// on the jittered-doubling logic the teacher repo inlines into its
// reconnect loop (internal/wsconn.go's ConnectWithRetry/reconnect),
// generalized here into a reusable, cloneable Policy.
package backoff

import (
	"math/rand"
	"time"
)

// Policy computes the delay before each reconnect attempt.
type Policy interface {
	// NextDelay returns the delay before the next attempt and advances
	// the attempt counter.
	NextDelay() time.Duration
	// Reset clears the attempt counter; call after each successful
	// connection.
	Reset()
	// ShouldStop reports whether the attempt budget is exhausted.
	ShouldStop() bool
	// Clone returns an independent copy with a fresh attempt counter,
	// so the runtime can hand an isolated instance to a retry loop.
	Clone() Policy
}

// Fixed is a constant-delay policy.
type Fixed struct {
	Delay       time.Duration
	MaxAttempts int // 0 = unbounded
	attempts    int
}

func (f *Fixed) NextDelay() time.Duration {
	f.attempts++
	return f.Delay
}

func (f *Fixed) Reset() { f.attempts = 0 }

func (f *Fixed) ShouldStop() bool {
	return f.MaxAttempts > 0 && f.attempts >= f.MaxAttempts
}

func (f *Fixed) Clone() Policy {
	return &Fixed{Delay: f.Delay, MaxAttempts: f.MaxAttempts}
}

// None never delays.
type None struct {
	MaxAttempts int
	attempts    int
}

func (n *None) NextDelay() time.Duration {
	n.attempts++
	return 0
}

func (n *None) Reset() { n.attempts = 0 }

func (n *None) ShouldStop() bool {
	return n.MaxAttempts > 0 && n.attempts >= n.MaxAttempts
}

func (n *None) Clone() Policy {
	return &None{MaxAttempts: n.MaxAttempts}
}

// Exponential is delay_n = clamp(initial*multiplier^n, 0, max) * (1 +
// U[-jitter, +jitter]), floored at zero.
type Exponential struct {
	Initial     time.Duration
	Multiplier  float64
	Max         time.Duration
	Jitter      float64 // in [0, 1]
	MaxAttempts int     // 0 = unbounded

	attempts int
	rng      *rand.Rand
}

func (e *Exponential) NextDelay() time.Duration {
	n := e.attempts
	e.attempts++

	base := float64(e.Initial)
	for i := 0; i < n; i++ {
		base *= e.Multiplier
	}
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	if base < 0 {
		base = 0
	}

	if e.Jitter > 0 {
		r := e.ensureRand()
		u := (r.Float64()*2 - 1) * e.Jitter // U[-jitter, +jitter]
		base *= 1 + u
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}

func (e *Exponential) ensureRand() *rand.Rand {
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e.rng
}

func (e *Exponential) Reset() { e.attempts = 0 }

func (e *Exponential) ShouldStop() bool {
	return e.MaxAttempts > 0 && e.attempts >= e.MaxAttempts
}

func (e *Exponential) Clone() Policy {
	return &Exponential{
		Initial:     e.Initial,
		Multiplier:  e.Multiplier,
		Max:         e.Max,
		Jitter:      e.Jitter,
		MaxAttempts: e.MaxAttempts,
	}
}
