// Package breaker implements the Closed/Open/HalfOpen circuit breaker
// gating reconnect attempts, wrapping github.com/sony/gobreaker/v2 the
// way the teacher's business/blockchain/infra/ethereum/subscriber.go uses
// its (unavailable in the pack) internal/circuitbreaker package:
// circuitbreaker.New[T](cfg) / cb.Execute(fn). The internal/circuitbreaker
// package itself isn't present anywhere in the retrieval pack, so this
// file is authored from that call-site shape rather than copied.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State mirrors gobreaker's three states under the names §4.6 uses.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return Open
	case gobreaker.StateHalfOpen:
		return HalfOpen
	default:
		return Closed
	}
}

// Config parametrizes the breaker per §4.6.
type Config struct {
	Name             string
	FailureThreshold uint32
	SuccessThreshold uint32
	FailureWindow    time.Duration
	MinOpenTime      time.Duration
	OnStateChange    func(name string, from, to State)
}

// Breaker is the non-blocking connect-attempt gate.
type Breaker struct {
	cb *gobreaker.TwoStepCircuitBreaker[struct{}]

	mu      sync.Mutex
	pending func(success bool)
}

// New constructs a Breaker from cfg.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.SuccessThreshold,
		Interval:    cfg.FailureWindow,
		Timeout:     cfg.MinOpenTime,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, fromGobreaker(from), fromGobreaker(to))
		}
	}
	return &Breaker{cb: gobreaker.NewTwoStepCircuitBreaker[struct{}](settings)}
}

// DefaultConfig returns sane defaults for name, matching the teacher's
// circuitbreaker.DefaultConfig(name) call-site shape.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		FailureWindow:    30 * time.Second,
		MinOpenTime:      10 * time.Second,
	}
}

// CanAttempt is the external guard; it never blocks. A true result must
// be followed by exactly one of RecordSuccess/RecordFailure.
func (b *Breaker) CanAttempt() bool {
	done, err := b.cb.Allow()
	if err != nil {
		return false
	}
	b.mu.Lock()
	b.pending = done
	b.mu.Unlock()
	return true
}

// RecordSuccess reports the outcome of the attempt CanAttempt most
// recently allowed. Idempotent: a call with no pending attempt is a
// no-op.
func (b *Breaker) RecordSuccess() {
	b.complete(true)
}

// RecordFailure reports a failed attempt.
func (b *Breaker) RecordFailure() {
	b.complete(false)
}

func (b *Breaker) complete(success bool) {
	b.mu.Lock()
	done := b.pending
	b.pending = nil
	b.mu.Unlock()
	if done != nil {
		done(success)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

// ErrOpen is returned by callers that want a typed sentinel for a
// rejected attempt (CanAttempt already folds this into a bool, this is
// exposed for callers wrapping Execute-style code).
var ErrOpen = errors.New("circuit breaker open")
