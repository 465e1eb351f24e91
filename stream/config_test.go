package stream

import (
	"testing"
	"time"

	"github.com/marketfeed/kstream/backoff"
)

func TestDefaultConfigIsUsable(t *testing.T) {
	cfg := DefaultConfig("wss://example.invalid/ws")
	if !cfg.QueueEnabled {
		t.Fatal("expected queueing enabled by default")
	}
	if cfg.QueueCapacity <= 0 {
		t.Fatal("expected a positive default queue capacity")
	}
	if !cfg.ChecksumValidation {
		t.Fatal("expected checksum validation on by default")
	}
	if cfg.resolveBackoff() == nil {
		t.Fatal("expected a non-nil default backoff policy")
	}
	if !cfg.TLS.VerifyPeer {
		t.Fatal("expected TLS peer verification on by default")
	}
}

func TestResolveBackoffPrefersExplicitPolicy(t *testing.T) {
	cfg := DefaultConfig("wss://example.invalid/ws")
	explicit := &backoff.Fixed{Delay: 5 * time.Second}
	cfg.Backoff = explicit
	if cfg.resolveBackoff() != backoff.Policy(explicit) {
		t.Fatal("expected resolveBackoff to return the explicit policy unchanged")
	}
}

func TestResolveBackoffBuildsExponentialFromLegacyFields(t *testing.T) {
	cfg := DefaultConfig("wss://example.invalid/ws")
	cfg.Backoff = nil
	cfg.ReconnectAttempts = 3
	cfg.ReconnectDelay = 2 * time.Second

	p := cfg.resolveBackoff()
	exp, ok := p.(*backoff.Exponential)
	if !ok {
		t.Fatalf("expected *backoff.Exponential, got %T", p)
	}
	if exp.Initial != 2*time.Second || exp.MaxAttempts != 3 {
		t.Fatalf("expected legacy fields to carry through, got %+v", exp)
	}
}

func TestResolveBackoffFallsBackToConservative(t *testing.T) {
	cfg := DefaultConfig("wss://example.invalid/ws")
	cfg.Backoff = nil
	cfg.ReconnectAttempts = 0

	p := cfg.resolveBackoff()
	if _, ok := p.(*backoff.Exponential); !ok {
		t.Fatalf("expected Conservative's concrete type (*backoff.Exponential), got %T", p)
	}
}

func TestWithEventSourceOptionSetsSource(t *testing.T) {
	cfg := DefaultConfig("wss://example.invalid/ws")
	src := newMemSource()
	WithEventSource(src)(&cfg)
	if cfg.eventSource != src {
		t.Fatal("expected WithEventSource to set eventSource")
	}
}

func TestNewRateLimiterDisabledByDefault(t *testing.T) {
	cfg := DefaultConfig("wss://example.invalid/ws")
	if cfg.newRateLimiter() != nil {
		t.Fatal("expected a nil limiter when RateLimiterEnabled is false")
	}
	cfg.RateLimiterEnabled = true
	cfg.RateLimiterRate = 10
	cfg.RateLimiterBurst = 5
	if cfg.newRateLimiter() == nil {
		t.Fatal("expected a non-nil limiter when enabled")
	}
}
