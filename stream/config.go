package stream

import (
	"time"

	"github.com/marketfeed/kstream/backoff"
	"github.com/marketfeed/kstream/book"
	"github.com/marketfeed/kstream/breaker"
	"github.com/marketfeed/kstream/logger"
	"github.com/marketfeed/kstream/ratelimit"
	"github.com/marketfeed/kstream/sequence"
	"github.com/marketfeed/kstream/strategy"
	"github.com/marketfeed/kstream/transport"
	"github.com/marketfeed/kstream/wire"
)

// Callbacks holds every user-facing event hook. A nil callback is
// simply never invoked; none are required.
type Callbacks struct {
	OnTicker        func(wire.Ticker)
	OnTrade         func(wire.Trade)
	OnBook          func(*book.OrderBook)
	OnOHLC          func(wire.OHLC)
	OnOrder         func(wire.Order)
	OnOwnTrade      func(wire.OwnTrade)
	OnBalance       func(wire.Balance)
	OnSubscribed    func(channel string, symbols []string)
	OnUnsubscribed  func(channel string, symbols []string)
	OnError         func(error)
	OnGap           func(sequence.Gap)
	OnReconnect     func(attempt int, delay time.Duration, reason string)
	OnAlert         func(strategy.Alert)
	OnStrategyError func(name string, err error)
}

// Config is the full user-facing configuration surface, per spec.md
// §6's binding field list. Grounded on internal/config/config.go's
// flat-struct-with-DefaultConfig style.
type Config struct {
	URL       string
	APIKey    string
	APISecret string // blank disables private-channel auth
	UserAgent string

	QueueEnabled  bool
	QueueCapacity int // power of two

	ChecksumValidation bool

	Backoff backoff.Policy

	// Legacy reconnect surface, deprecated in favor of Backoff: when
	// ReconnectAttempts > 0 and Backoff is nil, an Exponential policy is
	// constructed from these two fields. See SPEC_FULL.md §5.
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	GapDetection sequence.Config

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	HeartbeatIdle  time.Duration // carried from configuration; the runtime does not read it, and a silent connection is detected only through ReadTimeout

	TLS transport.TLSConfig

	RateLimiterEnabled bool
	RateLimiterRate    float64
	RateLimiterBurst   float64

	Breaker breaker.Config

	Callbacks Callbacks
	Logger    logger.Interface

	// eventSource, set via WithEventSource, replaces the live transport
	// with an offline/replay frame source. Internal: not part of the
	// binding external configuration surface, only reachable through the
	// functional option below.
	eventSource EventSource
}

// EventSource supplies frames in place of a live transport, for offline
// replay or testing. Next returns io.EOF-wrapped errors (via the
// standard io.EOF sentinel) when exhausted.
type EventSource interface {
	Next() ([]byte, error)
	Close() error
}

// Option mutates a Config; used for surface that doesn't belong in the
// binding external field list (currently only WithEventSource).
type Option func(*Config)

// WithEventSource replaces the runtime's live WebSocket transport with
// src, driving the I/O worker from pre-recorded or synthetic frames
// instead of a network connection. Supplements the spec with an
// offline/replay mode; see SPEC_FULL.md §5.
func WithEventSource(src EventSource) Option {
	return func(c *Config) { c.eventSource = src }
}

// DefaultConfig returns sensible defaults: queueing on with a 1024-slot
// ring, checksum validation on, a conservative exponential backoff,
// verified TLS, and 10s/30s connect/read timeouts.
func DefaultConfig(url string) Config {
	return Config{
		URL:                url,
		QueueEnabled:       true,
		QueueCapacity:      1024,
		ChecksumValidation: true,
		Backoff:            backoff.Conservative(),
		ConnectTimeout:     10 * time.Second,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       10 * time.Second,
		HeartbeatIdle:      60 * time.Second,
		TLS:                transport.TLSConfig{VerifyPeer: true},
		Breaker:            breaker.DefaultConfig("stream"),
	}
}

func (c Config) resolveBackoff() backoff.Policy {
	if c.Backoff != nil {
		return c.Backoff
	}
	if c.ReconnectAttempts > 0 {
		delay := c.ReconnectDelay
		if delay <= 0 {
			delay = time.Second
		}
		return &backoff.Exponential{
			Initial:     delay,
			Multiplier:  2,
			Max:         delay * (1 << 10),
			MaxAttempts: c.ReconnectAttempts,
		}
	}
	return backoff.Conservative()
}

func (c Config) transportConfig() transport.Config {
	return transport.Config{
		URL:            c.URL,
		UserAgent:      c.UserAgent,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		TLS:            c.TLS,
	}
}

func (c Config) newRateLimiter() *ratelimit.Limiter {
	if !c.RateLimiterEnabled {
		return nil
	}
	return ratelimit.New(c.RateLimiterRate, c.RateLimiterBurst, true)
}
