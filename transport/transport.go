// Package transport owns exactly one TLS WebSocket connection: dial,
// one-frame-at-a-time send/receive (send is mutex-serialized), and an
// idempotent close. Grounded on internal/wsconn/wsconn.go's dial/
// read/close shape, generalized from a single hardcoded exchange client
// (which also owned its own reconnect/ping loops) into the narrower
// per-connection contract the runtime's own reconnect state machine
// (see the stream package) drives from the outside.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/marketfeed/kstream/apperror"
	"github.com/marketfeed/kstream/ratelimit"
)

const defaultUserAgent = "kstream/1.0 (+https://github.com/marketfeed/kstream)"

// TLSConfig configures the TLS handshake.
type TLSConfig struct {
	VerifyPeer     bool // zero value skips verification; stream.DefaultConfig sets true
	CAFile         string
	ClientCertFile string
	ClientKeyFile  string
	CipherSuites   []uint16 // allow-list; empty = Go defaults
	AllowInsecure  bool     // explicit opt-out of VerifyPeer, logged by callers
}

// Config configures a Conn.
type Config struct {
	URL            string
	UserAgent      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	TLS            TLSConfig
	RateLimiter    *ratelimit.Limiter // optional; send() acquires a token when set
}

// Conn is one WebSocket connection, safe for one concurrent sender (Send
// is internally serialized) and one concurrent receiver (Receive must
// only ever be called from the I/O worker, per the runtime's ownership
// model).
type Conn struct {
	cfg  Config
	conn *websocket.Conn

	sendMu  sync.Mutex
	closed  bool
	closeMu sync.Mutex
}

// New constructs an unopened Conn.
func New(cfg Config) *Conn {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Conn{cfg: cfg}
}

func buildTLSConfig(cfg TLSConfig, host string) (*tls.Config, error) {
	tc := &tls.Config{ServerName: host}
	if cfg.AllowInsecure || !cfg.VerifyPeer {
		tc.InsecureSkipVerify = true
	}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("no certificates parsed from CA file")
		}
		tc.RootCAs = pool
	}
	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert/key: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	if len(cfg.CipherSuites) > 0 {
		tc.CipherSuites = cfg.CipherSuites
	}
	return tc, nil
}

// Open performs DNS resolution/TCP connect/TLS handshake/WebSocket
// upgrade, all bounded by cfg.ConnectTimeout.
func (c *Conn) Open(ctx context.Context) error {
	u, err := parseURL(c.cfg.URL)
	if err != nil {
		return apperror.New(apperror.ConnectionFailed, apperror.WithMessage(err.Error()))
	}

	tlsCfg, err := buildTLSConfig(c.cfg.TLS, u.Hostname())
	if err != nil {
		return apperror.New(apperror.ConnectionFailed, apperror.WithCause(err))
	}

	connectCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.ConnectTimeout > 0 {
		connectCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
	}

	conn, _, err := websocket.Dial(connectCtx, c.cfg.URL, &websocket.DialOptions{
		HTTPClient:      httpClient,
		HTTPHeader:      http.Header{"User-Agent": []string{c.cfg.UserAgent}},
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperror.New(apperror.Timeout, apperror.WithCause(err))
		}
		return apperror.New(apperror.ConnectionFailed, apperror.WithCause(err))
	}

	c.conn = conn
	return nil
}

// Send writes one text frame, serialized by an internal mutex. If a rate
// limiter is attached it blocks (bounded by cfg.WriteTimeout) for a
// token first.
func (c *Conn) Send(ctx context.Context, text []byte) error {
	if c.cfg.RateLimiter != nil {
		if !c.cfg.RateLimiter.AcquireBlocking(ctx, c.cfg.WriteTimeout) {
			return apperror.New(apperror.Timeout, apperror.WithMessage("rate limiter wait exceeded"))
		}
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.conn == nil {
		return apperror.New(apperror.ConnectionClosed, apperror.WithMessage("send on unopened connection"))
	}

	writeCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.WriteTimeout > 0 {
		writeCtx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
		defer cancel()
	}

	if err := c.conn.Write(writeCtx, websocket.MessageText, text); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperror.New(apperror.Timeout, apperror.WithCause(err))
		}
		return apperror.New(apperror.ConnectionClosed, apperror.WithCause(err))
	}
	return nil
}

// Receive blocks for exactly one full text frame. On Close from another
// goroutine, a concurrent Receive returns promptly with a
// ConnectionClosed error.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	if c.conn == nil {
		return nil, apperror.New(apperror.ConnectionClosed, apperror.WithMessage("receive on unopened connection"))
	}

	readCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.ReadTimeout > 0 {
		readCtx, cancel = context.WithTimeout(ctx, c.cfg.ReadTimeout)
		defer cancel()
	}

	_, data, err := c.conn.Read(readCtx)
	if err != nil {
		c.closeMu.Lock()
		closed := c.closed
		c.closeMu.Unlock()
		if closed {
			return nil, apperror.New(apperror.ConnectionClosed, apperror.WithMessage("closed"))
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperror.New(apperror.Timeout, apperror.WithCause(err))
		}
		return nil, apperror.New(apperror.ConnectionClosed, apperror.WithCause(err))
	}
	return data, nil
}

// Close idempotently tears down the connection; a concurrent Receive
// unblocks with a ConnectionClosed error.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil {
		return c.conn.Close(websocket.StatusNormalClosure, "closing")
	}
	return nil
}
