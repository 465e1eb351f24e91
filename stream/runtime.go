// Package stream is the root orchestrator: one I/O worker and one
// dispatch worker connected by a bounded SPSC queue, composing
// transport, the subscription registry, the book engine, the sequence
// tracker, the backoff policy, the circuit breaker, and the strategy
// engine into a single streaming client. Grounded on
// internal/wsconn.go's connect/reconnect loop shape and
// business/pricing/infra/binance/client.go's Client (config struct,
// atomic running flag, OTEL tracer/meter fields, logger.Interface
// dependency), generalized from a single hardcoded exchange client
// into the generic two-worker runtime spec.md §4.10 describes.
package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marketfeed/kstream/apperror"
	"github.com/marketfeed/kstream/auth"
	"github.com/marketfeed/kstream/book"
	"github.com/marketfeed/kstream/breaker"
	"github.com/marketfeed/kstream/logger"
	"github.com/marketfeed/kstream/ratelimit"
	"github.com/marketfeed/kstream/sequence"
	"github.com/marketfeed/kstream/strategy"
	"github.com/marketfeed/kstream/subscription"
	"github.com/marketfeed/kstream/transport"
	"github.com/marketfeed/kstream/wire"
)

// liveConn adapts *transport.Conn to the narrower surface the runtime
// needs, so an EventSource can stand in for it during tests/replay.
type liveConn interface {
	Open(ctx context.Context) error
	Send(ctx context.Context, text []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Runtime is the orchestrator described by spec.md §4.10. Construct one
// with New, register callbacks via cfg.Callbacks, then call Run or
// RunAsync.
type Runtime struct {
	cfg Config
	log logger.Interface

	connMu      sync.RWMutex
	conn        liveConn
	eventSource EventSource
	limiter     *ratelimit.Limiter
	backoff     backoffPolicy
	breaker     *breaker.Breaker
	seq         *sequence.Tracker
	books       *book.Engine
	subs        *subscription.Registry
	strategies  *strategy.Engine
	tracer      trace.Tracer

	queue *ring

	metrics metrics

	snapshotsMu  sync.RWMutex
	latestTicker map[string]wire.Ticker

	running       atomic.Bool
	stopRequested atomic.Bool
	stopCh        chan struct{}
	dispatchSig   chan struct{}
	ioDone        chan struct{} // closed by ioLoop on exit, so dispatchLoop can drain and return

	wg sync.WaitGroup
}

// tracerName scopes every span this package starts, matching the
// teacher's per-client tracerName constant convention.
const tracerName = "github.com/marketfeed/kstream/stream"

// backoffPolicy is the subset of backoff.Policy the runtime consumes;
// named locally so Config.resolveBackoff's return type is documented at
// the call site.
type backoffPolicy interface {
	NextDelay() time.Duration
	Reset()
	ShouldStop() bool
}

// New constructs a Runtime from cfg, applying any functional Options.
func New(cfg Config, opts ...Option) *Runtime {
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Noop()
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1024
	}
	if cfg.GapDetection.OnGap == nil && cfg.Callbacks.OnGap != nil {
		cfg.GapDetection.OnGap = cfg.Callbacks.OnGap
	}

	r := &Runtime{
		cfg:          cfg,
		log:          cfg.Logger,
		limiter:      cfg.newRateLimiter(),
		backoff:      cfg.resolveBackoff(),
		breaker:      breaker.New(cfg.Breaker),
		seq:          sequence.New(cfg.GapDetection),
		books:        book.NewEngine(),
		queue:        newRing(cfg.QueueCapacity),
		latestTicker: make(map[string]wire.Ticker),
		stopCh:       make(chan struct{}),
		dispatchSig:  make(chan struct{}, 1),
		ioDone:       make(chan struct{}),
		tracer:       otel.Tracer(tracerName),
	}
	r.strategies = strategy.New(r.onAlert, cfg.Callbacks.OnStrategyError, cfg.Logger)
	r.subs = subscription.New(func(frame []byte) { r.sendFrame(frame) })
	if cfg.APIKey != "" && cfg.APISecret != "" {
		signer := auth.NewHMACSigner()
		r.subs.SetTokenSource(func() string { return signer.Token(cfg.APIKey, cfg.APISecret) })
	}
	r.eventSource = cfg.eventSource
	if r.eventSource == nil {
		tcfg := cfg.transportConfig()
		tcfg.RateLimiter = r.limiter
		r.setConn(transport.New(tcfg))
	}
	return r
}

// getConn and setConn guard conn: the I/O worker replaces it with a
// fresh transport on every successful reconnect (reconnect, below)
// while receive reads it from the same goroutine, but sendFrame (run by
// whichever goroutine drives the subscription registry) and Stop may
// read it from any goroutine.
func (r *Runtime) getConn() liveConn {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	return r.conn
}

func (r *Runtime) setConn(c liveConn) {
	r.connMu.Lock()
	r.conn = c
	r.connMu.Unlock()
}

// Subscriptions exposes the registry so callers can Subscribe/Pause/
// Resume/Unsubscribe/AddSymbols/RemoveSymbols.
func (r *Runtime) Subscriptions() *subscription.Registry { return r.subs }

// Strategies exposes the predicate engine so callers can Register
// presets and wire alert callbacks.
func (r *Runtime) Strategies() *strategy.Engine { return r.strategies }

// Books exposes the order book engine for read-only symbol lookups.
func (r *Runtime) Books() *book.Engine { return r.books }

// Metrics returns a point-in-time snapshot of every counter.
func (r *Runtime) Metrics() Snapshot {
	return r.metrics.snapshot(r.queue.depth())
}

func (r *Runtime) sendFrame(frame []byte) {
	if r.eventSource != nil {
		return // offline/replay mode never sends
	}
	ctx := context.Background()
	if err := r.getConn().Send(ctx, frame); err != nil {
		r.reportError(err)
	}
}

func (r *Runtime) onAlert(a strategy.Alert) {
	r.metrics.alertsTriggered.Add(1)
	if r.cfg.Callbacks.OnAlert != nil {
		r.safeInvoke(func() { r.cfg.Callbacks.OnAlert(a) })
	}
}

// reportError invokes the error callback directly, not through
// safeInvoke: a panic inside it is logged and never re-reported.
func (r *Runtime) reportError(err error) {
	if r.cfg.Callbacks.OnError == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error(context.Background(), "error callback panicked", logger.F("panic", rec))
		}
	}()
	r.cfg.Callbacks.OnError(err)
}

// safeInvoke recovers a panicking user callback into a CallbackError,
// reported through the error callback — never recursively, to avoid
// runaway recursion when the error callback itself is what panicked.
func (r *Runtime) safeInvoke(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error(context.Background(), "user callback panicked", logger.F("panic", rec))
			r.reportError(apperror.New(apperror.CallbackError, apperror.WithMessage("user callback panicked")))
		}
	}()
	fn()
}

// Run connects (propagating a connect failure), replays pending
// subscriptions, starts the I/O worker, and runs the dispatch loop on
// the calling goroutine when queueing is enabled. In direct mode it
// simply waits for the I/O worker to exit.
func (r *Runtime) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("stream: already running")
	}
	r.metrics.startedAtUnixNano.Store(time.Now().UnixNano())

	if err := r.connect(ctx); err != nil {
		r.running.Store(false)
		return err
	}
	r.subs.ReplayAll()

	r.wg.Add(1)
	go r.ioLoop(ctx)

	if r.cfg.QueueEnabled {
		r.dispatchLoop(ctx)
	} else {
		r.wg.Wait()
	}
	return nil
}

// RunAsync is Run, but the dispatch loop (when queueing is enabled)
// runs on its own goroutine and control returns immediately once
// connected and replayed.
func (r *Runtime) RunAsync(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("stream: already running")
	}
	r.metrics.startedAtUnixNano.Store(time.Now().UnixNano())

	if err := r.connect(ctx); err != nil {
		r.running.Store(false)
		return err
	}
	r.subs.ReplayAll()

	r.wg.Add(1)
	go r.ioLoop(ctx)

	if r.cfg.QueueEnabled {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.dispatchLoop(ctx)
		}()
	}
	return nil
}

// Stop is idempotent and safe from any goroutine: it flips the running
// flag, signals stop, closes the transport (unblocking a pending
// Receive), and waits for both workers to exit.
func (r *Runtime) Stop() {
	if !r.stopRequested.CompareAndSwap(false, true) {
		return
	}
	close(r.stopCh)
	if conn := r.getConn(); conn != nil {
		_ = conn.Close()
	}
	if r.eventSource != nil {
		_ = r.eventSource.Close()
	}
	r.signalDispatch()
	r.wg.Wait()
	r.running.Store(false)
}

func (r *Runtime) stopRequestedFlag() bool { return r.stopRequested.Load() }

func (r *Runtime) signalDispatch() {
	select {
	case r.dispatchSig <- struct{}{}:
	default:
	}
}

// connect performs the initial blocking connect (distinct from the
// reconnect loop: a connect failure here propagates to the caller
// rather than entering backoff).
func (r *Runtime) connect(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "stream.connect",
		trace.WithAttributes(attribute.String("url", r.cfg.URL)),
	)
	defer span.End()

	r.metrics.setState(Connecting)
	if r.eventSource != nil {
		r.metrics.setState(Connected)
		return nil
	}
	if err := r.getConn().Open(ctx); err != nil {
		span.RecordError(err)
		r.metrics.setState(Disconnected)
		return err
	}
	r.metrics.setState(Connected)
	return nil
}

// ioLoop is the single-threaded I/O worker: receive -> parse -> gate ->
// publish, per spec.md §4.10's I/O worker steps.
func (r *Runtime) ioLoop(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.ioDone)
	for {
		if r.stopRequestedFlag() {
			return
		}

		if r.metrics.state() != Connected {
			if !r.reconnect(ctx) {
				return // backoff exhausted; Disconnected, exit the loop
			}
		}

		frame, err := r.receive(ctx)
		if err != nil {
			if r.eventSource != nil {
				// A replay source never reconnects: running out of frames
				// (io.EOF or any other error it returns) ends the run.
				r.metrics.setState(Disconnected)
				return
			}
			r.metrics.setState(Reconnecting)
			continue
		}

		evt := wire.Parse(frame)
		evt.ReceivedAt = time.Now()
		r.metrics.messagesReceived.Add(1)

		switch evt.Kind {
		case wire.KindHeartbeat:
			r.metrics.recordHeartbeat(evt.ReceivedAt)
			continue
		case wire.KindSubscribed:
			r.subs.OnSubscribed(evt.Channel, evt.AckSymbols)
			if r.cfg.Callbacks.OnSubscribed != nil {
				r.safeInvoke(func() { r.cfg.Callbacks.OnSubscribed(evt.Channel, evt.AckSymbols) })
			}
			continue
		case wire.KindUnsubscribed:
			r.subs.OnUnsubscribed(evt.Channel, evt.AckSymbols)
			if r.cfg.Callbacks.OnUnsubscribed != nil {
				r.safeInvoke(func() { r.cfg.Callbacks.OnUnsubscribed(evt.Channel, evt.AckSymbols) })
			}
			continue
		case wire.KindError:
			r.reportError(wireError(evt))
			continue
		}

		if r.cfg.QueueEnabled {
			if r.queue.tryPush(evt) {
				r.signalDispatch()
			} else {
				r.metrics.messagesDropped.Add(1)
				r.reportError(apperror.New(apperror.QueueOverflow, apperror.WithMessage("dispatch queue full")))
			}
		} else {
			r.runGapCheck(evt)
			r.route(evt)
			r.metrics.messagesProcessed.Add(1)
		}
	}
}

func (r *Runtime) receive(ctx context.Context) ([]byte, error) {
	if r.eventSource != nil {
		return r.eventSource.Next()
	}
	return r.getConn().Receive(ctx)
}

func wireError(evt wire.Event) error {
	kind := apperror.ParseError
	switch evt.ErrKind {
	case wire.ErrInvalidSymbol:
		kind = apperror.InvalidSymbol
	}
	return apperror.New(kind, apperror.WithMessage(evt.ErrText))
}

// dispatchLoop is the single-threaded dispatch worker; it only runs
// when queueing is enabled. Loops on: examine the queue front, wait on
// a signal when empty, otherwise pop/gate/route/update metrics. Once the
// I/O worker has exited and the queue is fully drained, it returns too,
// so Run can complete on its own for a finite event source instead of
// only ever unblocking via Stop.
func (r *Runtime) dispatchLoop(ctx context.Context) {
	for {
		evt, ok := r.queue.tryPop()
		if ok {
			r.runGapCheck(evt)
			r.route(evt)

			latencyMicros := time.Since(evt.ReceivedAt).Microseconds()
			r.metrics.bumpLatencyMax(latencyMicros)
			r.metrics.messagesProcessed.Add(1)
			continue
		}

		if r.stopRequestedFlag() {
			return
		}
		select {
		case <-r.ioDone:
			if r.queue.depth() == 0 {
				return
			}
		case <-r.dispatchSig:
		case <-r.stopCh:
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (r *Runtime) runGapCheck(evt wire.Event) {
	if evt.Seq == nil {
		return
	}
	if !r.seq.Check(evt.Channel, evt.Symbol, *evt.Seq) {
		r.metrics.gapsDetected.Add(1)
	}
}

// route implements §4.10.1: per-kind snapshot updates, callback
// invocation, and strategy evaluation.
func (r *Runtime) route(evt wire.Event) {
	switch evt.Kind {
	case wire.KindTicker:
		r.snapshotsMu.Lock()
		r.latestTicker[evt.Symbol] = evt.Ticker
		r.snapshotsMu.Unlock()

		if r.cfg.Callbacks.OnTicker != nil {
			r.safeInvoke(func() { r.cfg.Callbacks.OnTicker(evt.Ticker) })
		}
		r.evaluateStrategies(evt)

	case wire.KindBook:
		checksum := uint32(0)
		if r.cfg.ChecksumValidation {
			checksum = evt.Book.Checksum
		}
		bookLevels := func(levels []wire.PriceLevel) []book.Level {
			out := make([]book.Level, len(levels))
			for i, l := range levels {
				out[i] = book.Level{Price: l.Price, Quantity: l.Quantity}
			}
			return out
		}
		valid := r.books.Apply(evt.Symbol, bookLevels(evt.Book.Bids), bookLevels(evt.Book.Asks), evt.Book.IsSnapshot, checksum)
		if evt.Book.IsSnapshot {
			r.seq.Reset(evt.Channel, evt.Symbol)
		}
		if !valid {
			r.metrics.checksumFailures.Add(1)
			r.reportError(apperror.New(apperror.ChecksumMismatch, apperror.WithMessage(evt.Symbol)))
		}
		ob := r.books.Get(evt.Symbol)
		if r.cfg.Callbacks.OnBook != nil {
			r.safeInvoke(func() { r.cfg.Callbacks.OnBook(ob) })
		}
		r.evaluateStrategies(evt)

	case wire.KindTrade:
		if r.cfg.Callbacks.OnTrade != nil {
			r.safeInvoke(func() { r.cfg.Callbacks.OnTrade(evt.Trade) })
		}
		r.evaluateStrategies(evt)

	case wire.KindOHLC:
		if r.cfg.Callbacks.OnOHLC != nil {
			r.safeInvoke(func() { r.cfg.Callbacks.OnOHLC(evt.OHLC) })
		}
		r.evaluateStrategies(evt)

	case wire.KindOrder:
		if r.cfg.Callbacks.OnOrder != nil {
			r.safeInvoke(func() { r.cfg.Callbacks.OnOrder(evt.Order) })
		}

	case wire.KindOwnTrade:
		if r.cfg.Callbacks.OnOwnTrade != nil {
			r.safeInvoke(func() { r.cfg.Callbacks.OnOwnTrade(evt.OwnTrade) })
		}

	case wire.KindBalance:
		if r.cfg.Callbacks.OnBalance != nil {
			r.safeInvoke(func() { r.cfg.Callbacks.OnBalance(evt.Balance) })
		}
	}
}

func (r *Runtime) evaluateStrategies(evt wire.Event) {
	r.snapshotsMu.RLock()
	t, hasTicker := r.latestTicker[evt.Symbol]
	r.snapshotsMu.RUnlock()

	var tickerPtr *wire.Ticker
	if hasTicker {
		tickerPtr = &t
	}
	ob := r.books.Get(evt.Symbol)
	r.strategies.Evaluate(strategy.Context{Event: evt, Ticker: tickerPtr, Book: ob})
}

// reconnect implements §4.10.2. Returns false when the backoff budget
// is exhausted (the caller should exit the I/O loop).
func (r *Runtime) reconnect(ctx context.Context) bool {
	r.metrics.setState(Reconnecting)
	attempt := 0

	for {
		if r.stopRequestedFlag() {
			return false
		}

		for !r.breaker.CanAttempt() {
			if r.stopRequestedFlag() {
				return false
			}
			select {
			case <-time.After(50 * time.Millisecond):
			case <-r.stopCh:
				return false
			}
		}

		if r.backoff.ShouldStop() {
			r.metrics.setState(Disconnected)
			return false
		}

		delay := r.backoff.NextDelay()
		attempt++
		if r.cfg.Callbacks.OnReconnect != nil {
			r.safeInvoke(func() { r.cfg.Callbacks.OnReconnect(attempt, delay, "connection closed") })
		}

		select {
		case <-time.After(delay):
		case <-r.stopCh:
			return false
		}

		spanCtx, span := r.tracer.Start(ctx, "stream.reconnect",
			trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.String("url", r.cfg.URL),
			),
		)

		var err error
		if r.eventSource != nil {
			err = nil
		} else {
			tcfg := r.cfg.transportConfig()
			tcfg.RateLimiter = r.limiter
			fresh := transport.New(tcfg)
			err = fresh.Open(spanCtx)
			if err == nil {
				r.setConn(fresh)
			}
		}
		if err != nil {
			span.RecordError(err)
		}
		span.End()

		r.metrics.reconnectAttempts.Add(1)
		if err != nil {
			r.breaker.RecordFailure()
			continue
		}

		r.breaker.RecordSuccess()
		r.backoff.Reset()
		r.seq.ResetAll()
		r.metrics.setState(Connected)
		r.subs.ReplayAll()
		return true
	}
}
