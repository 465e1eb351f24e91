// Package strategy routes ticker/book/trade/OHLC events to user-supplied
// predicates and raises alerts. Grounded on
// business/arbitrage/app/detector.go's config-driven, per-symbol
// threshold style (its DetectorConfig/ProfitCalculator split becomes
// Config/Predicate here), generalized from a single hardcoded arbitrage
// check into the capability-routed predicate engine spec.md §4.9
// describes.
package strategy

import (
	"sync"
	"time"

	"github.com/marketfeed/kstream/book"
	"github.com/marketfeed/kstream/logger"
	"github.com/marketfeed/kstream/wire"
)

// Capability flags which event kinds a Predicate consumes. A predicate
// advertising Ticker|Book is only evaluated once both a latest ticker
// and a latest book exist for the event's symbol (a "joint" predicate).
type Capability uint8

const (
	CapTicker Capability = 1 << iota
	CapBook
	CapTrade
	CapOHLC
)

// Context carries everything a Predicate needs to decide: the
// triggering event plus the latest known ticker/book for its symbol
// (nil when not yet seen).
type Context struct {
	Event  wire.Event
	Ticker *wire.Ticker
	Book   *book.OrderBook
}

// Predicate is checked against every matching event. Check returns
// (fired, message); message becomes the Alert's human-readable text.
type Predicate interface {
	Capabilities() Capability
	Check(ctx Context) (bool, string)
}

// Alert is raised when a predicate fires.
type Alert struct {
	Name    string
	Symbol  string
	Price   float64
	Message string
	At      time.Time
}

// AlertFunc receives fired alerts.
type AlertFunc func(Alert)

// ErrorFunc receives predicate panics/errors, keyed by strategy name.
type ErrorFunc func(name string, err error)

type entry struct {
	id      int64
	name    string
	symbols map[string]struct{}
	pred    Predicate
	enabled bool
}

func (e *entry) coversSymbol(symbol string) bool {
	if len(e.symbols) == 0 {
		return true
	}
	_, ok := e.symbols[symbol]
	return ok
}

// Engine holds every registered strategy and evaluates events against
// them under a shared read lock.
type Engine struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[int64]*entry

	onAlert AlertFunc
	onError ErrorFunc
	log     logger.Interface
}

// New constructs an empty Engine.
func New(onAlert AlertFunc, onError ErrorFunc, log logger.Interface) *Engine {
	if log == nil {
		log = logger.Noop()
	}
	return &Engine{entries: make(map[int64]*entry), onAlert: onAlert, onError: onError, log: log}
}

// Register adds a named predicate scoped to symbols (empty = all
// symbols) and returns its id for later Enable/Disable/Remove.
func (e *Engine) Register(name string, symbols []string, pred Predicate) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	e.entries[id] = &entry{id: id, name: name, symbols: set, pred: pred, enabled: true}
	return id
}

// Enable/Disable/Remove mutate a registered strategy by id.
func (e *Engine) Enable(id int64)  { e.setEnabled(id, true) }
func (e *Engine) Disable(id int64) { e.setEnabled(id, false) }

func (e *Engine) setEnabled(id int64, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if en, ok := e.entries[id]; ok {
		en.enabled = enabled
	}
}

// Remove retires a strategy permanently.
func (e *Engine) Remove(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.entries, id)
}

func capabilityFor(kind wire.Kind) Capability {
	switch kind {
	case wire.KindTicker:
		return CapTicker
	case wire.KindBook:
		return CapBook
	case wire.KindTrade:
		return CapTrade
	case wire.KindOHLC:
		return CapOHLC
	default:
		return 0
	}
}

// Evaluate runs every enabled, symbol-matching, capability-matching
// predicate against ctx. A predicate advertising a joint capability
// (Ticker|Book) only runs when both ctx.Ticker and ctx.Book are
// non-nil. Panics and errors from individual predicates are reported
// via onError and never halt iteration over the remaining strategies.
func (e *Engine) Evaluate(ctx Context) {
	base := capabilityFor(ctx.Event.Kind)
	if base == 0 {
		return
	}

	e.mu.RLock()
	snapshot := make([]*entry, 0, len(e.entries))
	for _, en := range e.entries {
		snapshot = append(snapshot, en)
	}
	e.mu.RUnlock()

	for _, en := range snapshot {
		if !en.enabled || !en.coversSymbol(ctx.Event.Symbol) {
			continue
		}
		caps := en.pred.Capabilities()
		if caps&base == 0 {
			continue
		}
		if caps&CapTicker != 0 && ctx.Ticker == nil {
			continue
		}
		if caps&CapBook != 0 && ctx.Book == nil {
			continue
		}
		e.safeCheck(en, ctx)
	}
}

func (e *Engine) safeCheck(en *entry, ctx Context) {
	defer func() {
		if r := recover(); r != nil {
			if e.onError != nil {
				e.onError(en.name, panicToError(r))
			}
		}
	}()

	fired, msg := en.pred.Check(ctx)
	if !fired {
		return
	}
	price := ctx.Event.Ticker.Last
	if ctx.Ticker != nil {
		price = ctx.Ticker.Last
	}
	alert := Alert{Name: en.name, Symbol: ctx.Event.Symbol, Price: price, Message: msg, At: time.Now()}
	if e.onAlert != nil {
		e.onAlert(alert)
	}
}

type panicError struct{ v any }

func (p panicError) Error() string { return "strategy predicate panicked" }

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return panicError{v: r}
}
