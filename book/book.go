// Package book maintains per-symbol price-sorted bid and ask ladders,
// applying snapshots and incremental updates and validating the
// exchange-supplied checksum.
package book

import (
	"sort"
	"sync"
)

// Level is a materialized (price, quantity) pair in a ladder.
type Level struct {
	Price    float64
	Quantity float64
}

// OrderBook is a read-only snapshot of one symbol's current ladders.
type OrderBook struct {
	Symbol   string
	Bids     []Level // descending by price
	Asks     []Level // ascending by price
	IsValid  bool
	Checksum uint32
}

// BestBid returns the highest bid level, or nil if the book has no bids.
func (b OrderBook) BestBid() *Level {
	if len(b.Bids) == 0 {
		return nil
	}
	return &b.Bids[0]
}

// BestAsk returns the lowest ask level, or nil if the book has no asks.
func (b OrderBook) BestAsk() *Level {
	if len(b.Asks) == 0 {
		return nil
	}
	return &b.Asks[0]
}

// Spread returns best ask - best bid, or 0 if either side is empty.
func (b OrderBook) Spread() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid == nil || ask == nil {
		return 0
	}
	return ask.Price - bid.Price
}

// Mid returns the midpoint of the best bid and ask, or 0 if either side
// is empty.
func (b OrderBook) Mid() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid == nil || ask == nil {
		return 0
	}
	return (ask.Price + bid.Price) / 2
}

// CumulativeLiquidity sums quantity on the given side to depth N levels.
func (b OrderBook) CumulativeLiquidity(side Side, depth int) float64 {
	levels := b.Bids
	if side == Ask {
		levels = b.Asks
	}
	if depth > len(levels) || depth <= 0 {
		depth = len(levels)
	}
	var sum float64
	for _, l := range levels[:depth] {
		sum += l.Quantity
	}
	return sum
}

// Imbalance returns (bidLiquidity-askLiquidity)/(bidLiquidity+askLiquidity)
// to the given depth, in [-1, +1]. Returns 0 when both sides are empty.
func (b OrderBook) Imbalance(depth int) float64 {
	bidLiq := b.CumulativeLiquidity(Bid, depth)
	askLiq := b.CumulativeLiquidity(Ask, depth)
	total := bidLiq + askLiq
	if total == 0 {
		return 0
	}
	return (bidLiq - askLiq) / total
}

// Side selects a ladder.
type Side int

const (
	Bid Side = iota
	Ask
)

// internalBook holds the live, mutable ladders for one symbol, each
// stored as a price->quantity map whose keys are sorted on every read
// (descending bids, ascending asks), standing in for the original
// engine's ordered-map design.
type internalBook struct {
	symbol   string
	bids     map[float64]float64
	asks     map[float64]float64
	isValid  bool
	checksum uint32
}

func newInternalBook(symbol string) *internalBook {
	return &internalBook{
		symbol:  symbol,
		bids:    make(map[float64]float64),
		asks:    make(map[float64]float64),
		isValid: true,
	}
}

func (ib *internalBook) applySide(side map[float64]float64, levels []Level, snapshot bool) {
	if snapshot {
		for k := range side {
			delete(side, k)
		}
	}
	for _, l := range levels {
		if l.Quantity <= 0 {
			delete(side, l.Price)
			continue
		}
		side[l.Price] = l.Quantity
	}
}

func (ib *internalBook) sortedBids() []Level {
	out := mapToLevels(ib.bids)
	sort.Slice(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out
}

func (ib *internalBook) sortedAsks() []Level {
	out := mapToLevels(ib.asks)
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

func mapToLevels(m map[float64]float64) []Level {
	out := make([]Level, 0, len(m))
	for p, q := range m {
		out = append(out, Level{Price: p, Quantity: q})
	}
	return out
}

func (ib *internalBook) snapshot() OrderBook {
	return OrderBook{
		Symbol:   ib.symbol,
		Bids:     ib.sortedBids(),
		Asks:     ib.sortedAsks(),
		IsValid:  ib.isValid,
		Checksum: ib.checksum,
	}
}

// Engine owns every symbol's book. Safe for concurrent use: callers must
// serialize Apply per symbol through the runtime's dispatch thread (the
// spec's single-consumer guarantee); Get/Remove/Clear may be called from
// any thread under the engine's own mutex.
type Engine struct {
	mu    sync.Mutex
	books map[string]*internalBook
}

// NewEngine constructs an empty Engine.
func NewEngine() *Engine {
	return &Engine{books: make(map[string]*internalBook)}
}

// Apply applies a snapshot or incremental update for symbol. When
// expectedChecksum != 0, it computes the checksum and returns whether it
// matched (true = valid). When expectedChecksum == 0, no checksum
// comparison is made and the book's prior validity is preserved. Apply
// is still expected to be called from a single goroutine per the
// runtime's single-consumer dispatch thread, but takes the same mutex
// as Get/Remove/Clear so a concurrent read never observes a half
// applied side.
func (e *Engine) Apply(symbol string, bids, asks []Level, isSnapshot bool, expectedChecksum uint32) (valid bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ib, ok := e.books[symbol]
	if !ok {
		ib = newInternalBook(symbol)
		e.books[symbol] = ib
	}

	ib.applySide(ib.bids, bids, isSnapshot)
	ib.applySide(ib.asks, asks, isSnapshot)

	if expectedChecksum != 0 {
		got := Checksum(ib.sortedBids(), ib.sortedAsks())
		ib.checksum = got
		ib.isValid = got == expectedChecksum
		return ib.isValid
	}
	return ib.isValid
}

// Get materializes a read-only snapshot of symbol's current ladders, or
// nil if the symbol is unknown. Safe to call from any goroutine.
func (e *Engine) Get(symbol string) *OrderBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	ib, ok := e.books[symbol]
	if !ok {
		return nil
	}
	ob := ib.snapshot()
	return &ob
}

// Remove drops a single symbol's book.
func (e *Engine) Remove(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.books, symbol)
}

// Clear drops every symbol's book.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.books = make(map[string]*internalBook)
}
