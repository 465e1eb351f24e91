// Package subscription tracks every active subscription by a dense
// integer id, mediates desired-state transitions, and replays active
// subscriptions after reconnect. Grounded on
// business/pricing/infra/binance/client.go's Subscribe/Unsubscribe/
// subscriptions-map pattern, extended with the desired-state machine and
// ack-matching semantics spec.md §4.8 requires (not present in the
// teacher, which only tracks a flat confirmed/unconfirmed set).
package subscription

import (
	"sort"
	"sync"

	"github.com/marketfeed/kstream/wire"
)

// State is a subscription's desired state.
type State int

const (
	Active State = iota
	Paused
	Unsubscribed
)

// FrameSender emits an outbound subscribe/unsubscribe frame. The
// registry never talks to the transport directly.
type FrameSender func(frame []byte)

type record struct {
	id        int64
	channel   wire.Channel
	symbols   map[string]struct{}
	depth     int
	desired   State
	confirmed bool
}

func (r *record) symbolList() []string {
	out := make([]string, 0, len(r.symbols))
	for s := range r.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Handle is a shared-ownership reference to a subscription. The last
// reference dropped implicitly unsubscribes unless already retired; Go
// has no destructors, so callers must call Release explicitly (or defer
// it) when they are done with a handle — this is documented as the
// idiomatic stand-in for the "last reference" ownership rule.
type Handle struct {
	id       int64
	registry *Registry

	mu       sync.Mutex
	refs     int
	released bool
}

// Retain increments the handle's reference count, returning the same
// handle for chaining.
func (h *Handle) Retain() *Handle {
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
	return h
}

// Release decrements the reference count; when it reaches zero the
// subscription is unsubscribed (unless already retired).
func (h *Handle) Release() {
	h.mu.Lock()
	h.refs--
	last := h.refs <= 0 && !h.released
	if last {
		h.released = true
	}
	h.mu.Unlock()
	if last {
		h.registry.Unsubscribe(h.id)
	}
}

// ID returns the subscription's dense integer id.
func (h *Handle) ID() int64 { return h.id }

// Pause transitions the subscription to Paused.
func (h *Handle) Pause() { h.registry.Pause(h.id) }

// Resume transitions the subscription back to Active.
func (h *Handle) Resume() { h.registry.Resume(h.id) }

// AddSymbols adds symbols to the subscription's set.
func (h *Handle) AddSymbols(symbols ...string) { h.registry.AddSymbols(h.id, symbols) }

// RemoveSymbols removes symbols from the subscription's set.
func (h *Handle) RemoveSymbols(symbols ...string) { h.registry.RemoveSymbols(h.id, symbols) }

// TokenSource returns a freshly minted authentication token, used for
// the private channels (ownTrades, openOrders, balances) that subscribe
// with a token instead of a symbol list. A nil source means the
// registry never authenticates.
type TokenSource func() string

// privateChannels don't carry a symbol list; they authenticate with a
// token instead.
var privateChannels = map[wire.Channel]bool{
	wire.ChannelOwnTrades:  true,
	wire.ChannelOpenOrders: true,
	wire.ChannelBalances:   true,
}

// Registry owns every subscription record and mediates every state
// transition.
type Registry struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*record
	send    FrameSender
	token   TokenSource
}

// New constructs a Registry that emits outbound frames via send.
func New(send FrameSender) *Registry {
	return &Registry{records: make(map[int64]*record), send: send}
}

// SetTokenSource installs the authentication token provider used for
// private-channel subscribe frames.
func (r *Registry) SetTokenSource(src TokenSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = src
}

// subscribeFrame emits the correct wire frame for channel: an
// authenticated token frame for a private channel, a plain
// symbol-bearing subscribe otherwise.
func (r *Registry) subscribeFrame(channel wire.Channel, symbols []string, depth int) []byte {
	r.mu.Lock()
	tok := r.token
	r.mu.Unlock()
	if privateChannels[channel] && tok != nil {
		return wire.BuildAuthenticatedSubscribe(channel, tok())
	}
	return wire.BuildSubscribe(channel, symbols, depth)
}

// Subscribe allocates a new record in (desired=active, confirmed=false),
// emits an outbound subscribe frame, and returns a Handle with one
// reference held by the caller.
func (r *Registry) Subscribe(channel wire.Channel, symbols []string, depth int) *Handle {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	rec := &record{id: id, channel: channel, symbols: set, depth: depth, desired: Active}
	r.records[id] = rec
	symList := rec.symbolList()
	r.mu.Unlock()

	r.send(r.subscribeFrame(channel, symList, depth))
	return &Handle{id: id, registry: r, refs: 1}
}

// Pause transitions a record to Paused and emits an unsubscribe frame;
// the record is retained.
func (r *Registry) Pause(id int64) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || rec.desired != Active {
		r.mu.Unlock()
		return
	}
	rec.desired = Paused
	channel, symbols := rec.channel, rec.symbolList()
	r.mu.Unlock()
	r.send(wire.BuildUnsubscribe(channel, symbols))
}

// Resume transitions a record back to Active and re-emits subscribe.
func (r *Registry) Resume(id int64) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || rec.desired != Paused {
		r.mu.Unlock()
		return
	}
	rec.desired = Active
	rec.confirmed = false
	channel, symbols, depth := rec.channel, rec.symbolList(), rec.depth
	r.mu.Unlock()
	r.send(r.subscribeFrame(channel, symbols, depth))
}

// Unsubscribe transitions a record to Unsubscribed, emits unsubscribe,
// and retires the record. Idempotent: unsubscribing an already-retired
// or unknown id is a no-op.
func (r *Registry) Unsubscribe(id int64) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || rec.desired == Unsubscribed {
		r.mu.Unlock()
		return
	}
	rec.desired = Unsubscribed
	channel, symbols := rec.channel, rec.symbolList()
	delete(r.records, id)
	r.mu.Unlock()
	r.send(wire.BuildUnsubscribe(channel, symbols))
}

// AddSymbols computes the delta of newly added symbols under the
// registry's mutex and emits a subscribe frame for only the delta.
func (r *Registry) AddSymbols(id int64, symbols []string) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	var delta []string
	for _, s := range symbols {
		if _, exists := rec.symbols[s]; !exists {
			rec.symbols[s] = struct{}{}
			delta = append(delta, s)
		}
	}
	channel, depth := rec.channel, rec.depth
	r.mu.Unlock()
	if len(delta) > 0 {
		sort.Strings(delta)
		r.send(wire.BuildSubscribe(channel, delta, depth))
	}
}

// RemoveSymbols computes the delta of removed symbols and emits an
// unsubscribe frame for only the delta.
func (r *Registry) RemoveSymbols(id int64, symbols []string) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	var delta []string
	for _, s := range symbols {
		if _, exists := rec.symbols[s]; exists {
			delete(rec.symbols, s)
			delta = append(delta, s)
		}
	}
	channel := rec.channel
	r.mu.Unlock()
	if len(delta) > 0 {
		sort.Strings(delta)
		r.send(wire.BuildUnsubscribe(channel, delta))
	}
}

// ReplayAll is called by the runtime after a successful (re)connect: for
// every Active record it emits a fresh subscribe and marks it
// unconfirmed until the server acks.
func (r *Registry) ReplayAll() {
	r.mu.Lock()
	type pending struct {
		channel wire.Channel
		symbols []string
		depth   int
	}
	var toSend []pending
	for _, rec := range r.records {
		if rec.desired != Active {
			continue
		}
		rec.confirmed = false
		toSend = append(toSend, pending{rec.channel, rec.symbolList(), rec.depth})
	}
	r.mu.Unlock()

	for _, p := range toSend {
		r.send(r.subscribeFrame(p.channel, p.symbols, p.depth))
	}
}

// sameSymbolSet reports whether ackSymbols matches rec's current symbol
// set exactly (order-independent).
func sameSymbolSet(rec *record, ackSymbols []string) bool {
	if len(ackSymbols) != len(rec.symbols) {
		return false
	}
	for _, s := range ackSymbols {
		if _, ok := rec.symbols[s]; !ok {
			return false
		}
	}
	return true
}

// OnSubscribed marks the first matching unconfirmed Active record for
// (channel, symbols) confirmed. Matching is on both channel and the full
// symbol set, per the Open Question resolution in DESIGN.md — a partial
// ack (a subset of the requested symbols) does not match any record.
func (r *Registry) OnSubscribed(channel string, symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if string(rec.channel) != channel || rec.desired != Active || rec.confirmed {
			continue
		}
		if sameSymbolSet(rec, symbols) {
			rec.confirmed = true
			return
		}
	}
}

// OnUnsubscribed marks the first matching confirmed record for
// (channel, symbols) unconfirmed.
func (r *Registry) OnUnsubscribed(channel string, symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if string(rec.channel) != channel || !rec.confirmed {
			continue
		}
		if sameSymbolSet(rec, symbols) {
			rec.confirmed = false
			return
		}
	}
}

// Snapshot describes one record's current state, for introspection/tests.
type Snapshot struct {
	ID        int64
	Channel   wire.Channel
	Symbols   []string
	Desired   State
	Confirmed bool
}

// Records returns a snapshot of every tracked record.
func (r *Registry) Records() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, Snapshot{
			ID: rec.id, Channel: rec.channel, Symbols: rec.symbolList(),
			Desired: rec.desired, Confirmed: rec.confirmed,
		})
	}
	return out
}
