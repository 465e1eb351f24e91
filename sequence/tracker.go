// Package sequence tracks per-(channel, symbol) sequence numbers to
// detect forward gaps and, optionally, reorderings.
package sequence

import "sync"

// Gap describes a detected discontinuity.
type Gap struct {
	Channel   string
	Symbol    string
	Expected  int64
	Actual    int64
	Size      int64
	IsReorder bool
}

// GapFunc is invoked when a gap is detected. Panics inside it are
// recovered by the tracker; they must never propagate.
type GapFunc func(Gap)

type key struct {
	channel string
	symbol  string
}

// Tracker stores the last accepted sequence number per (channel, symbol).
type Tracker struct {
	mu            sync.Mutex
	last          map[key]int64
	gapTolerance  int64
	trackReorders bool
	onGap         GapFunc
}

// Config configures gap tolerance and reorder detection.
type Config struct {
	GapTolerance  int64
	TrackReorders bool
	OnGap         GapFunc
}

// New constructs a Tracker. A nil OnGap is replaced with a no-op.
func New(cfg Config) *Tracker {
	onGap := cfg.OnGap
	if onGap == nil {
		onGap = func(Gap) {}
	}
	return &Tracker{
		last:          make(map[key]int64),
		gapTolerance:  cfg.GapTolerance,
		trackReorders: cfg.TrackReorders,
		onGap:         onGap,
	}
}

func (t *Tracker) emit(g Gap) {
	defer func() { _ = recover() }()
	t.onGap(g)
}

// Check records seq for (channel, symbol) and reports whether it was
// accepted without a gap or reorder.
func (t *Tracker) Check(channel, symbol string, seq int64) (ok bool) {
	t.mu.Lock()
	k := key{channel, symbol}
	last, seen := t.last[k]
	if !seen {
		t.last[k] = seq
		t.mu.Unlock()
		return true
	}

	switch {
	case seq == last+1:
		t.last[k] = seq
		t.mu.Unlock()
		return true

	case seq > last+1:
		gapSize := seq - last - 1
		if gapSize <= t.gapTolerance {
			t.last[k] = seq
			t.mu.Unlock()
			return true
		}
		t.last[k] = seq
		t.mu.Unlock()
		t.emit(Gap{Channel: channel, Symbol: symbol, Expected: last + 1, Actual: seq, Size: gapSize})
		return false

	default: // seq <= last
		if !t.trackReorders {
			t.mu.Unlock()
			return true
		}
		t.mu.Unlock()
		t.emit(Gap{Channel: channel, Symbol: symbol, Expected: last + 1, Actual: seq, Size: last + 1 - seq, IsReorder: true})
		return false
	}
}

// Reset clears the stored sequence for one (channel, symbol) pair, used
// on explicit reset or snapshot completion.
func (t *Tracker) Reset(channel, symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, key{channel, symbol})
}

// ResetAll clears every tracked pair, used on reconnect.
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[key]int64)
}
