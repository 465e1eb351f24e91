package stream

import (
	"sync/atomic"

	"github.com/marketfeed/kstream/wire"
)

// ring is the single-producer/single-consumer event queue handed off
// between the I/O worker and the dispatch worker. Capacity must be a
// power of two. Grounded in shape on the teacher's atomic-counter style
// (business/pricing/infra/binance/client.go's subsMu/nextID pattern of
// small, purpose-built concurrency primitives) generalized into the
// bounded ring spec.md §5 requires; no existing pack repo ships a
// ready-made SPSC ring, so this is authored directly from the spec.
// head/tail are atomic.Uint64 rather than plain uint64 since depth() is
// read from Runtime.Metrics() by any goroutine, not just the producer/
// consumer pair that owns each field.
type ring struct {
	buf  []wire.Event
	mask uint64

	head atomic.Uint64 // next write index, written by the producer, read by anyone
	tail atomic.Uint64 // next read index, written by the consumer, read by anyone
}

func newRing(capacity int) *ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("stream: queue capacity must be a positive power of two")
	}
	return &ring{buf: make([]wire.Event, capacity), mask: uint64(capacity - 1)}
}

// tryPush attempts a non-blocking enqueue; returns false when full. Only
// the I/O worker goroutine may call this.
func (r *ring) tryPush(e wire.Event) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		return false
	}
	r.buf[head&r.mask] = e
	r.head.Store(head + 1)
	return true
}

// tryPop attempts a non-blocking dequeue; returns (zero, false) when
// empty. Only the dispatch worker goroutine may call this.
func (r *ring) tryPop() (wire.Event, bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail == head {
		return wire.Event{}, false
	}
	e := r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return e, true
}

func (r *ring) depth() int {
	return int(r.head.Load() - r.tail.Load())
}
