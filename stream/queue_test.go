package stream

import (
	"testing"

	"github.com/marketfeed/kstream/wire"
)

func TestRingPushPopInOrder(t *testing.T) {
	r := newRing(4)
	for i := 0; i < 4; i++ {
		if !r.tryPush(wire.Event{Symbol: "XBT/USD"}) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if r.depth() != 4 {
		t.Fatalf("expected depth 4, got %d", r.depth())
	}
	if r.tryPush(wire.Event{}) {
		t.Fatal("push into a full ring should fail")
	}

	for i := 0; i < 4; i++ {
		if _, ok := r.tryPop(); !ok {
			t.Fatalf("pop %d should have succeeded", i)
		}
	}
	if _, ok := r.tryPop(); ok {
		t.Fatal("pop from an empty ring should fail")
	}
}

func TestRingWrapsAroundCorrectly(t *testing.T) {
	r := newRing(2)
	r.tryPush(wire.Event{Symbol: "a"})
	r.tryPush(wire.Event{Symbol: "b"})
	if e, _ := r.tryPop(); e.Symbol != "a" {
		t.Fatalf("expected a, got %s", e.Symbol)
	}
	r.tryPush(wire.Event{Symbol: "c"})
	if e, _ := r.tryPop(); e.Symbol != "b" {
		t.Fatalf("expected b, got %s", e.Symbol)
	}
	if e, _ := r.tryPop(); e.Symbol != "c" {
		t.Fatalf("expected c, got %s", e.Symbol)
	}
}

func TestNewRingRejectsNonPowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a non-power-of-two capacity")
		}
	}()
	newRing(3)
}
