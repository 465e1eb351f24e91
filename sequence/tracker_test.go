package sequence

import "testing"

func TestFirstObservationIsOK(t *testing.T) {
	tr := New(Config{})
	if !tr.Check("ticker", "BTC/USD", 42) {
		t.Fatal("expected first observation to be OK without reporting a gap")
	}
}

func TestNoGapSequenceAlwaysOK(t *testing.T) {
	tr := New(Config{})
	for i := int64(1); i <= 100; i++ {
		if !tr.Check("ticker", "BTC/USD", i) {
			t.Fatalf("expected OK at seq %d", i)
		}
	}
}

func TestGapDetection(t *testing.T) {
	var got Gap
	tr := New(Config{OnGap: func(g Gap) { got = g }})

	if !tr.Check("ticker", "BTC/USD", 1) {
		t.Fatal("expected OK at seq 1")
	}
	if !tr.Check("ticker", "BTC/USD", 2) {
		t.Fatal("expected OK at seq 2")
	}
	if tr.Check("ticker", "BTC/USD", 5) {
		t.Fatal("expected not-OK at seq 5 (gap)")
	}
	if got.Expected != 3 || got.Actual != 5 || got.Size != 2 || got.IsReorder {
		t.Fatalf("unexpected gap: %+v", got)
	}
}

func TestGapWithinToleranceIsSilent(t *testing.T) {
	tr := New(Config{GapTolerance: 3})
	tr.Check("ticker", "BTC/USD", 1)
	if !tr.Check("ticker", "BTC/USD", 4) {
		t.Fatal("expected gap of size 2 within tolerance 3 to be accepted")
	}
}

func TestReorderDetection(t *testing.T) {
	var got Gap
	tr := New(Config{TrackReorders: true, OnGap: func(g Gap) { got = g }})
	tr.Check("ticker", "BTC/USD", 5)
	if tr.Check("ticker", "BTC/USD", 3) {
		t.Fatal("expected not-OK on reorder")
	}
	if !got.IsReorder {
		t.Fatal("expected gap to be flagged as reorder")
	}
}

func TestReorderIgnoredWhenTrackingDisabled(t *testing.T) {
	tr := New(Config{TrackReorders: false})
	tr.Check("ticker", "BTC/USD", 5)
	if !tr.Check("ticker", "BTC/USD", 3) {
		t.Fatal("expected reorder to be silently accepted when tracking disabled")
	}
}

func TestResetAndResetAll(t *testing.T) {
	tr := New(Config{})
	tr.Check("ticker", "BTC/USD", 10)
	tr.Reset("ticker", "BTC/USD")
	if !tr.Check("ticker", "BTC/USD", 1) {
		t.Fatal("expected fresh baseline after reset")
	}

	tr.Check("trade", "ETH/USD", 10)
	tr.ResetAll()
	if !tr.Check("trade", "ETH/USD", 1) {
		t.Fatal("expected fresh baseline after ResetAll")
	}
}

func TestGapCallbackPanicDoesNotPropagate(t *testing.T) {
	tr := New(Config{OnGap: func(Gap) { panic("boom") }})
	tr.Check("ticker", "BTC/USD", 1)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic from gap callback leaked out of Check: %v", r)
		}
	}()
	tr.Check("ticker", "BTC/USD", 5)
}

func TestDistinctKeysAreIndependent(t *testing.T) {
	tr := New(Config{})
	tr.Check("ticker", "BTC/USD", 100)
	if !tr.Check("trade", "BTC/USD", 1) {
		t.Fatal("expected distinct channel to establish its own baseline")
	}
	if !tr.Check("ticker", "ETH/USD", 1) {
		t.Fatal("expected distinct symbol to establish its own baseline")
	}
}
