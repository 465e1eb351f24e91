package backoff

import "testing"

func TestExponentialBoundsNoJitter(t *testing.T) {
	e := &Exponential{Initial: 1_000_000_000, Multiplier: 2, Max: 60_000_000_000, Jitter: 0}
	want := []int64{1, 2, 4, 8, 16}
	for i, w := range want {
		got := e.NextDelay()
		if got.Seconds() != float64(w) {
			t.Fatalf("delay %d = %v, want %ds", i, got, w)
		}
	}
}

func TestExponentialClampsAtMax(t *testing.T) {
	e := &Exponential{Initial: 1_000_000_000, Multiplier: 2, Max: 5_000_000_000, Jitter: 0}
	for i := 0; i < 10; i++ {
		e.NextDelay()
	}
	got := e.NextDelay()
	if got.Seconds() != 5 {
		t.Fatalf("expected clamp at 5s, got %v", got)
	}
}

func TestShouldStopAtMaxAttemptsPlusOne(t *testing.T) {
	f := &Fixed{Delay: 0, MaxAttempts: 3}
	for i := 0; i < 3; i++ {
		if f.ShouldStop() {
			t.Fatalf("should not stop before %d attempts", 3)
		}
		f.NextDelay()
	}
	if !f.ShouldStop() {
		t.Fatal("expected ShouldStop true after N attempts")
	}
}

func TestUnboundedNeverStops(t *testing.T) {
	n := &None{MaxAttempts: 0}
	for i := 0; i < 1000; i++ {
		if n.ShouldStop() {
			t.Fatal("unbounded policy should never stop")
		}
		n.NextDelay()
	}
}

func TestResetClearsAttempts(t *testing.T) {
	f := &Fixed{Delay: 0, MaxAttempts: 2}
	f.NextDelay()
	f.NextDelay()
	if !f.ShouldStop() {
		t.Fatal("expected stop before reset")
	}
	f.Reset()
	if f.ShouldStop() {
		t.Fatal("expected reset to clear the attempt counter")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := Conservative()
	orig.NextDelay()
	orig.NextDelay()

	clone := orig.Clone()
	if clone.ShouldStop() {
		t.Fatal("expected fresh clone to have a zeroed attempt counter")
	}
}

func TestPresets(t *testing.T) {
	for name, p := range map[string]Policy{
		"aggressive":   Aggressive(),
		"conservative": Conservative(),
		"infinite":     Infinite(),
	} {
		if p.NextDelay() < 0 {
			t.Fatalf("%s: expected non-negative delay", name)
		}
	}
}

func TestNoneAlwaysZero(t *testing.T) {
	n := &None{}
	for i := 0; i < 5; i++ {
		if d := n.NextDelay(); d != 0 {
			t.Fatalf("expected zero delay, got %v", d)
		}
	}
}
