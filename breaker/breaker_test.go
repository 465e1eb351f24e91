package breaker

import (
	"testing"
	"time"
)

func TestClosedAllowsAttempts(t *testing.T) {
	b := New(Config{Name: "t", FailureThreshold: 3, SuccessThreshold: 1, FailureWindow: time.Second, MinOpenTime: 50 * time.Millisecond})
	if !b.CanAttempt() {
		t.Fatal("expected closed breaker to allow attempt")
	}
	b.RecordSuccess()
	if b.State() != Closed {
		t.Fatalf("expected Closed, got %v", b.State())
	}
}

func TestOpensAfterFailureThreshold(t *testing.T) {
	b := New(Config{Name: "t", FailureThreshold: 2, SuccessThreshold: 1, FailureWindow: time.Second, MinOpenTime: time.Minute})
	for i := 0; i < 2; i++ {
		if !b.CanAttempt() {
			t.Fatalf("expected attempt %d to be allowed before tripping", i)
		}
		b.RecordFailure()
	}
	if b.State() != Open {
		t.Fatalf("expected Open after %d consecutive failures, got %v", 2, b.State())
	}
	if b.CanAttempt() {
		t.Fatal("expected open breaker to reject attempt")
	}
}

func TestHalfOpenAfterMinOpenTime(t *testing.T) {
	b := New(Config{Name: "t", FailureThreshold: 1, SuccessThreshold: 1, FailureWindow: time.Second, MinOpenTime: 20 * time.Millisecond})
	b.CanAttempt()
	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected Open, got %v", b.State())
	}
	time.Sleep(30 * time.Millisecond)
	if !b.CanAttempt() {
		t.Fatal("expected breaker to allow a probe attempt once min_open_time elapsed")
	}
	if b.State() != HalfOpen {
		t.Fatalf("expected HalfOpen during probe, got %v", b.State())
	}
}

func TestHalfOpenClosesOnSuccessThreshold(t *testing.T) {
	b := New(Config{Name: "t", FailureThreshold: 1, SuccessThreshold: 2, FailureWindow: time.Second, MinOpenTime: 10 * time.Millisecond})
	b.CanAttempt()
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if !b.CanAttempt() {
			t.Fatalf("expected half-open probe %d to be allowed", i)
		}
		b.RecordSuccess()
	}
	if b.State() != Closed {
		t.Fatalf("expected Closed after success_threshold successes, got %v", b.State())
	}
}

func TestHalfOpenReopensOnFailure(t *testing.T) {
	b := New(Config{Name: "t", FailureThreshold: 1, SuccessThreshold: 2, FailureWindow: time.Second, MinOpenTime: 10 * time.Millisecond})
	b.CanAttempt()
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)

	b.CanAttempt()
	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected re-open on half-open failure, got %v", b.State())
	}
}

func TestStateChangeCallback(t *testing.T) {
	var transitions []State
	b := New(Config{
		Name: "t", FailureThreshold: 1, SuccessThreshold: 1,
		FailureWindow: time.Second, MinOpenTime: time.Millisecond,
		OnStateChange: func(name string, from, to State) { transitions = append(transitions, to) },
	})
	b.CanAttempt()
	b.RecordFailure()
	if len(transitions) == 0 || transitions[0] != Open {
		t.Fatalf("expected a transition to Open, got %+v", transitions)
	}
}
