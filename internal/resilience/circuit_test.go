package resilience

import (
	"testing"
	"time"
)

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	b := NewBreaker(4, 0.5, time.Minute)
	for i := 0; i < 2; i++ {
		b.Report(true)
	}
	for i := 0; i < 2; i++ {
		b.Report(false)
	}
	if b.CurrentState() != Open {
		t.Fatalf("expected open, got %s", b.CurrentState())
	}
	if b.Allow() {
		t.Fatal("open breaker must refuse requests")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(1, 0.1, 10*time.Millisecond)
	b.Report(false)
	if b.CurrentState() != Open {
		t.Fatalf("expected open, got %s", b.CurrentState())
	}
	time.Sleep(15 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected a probe to be allowed after cool-off")
	}
	if b.CurrentState() != HalfOpen {
		t.Fatalf("expected half-open, got %s", b.CurrentState())
	}
	b.Report(true)
	if b.CurrentState() != Closed {
		t.Fatalf("expected closed after successful probe, got %s", b.CurrentState())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(1, 0.1, 5*time.Millisecond)
	b.Report(false)
	time.Sleep(10 * time.Millisecond)
	_ = b.Allow()
	b.Report(false)
	if b.CurrentState() != Open {
		t.Fatalf("expected reopened breaker, got %s", b.CurrentState())
	}
}

func TestBackoffGrows(t *testing.T) {
	base := 100 * time.Millisecond
	if Backoff(base, 1, 0) != base {
		t.Fatal("first attempt should use the base delay")
	}
	if Backoff(base, 3, 0) != 4*base {
		t.Fatalf("expected 4x base for attempt 3, got %s", Backoff(base, 3, 0))
	}
}
