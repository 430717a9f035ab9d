package breaker

import (
	"testing"
	"time"
)

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := New(3, time.Minute)
	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("closed breaker rejected call %d", i)
		}
		b.Failure()
	}
	if b.State() != Closed {
		t.Fatalf("state after 2 failures = %v, want closed", b.State())
	}
	b.Allow()
	b.Failure()
	if b.State() != Open {
		t.Fatalf("state after 3 failures = %v, want open", b.State())
	}
	if b.Allow() {
		t.Fatal("open breaker allowed a call inside cooldown")
	}
	if b.ConsecutiveFailures() != 3 {
		t.Fatalf("failures = %d, want 3", b.ConsecutiveFailures())
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := New(3, time.Minute)
	b.Failure()
	b.Failure()
	b.Success()
	if b.ConsecutiveFailures() != 0 {
		t.Fatalf("failures = %d after success, want 0", b.ConsecutiveFailures())
	}
	// threshold counts consecutive failures only; two more must not open
	b.Failure()
	b.Failure()
	if b.State() != Closed {
		t.Fatalf("state = %v, want closed", b.State())
	}
}

func TestBreaker_CooldownAdmitsSingleTrial(t *testing.T) {
	clock := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	b := New(2, time.Minute)
	b.now = func() time.Time { return clock }

	b.Failure()
	b.Failure()
	if b.State() != Open {
		t.Fatalf("state = %v, want open", b.State())
	}

	clock = clock.Add(30 * time.Second)
	if b.Allow() {
		t.Fatal("allowed before cooldown elapsed")
	}

	clock = clock.Add(31 * time.Second)
	if !b.Allow() {
		t.Fatal("trial call rejected after cooldown")
	}
	if b.State() != HalfOpen {
		t.Fatalf("state = %v, want half-open", b.State())
	}
	// only one trial is in flight at a time
	if b.Allow() {
		t.Fatal("second concurrent trial admitted")
	}
}

func TestBreaker_TrialOutcome(t *testing.T) {
	clock := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

	t.Run("failure reopens immediately", func(t *testing.T) {
		b := New(2, time.Minute)
		b.now = func() time.Time { return clock }
		b.Failure()
		b.Failure()
		clock = clock.Add(2 * time.Minute)
		if !b.Allow() {
			t.Fatal("trial rejected")
		}
		b.Failure()
		if b.State() != Open {
			t.Fatalf("state = %v, want open after failed trial", b.State())
		}
		if b.Allow() {
			t.Fatal("allowed right after trial failure; cooldown must restart")
		}
	})

	t.Run("success closes", func(t *testing.T) {
		b := New(2, time.Minute)
		b.now = func() time.Time { return clock }
		b.Failure()
		b.Failure()
		clock = clock.Add(2 * time.Minute)
		if !b.Allow() {
			t.Fatal("trial rejected")
		}
		b.Success()
		if b.State() != Closed {
			t.Fatalf("state = %v, want closed after trial success", b.State())
		}
		if !b.Allow() {
			t.Fatal("closed breaker rejected call")
		}
	})
}
