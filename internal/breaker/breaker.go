// Package breaker implements the per-adapter circuit breaker state machine.
// The breaker performs no I/O; the fallback executor reports every fetch
// outcome and consults Allow before each call.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State of one breaker.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrOpen is reported for adapters skipped because their breaker is open.
var ErrOpen = errors.New("circuit open")

// Breaker tracks consecutive failures for a single adapter.
// Closed allows calls; after Threshold consecutive failures it opens and
// rejects calls for Cooldown; then exactly one trial call is let through
// (half-open). Trial success closes the breaker, trial failure re-opens it
// and restarts the cooldown.
//
// Each adapter owns its own Breaker with its own mutex, so breakers never
// contend with each other.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trialing bool

	now func() time.Time // test hook
}

func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 { threshold = 5 }
	if cooldown <= 0 { cooldown = time.Minute }
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed right now. When the cooldown of an
// open breaker has elapsed, the first Allow transitions to half-open and
// admits that single trial; concurrent callers are rejected until the trial
// outcome is reported.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = HalfOpen
		b.trialing = true
		return true
	case HalfOpen:
		if b.trialing {
			return false
		}
		b.trialing = true
		return true
	}
	return false
}

// Success records a successful call: breaker closes and the failure count resets.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.trialing = false
}

// Failure records a failed call. A failed half-open trial re-opens
// immediately; in closed state the breaker opens once the consecutive
// failure count reaches the threshold.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.state == HalfOpen || b.failures >= b.threshold {
		b.state = Open
		b.openedAt = b.now()
	}
	b.trialing = false
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current consecutive failure count.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
