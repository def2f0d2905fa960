package advisory

import (
	"sync"
	"time"
)

// BreakerState labels the breaker's position for status reporting.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Breaker holds circuit state across requests: consecutive-failure count and
// an open-until timestamp. After the cooldown it admits a single half-open
// trial; the trial's outcome either closes or re-opens the circuit.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
	now       func() time.Time
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures and cools down for the given duration before a half-open trial.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a request may proceed. While open and cooling down it
// returns false; once the cooldown has elapsed it admits a trial request.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openUntil.IsZero() {
		return true
	}
	return !b.now().Before(b.openUntil)
}

// Success records a successful request and closes the circuit.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
}

// Failure records a failed request, opening the circuit once the
// consecutive-failure threshold is reached. A failure during a half-open
// trial re-opens immediately.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = b.now().Add(b.cooldown)
	}
}

// State returns closed, open, or half_open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openUntil.IsZero() {
		return BreakerClosed
	}
	if b.now().Before(b.openUntil) {
		return BreakerOpen
	}
	return BreakerHalfOpen
}
