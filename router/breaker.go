package router

import (
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/model"
)

// CircuitState is the state of a Breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// Breaker is a minimal per-error-kind circuit breaker guarding one chain
// entry. It is safe for concurrent use.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu         sync.Mutex
	state      CircuitState
	failures   map[model.ErrorKind]int
	openedAt   time.Time
	openedKind model.ErrorKind
}

// NewBreaker creates a Breaker that opens after threshold consecutive
// failures of one kind and probes again after cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     CircuitClosed,
		failures:  map[model.ErrorKind]int{},
	}
}

// State returns the current state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow returns whether a call is allowed at this instant. An open breaker
// moves to half-open once the cooldown has elapsed and lets one probe through.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		// A probe is already in flight.
		return false
	}
	if now.Sub(b.openedAt) >= b.cooldown {
		b.state = CircuitHalfOpen
		return true
	}
	return false
}

// RecordSuccess closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitClosed
	b.openedKind = ""
	b.failures = map[model.ErrorKind]int{}
}

// RecordFailure updates state after a failure of the given kind. A failed
// half-open probe reopens immediately.
func (b *Breaker) RecordFailure(kind model.ErrorKind, now time.Time) {
	if kind == "" {
		kind = model.KindUnknown
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitHalfOpen {
		b.state = CircuitOpen
		b.openedAt = now
		b.openedKind = kind
		return
	}
	for k := range b.failures {
		if k != kind {
			delete(b.failures, k)
		}
	}
	b.failures[kind]++
	if b.failures[kind] >= b.threshold {
		b.state = CircuitOpen
		b.openedAt = now
		b.openedKind = kind
	}
}

// RecordCanceled releases a half-open probe that was abandoned by its
// caller. The breaker returns to open with its original open time, so the
// next call after the cooldown probes again. Other states are unaffected.
func (b *Breaker) RecordCanceled() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitHalfOpen {
		b.state = CircuitOpen
	}
}

// OpenedKind returns the failure kind that opened the breaker.
func (b *Breaker) OpenedKind() model.ErrorKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openedKind
}
