// Package resilience guards calls to remote dependencies.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is the position of a CircuitBreaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	// StateHalfOpen admits one trial call after the cooldown.
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen is returned for calls the breaker refuses.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StateChangeFunc observes transitions. It runs outside the breaker's lock.
type StateChangeFunc func(from, to State)

// CircuitBreaker opens after maxFailures consecutive failures and refuses
// calls for the cooldown. It then lets a single trial call through: success
// closes it, failure opens it again. Calls arriving while the trial is in
// flight are refused.
type CircuitBreaker struct {
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
	onChange    StateChangeFunc

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool // a half-open call is in flight
}

type Option func(*CircuitBreaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

func WithStateChange(fn StateChangeFunc) Option {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

// NewCircuitBreaker returns a closed breaker. maxFailures below 1 counts as 1.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		maxFailures: max(maxFailures, 1),
		cooldown:    cooldown,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Execute calls fn unless the breaker refuses, and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.acquire() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.release(err)
	return err
}

func (cb *CircuitBreaker) acquire() bool {
	cb.mu.Lock()
	from := cb.state
	ok := true
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			ok = false
			break
		}
		cb.state = StateHalfOpen
		cb.trial = true
	case StateHalfOpen:
		if cb.trial {
			ok = false
		} else {
			cb.trial = true
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return ok
}

func (cb *CircuitBreaker) release(err error) {
	cb.mu.Lock()
	from := cb.state
	cb.trial = false
	switch {
	case err == nil:
		cb.state, cb.failures = StateClosed, 0
	case cb.state == StateHalfOpen:
		cb.trip()
	default:
		if cb.failures++; cb.failures >= cb.maxFailures {
			cb.trip()
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// trip opens the breaker. cb.mu must be held.
func (cb *CircuitBreaker) trip() {
	cb.state, cb.failures, cb.openedAt = StateOpen, 0, cb.now()
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.onChange != nil {
		cb.onChange(from, to)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
