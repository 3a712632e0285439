// Package circuitbreaker stops calls to a remote service after too many
// failures within a sliding window, and lets one probe through once the open
// timeout has passed.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type CircuitBreaker struct {
	maxFailures int
	window      time.Duration
	timeout     time.Duration

	mu       sync.Mutex
	state    State
	failures []time.Time
	openedAt time.Time
	now      func() time.Time
}

// New opens the breaker once maxFailures calls failed within window, and
// keeps it open for timeout.
func New(maxFailures int, window, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures: maxFailures,
		window:      window,
		timeout:     timeout,
		state:       StateClosed,
		now:         time.Now,
	}
}

// Execute runs fn unless the breaker is open, in which case it returns
// ErrOpen without calling fn. Context cancellation is not counted as a
// failure of the remote side.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		return err
	}
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.timeout {
			return ErrOpen
		}
		cb.state = StateHalfOpen
		return nil
	case StateHalfOpen:
		// one probe at a time
		return ErrOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	if err == nil {
		if cb.state == StateHalfOpen {
			cb.state = StateClosed
			cb.failures = cb.failures[:0]
		}
		cb.prune(now)
		return
	}

	cb.failures = append(cb.failures, now)
	cb.prune(now)
	if cb.state == StateHalfOpen || len(cb.failures) >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = now
	}
}

func (cb *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-cb.window)
	keep := cb.failures[:0]
	for _, t := range cb.failures {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	cb.failures = keep
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.timeout {
		return StateHalfOpen
	}
	return cb.state
}
