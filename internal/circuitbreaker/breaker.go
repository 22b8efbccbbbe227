// Package circuitbreaker guards calls to remote attestation verifiers and
// custody adapters so a dead dependency sheds load fast instead of tying up
// every consumer goroutine in timeouts.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State of the breaker. The numeric values feed gauges, so the order is
// part of the contract.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a circuit breaker. OnStateChange is invoked with the
// breaker lock held; callbacks must not call back into the Breaker.
type Config struct {
	FailureThreshold int           // consecutive failures before opening (default 5)
	SuccessThreshold int           // half-open successes before closing (default 2)
	OpenTimeout      time.Duration // how long to stay open before probing (default 30s)
	OnStateChange    func(from, to State)
}

// Breaker is a three-state circuit breaker. While half-open it admits at
// most SuccessThreshold probes at a time; further calls fail fast until
// the probes report back.
type Breaker struct {
	cfg     Config
	nowFunc func() time.Time // injectable clock for testing

	mu             sync.Mutex
	state          State
	failures       int
	successes      int
	probes         int
	lastFailureAt  time.Time
	lastTransition time.Time
}

func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, nowFunc: time.Now}
}

// Allow reports whether a call may proceed. An elapsed open window flips
// the breaker to half-open and admits the caller as the first probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.nowFunc()

	switch b.state {
	case StateOpen:
		if now.Sub(b.lastFailureAt) <= b.cfg.OpenTimeout {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen, now)
		b.probes++
		return nil

	case StateHalfOpen:
		if b.probes >= b.cfg.SuccessThreshold {
			// Probes that never reported back release their slots
			// after another open window.
			if now.Sub(b.lastTransition) <= b.cfg.OpenTimeout {
				return ErrCircuitOpen
			}
			b.probes = 0
			b.lastTransition = now
		}
		b.probes++
		return nil
	}
	return nil
}

// Execute runs fn under the breaker: it returns ErrCircuitOpen without
// calling fn when the breaker is rejecting, and records fn's outcome
// otherwise.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state != StateHalfOpen {
		return
	}
	b.successes++
	if b.successes >= b.cfg.SuccessThreshold {
		b.transition(StateClosed, b.nowFunc())
	}
}

// RecordFailure records a failed call. Any half-open failure reopens the
// breaker immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.nowFunc()
	b.failures++
	b.lastFailureAt = now

	switch {
	case b.state == StateHalfOpen:
		b.transition(StateOpen, now)
	case b.state == StateClosed && b.failures >= b.cfg.FailureThreshold:
		b.transition(StateOpen, now)
	}
}

// State reports the current state, applying the open timeout first so
// callers observe half-open rather than a stale open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.nowFunc()
	if b.state == StateOpen && now.Sub(b.lastFailureAt) > b.cfg.OpenTimeout {
		b.transition(StateHalfOpen, now)
	}
	return b.state
}

func (b *Breaker) transition(to State, now time.Time) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.successes = 0
	b.probes = 0
	b.lastTransition = now
	if to == StateClosed {
		b.failures = 0
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
