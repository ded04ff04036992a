// Package circuitbreaker guards a flaky dependency with a fail-fast gate.
// The recorder wraps its database writes in one so a dead Postgres costs a
// counter increment instead of a blocked write per record.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/metrics"
)

// ErrOpen is returned by Execute while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker's gate position.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// Breaker trips open after maxFailures consecutive errors and rejects calls
// for the cooldown window. The first call after the window runs as a probe;
// its outcome closes the breaker or re-opens it for another window.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New builds a breaker. maxFailures <= 0 defaults to 5, cooldown <= 0 to 30s.
func New(name string, maxFailures int, cooldown time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	b := &Breaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
	b.publish(StateClosed)
	return b
}

// Execute runs fn through the gate. While open it returns ErrOpen without
// calling fn; in half-open exactly one probe call is admitted at a time.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err)
	return err
}

// State returns the current gate position, advancing open -> half-open if
// the cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()

	switch b.state {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.state = StateOpen
			b.openedAt = b.now()
			b.publish(StateOpen)
		}
		return
	}

	b.failures = 0
	if b.state != StateClosed {
		b.state = StateClosed
		b.publish(StateClosed)
	}
}

// advanceLocked moves an expired open state to half-open. Callers hold mu.
func (b *Breaker) advanceLocked() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state = StateHalfOpen
		b.probing = false
		b.publish(StateHalfOpen)
	}
}

func (b *Breaker) publish(s State) {
	var v float64
	switch s {
	case StateHalfOpen:
		v = 1
	case StateOpen:
		v = 2
	}
	metrics.BreakerState.WithLabelValues(b.name).Set(v)
}
