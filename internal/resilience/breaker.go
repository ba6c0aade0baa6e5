// Package resilience provides reliability patterns for external service calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the position of a Breaker in its state machine.
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
		return "half_open"
	}
	return "unknown"
}

// BreakerConfig controls thresholds for state transitions.
type BreakerConfig struct {
	// WindowSize is the number of most recent call outcomes kept while closed.
	WindowSize int
	// MinCalls is the number of outcomes required before the failure ratio is evaluated.
	MinCalls int
	// FailureRatio opens the circuit when failures/outcomes reaches it.
	FailureRatio float64
	// CoolDown is how long the circuit stays open before allowing trial calls.
	CoolDown time.Duration
	// HalfOpenMaxCalls caps concurrent trial calls while half-open.
	HalfOpenMaxCalls int
	// IsFailure decides whether an error counts against the downstream.
	// Errors for which it returns false are passed through unrecorded.
	// Nil means every non-nil error is a failure.
	IsFailure func(error) bool
	// OnStateChange is invoked after every transition, outside the lock.
	OnStateChange func(name string, from, to State)
}

// Breaker implements a circuit breaker over a count-based rolling window.
// It is safe for concurrent use; one instance is shared by every caller of
// the dependency it protects.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    State
	outcomes []bool // ring buffer, true = failure
	next     int
	filled   int
	failures int
	openedAt time.Time
	trials   int              // in-flight half-open calls
	gen      uint64           // bumped on every transition
	now      func() time.Time // for testing
}

// NewBreaker creates a named circuit breaker. Zero or negative config values
// fall back to a window of 1, MinCalls of 1, a ratio of 1 and one trial call.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = 1
	}
	if cfg.MinCalls < 1 {
		cfg.MinCalls = 1
	}
	if cfg.MinCalls > cfg.WindowSize {
		cfg.MinCalls = cfg.WindowSize
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = 1
	}
	if cfg.HalfOpenMaxCalls < 1 {
		cfg.HalfOpenMaxCalls = 1
	}
	return &Breaker{
		name:     name,
		cfg:      cfg,
		outcomes: make([]bool, cfg.WindowSize),
		now:      time.Now,
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state. An open breaker whose cool-down has
// elapsed still reports open until the next call moves it to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn if the circuit is closed, or half-open with a free trial slot.
// Returns ErrCircuitOpen without calling fn otherwise.
func (b *Breaker) Execute(fn func() error) error {
	gen, ok := b.allowRequest()
	if !ok {
		return ErrCircuitOpen
	}

	err := fn()
	b.record(gen, err)
	return err
}

// allowRequest admits or rejects a call and returns the generation it was
// admitted in. The generation changes on every state transition.
func (b *Breaker) allowRequest() (uint64, bool) {
	b.mu.Lock()
	halfOpened := false
	defer func() {
		b.mu.Unlock()
		if halfOpened {
			b.notify(StateOpen, StateHalfOpen)
		}
	}()

	switch b.state {
	case StateClosed:
		return b.gen, true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.CoolDown {
			return b.gen, false
		}
		b.transition(StateHalfOpen)
		halfOpened = true
		b.trials = 1
		return b.gen, true
	case StateHalfOpen:
		if b.trials >= b.cfg.HalfOpenMaxCalls {
			return b.gen, false
		}
		b.trials++
		return b.gen, true
	}
	return b.gen, false
}

func (b *Breaker) record(gen uint64, err error) {
	failed := err != nil
	ignored := failed && b.cfg.IsFailure != nil && !b.cfg.IsFailure(err)

	b.mu.Lock()
	from := b.state
	if gen != b.gen {
		// The breaker moved while the call was in flight; its outcome
		// belongs to a window that no longer exists.
		b.mu.Unlock()
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.trials--
		switch {
		case ignored:
		case failed:
			b.trip()
		default:
			b.reset()
		}
	case StateClosed:
		if !ignored {
			b.push(failed)
			if b.filled >= b.cfg.MinCalls && float64(b.failures)/float64(b.filled) >= b.cfg.FailureRatio {
				b.trip()
			}
		}
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.notify(from, to)
	}
}

// push must be called with b.mu held.
func (b *Breaker) push(failed bool) {
	if b.filled == len(b.outcomes) {
		if b.outcomes[b.next] {
			b.failures--
		}
	} else {
		b.filled++
	}
	b.outcomes[b.next] = failed
	if failed {
		b.failures++
	}
	b.next = (b.next + 1) % len(b.outcomes)
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	b.state = to
	b.gen++
	b.trials = 0
}

// trip must be called with b.mu held.
func (b *Breaker) trip() {
	b.transition(StateOpen)
	b.openedAt = b.now()
}

// reset must be called with b.mu held.
func (b *Breaker) reset() {
	b.transition(StateClosed)
	b.next, b.filled, b.failures = 0, 0, 0
	clear(b.outcomes)
}

func (b *Breaker) notify(from, to State) {
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
