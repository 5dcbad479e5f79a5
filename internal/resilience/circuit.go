// Package resilience guards store calls with a circuit breaker so a dead
// backend fails fast instead of holding every caller for a dial timeout.
package resilience

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/types"
)

type State int32

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

// Breaker is the surface the facade depends on.
type Breaker interface {
	Execute(fn func() error) error
	State() State
	Stats() CircuitBreakerStats
	SetOnStateChange(fn func(from, to State))
	Reset()
}

// CircuitBreakerStats is a snapshot of the breaker counters.
type CircuitBreakerStats struct {
	State            State
	ConsecutiveFails int
	ConsecutiveSuccs int
	HalfOpenRequests int
}

// counts is reset on every state change.
type counts struct {
	fails    int
	succs    int
	inFlight int
}

// CircuitBreaker counts consecutive failures of the store. Only errors for
// which Trips reports true count as failures; any other outcome, including
// a miss or a codec error, proves the store answered.
//
// The state is mirrored in an atomic so State never waits on the mutex,
// which lets state-change callbacks inspect the breaker.
type CircuitBreaker struct {
	name  string
	clock types.Clock

	failureThreshold    int
	successThreshold    int
	openDuration        time.Duration
	halfOpenMaxRequests int

	mu       sync.Mutex
	counts   counts
	expiry   time.Time // end of the open period
	onChange func(from, to State)

	state atomic.Int32
}

type Option func(*CircuitBreaker)

// WithClock replaces the wall clock used to time the open state.
func WithClock(clock types.Clock) Option {
	return func(cb *CircuitBreaker) {
		if clock != nil {
			cb.clock = clock
		}
	}
}

// WithName labels the breaker, usually with the store name.
func WithName(name string) Option {
	return func(cb *CircuitBreaker) {
		cb.name = name
	}
}

// New returns a CircuitBreaker when cfg is enabled and a pass-through
// breaker otherwise.
func New(cfg config.CircuitBreakerConfig, opts ...Option) Breaker {
	if !cfg.Enabled {
		return NewDisabledCircuitBreaker()
	}
	return NewCircuitBreaker(cfg, opts...)
}

// NewCircuitBreaker builds a closed breaker. Zero thresholds fall back to
// five failures, two successes, thirty seconds open and three probes.
func NewCircuitBreaker(cfg config.CircuitBreakerConfig, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:                "store",
		clock:               types.SystemClock{},
		failureThreshold:    orDefault(cfg.FailureThreshold, 5),
		successThreshold:    orDefault(cfg.SuccessThreshold, 2),
		openDuration:        cfg.OpenDuration,
		halfOpenMaxRequests: orDefault(cfg.HalfOpenMaxRequests, 3),
	}
	if cb.openDuration <= 0 {
		cb.openDuration = 30 * time.Second
	}

	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn through the breaker. While the circuit is open it returns
// ErrCircuitOpen without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}

	err := fn()
	if Trips(err) {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return err
}

// Allow reports whether a call may proceed. An open breaker whose period has
// elapsed moves to half-open and admits up to halfOpenMaxRequests probes.
func (cb *CircuitBreaker) Allow() bool {
	if cb.State() == StateClosed {
		return true
	}

	cb.mu.Lock()
	var notify func()
	if cb.current() == StateOpen && !cb.clock.Now().Before(cb.expiry) {
		notify = cb.setState(StateHalfOpen)
	}

	allowed := false
	if cb.current() == StateHalfOpen && cb.counts.inFlight < cb.halfOpenMaxRequests {
		cb.counts.inFlight++
		allowed = true
	}
	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
	return allowed
}

// RecordSuccess closes a half-open breaker after successThreshold successes
// and clears the failure streak of a closed one.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	var notify func()
	switch cb.current() {
	case StateClosed:
		cb.counts.fails = 0
	case StateHalfOpen:
		cb.counts.succs++
		if cb.counts.succs >= cb.successThreshold {
			notify = cb.setState(StateClosed)
		}
	}
	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// RecordFailure opens the breaker after failureThreshold consecutive
// failures, or at once when half-open.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	var notify func()
	switch cb.current() {
	case StateClosed:
		cb.counts.fails++
		if cb.counts.fails >= cb.failureThreshold {
			notify = cb.setState(StateOpen)
		}
	case StateHalfOpen:
		notify = cb.setState(StateOpen)
	}
	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (cb *CircuitBreaker) current() State {
	return State(cb.state.Load())
}

// setState must be called with mu held. It returns the callback to run once
// the lock is released, or nil.
func (cb *CircuitBreaker) setState(to State) func() {
	from := cb.current()
	if from == to {
		return nil
	}

	cb.counts = counts{}
	if to == StateOpen {
		cb.expiry = cb.clock.Now().Add(cb.openDuration)
	}
	cb.state.Store(int32(to))

	if fn := cb.onChange; fn != nil {
		return func() { fn(from, to) }
	}
	return nil
}

func (cb *CircuitBreaker) State() State {
	return cb.current()
}

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// SetOnStateChange sets a callback invoked synchronously after each
// transition, outside the breaker's lock.
func (cb *CircuitBreaker) SetOnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

// Reset closes the breaker without notifying the callback.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts = counts{}
	cb.state.Store(int32(StateClosed))
}

func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		State:            cb.current(),
		ConsecutiveFails: cb.counts.fails,
		ConsecutiveSuccs: cb.counts.succs,
		HalfOpenRequests: cb.counts.inFlight,
	}
}

// DisabledCircuitBreaker passes every call straight through.
type DisabledCircuitBreaker struct{}

func NewDisabledCircuitBreaker() *DisabledCircuitBreaker {
	return &DisabledCircuitBreaker{}
}

func (cb *DisabledCircuitBreaker) Execute(fn func() error) error { return fn() }

func (cb *DisabledCircuitBreaker) State() State { return StateClosed }

func (cb *DisabledCircuitBreaker) Stats() CircuitBreakerStats {
	return CircuitBreakerStats{State: StateClosed}
}

func (cb *DisabledCircuitBreaker) SetOnStateChange(fn func(from, to State)) {}

func (cb *DisabledCircuitBreaker) Reset() {}

var (
	_ Breaker = (*CircuitBreaker)(nil)
	_ Breaker = (*DisabledCircuitBreaker)(nil)
)
