package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errDown = types.NewConnectionError("Get", "k", "redis", errors.New("dial tcp: connection refused"))

// tripped returns a breaker that has just opened.
func tripped(t *testing.T, cfg config.CircuitBreakerConfig, clock *fakeClock) *CircuitBreaker {
	t.Helper()
	cfg.FailureThreshold = 1
	cb := NewCircuitBreaker(cfg, WithClock(clock))
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())
	return cb
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestNew(t *testing.T) {
	assert.IsType(t, &DisabledCircuitBreaker{}, New(config.CircuitBreakerConfig{Enabled: false}))

	cb, ok := New(config.CircuitBreakerConfig{Enabled: true}, WithName("redis")).(*CircuitBreaker)
	require.True(t, ok)
	assert.Equal(t, "redis", cb.Name())
}

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{
		FailureThreshold:    10,
		SuccessThreshold:    5,
		OpenDuration:        time.Minute,
		HalfOpenMaxRequests: 7,
	})
	assert.Equal(t, 10, cb.failureThreshold)
	assert.Equal(t, 5, cb.successThreshold)
	assert.Equal(t, time.Minute, cb.openDuration)
	assert.Equal(t, 7, cb.halfOpenMaxRequests)
	assert.Equal(t, StateClosed, cb.State())

	zero := NewCircuitBreaker(config.CircuitBreakerConfig{})
	assert.Equal(t, 5, zero.failureThreshold)
	assert.Equal(t, 2, zero.successThreshold)
	assert.Equal(t, 30*time.Second, zero.openDuration)
	assert.Equal(t, 3, zero.halfOpenMaxRequests)
}

func TestCircuitBreakerTransitions(t *testing.T) {
	t.Run("opens at the failure threshold", func(t *testing.T) {
		cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 3, OpenDuration: time.Second})

		cb.RecordFailure()
		cb.RecordFailure()
		assert.Equal(t, StateClosed, cb.State())

		cb.RecordFailure()
		assert.Equal(t, StateOpen, cb.State())
		assert.True(t, cb.IsOpen())
	})

	t.Run("a success breaks the failure streak", func(t *testing.T) {
		cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 2})

		cb.RecordFailure()
		cb.RecordSuccess()
		cb.RecordFailure()
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("half-open once the open period ends", func(t *testing.T) {
		clock := newFakeClock()
		cb := tripped(t, config.CircuitBreakerConfig{OpenDuration: time.Minute}, clock)

		assert.False(t, cb.Allow())
		clock.Advance(59 * time.Second)
		assert.False(t, cb.Allow())

		clock.Advance(time.Second)
		assert.True(t, cb.Allow())
		assert.Equal(t, StateHalfOpen, cb.State())
	})

	t.Run("closes after enough probe successes", func(t *testing.T) {
		clock := newFakeClock()
		cb := tripped(t, config.CircuitBreakerConfig{SuccessThreshold: 2, OpenDuration: time.Second}, clock)
		clock.Advance(time.Second)
		require.True(t, cb.Allow())

		cb.RecordSuccess()
		assert.Equal(t, StateHalfOpen, cb.State())
		cb.RecordSuccess()
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("a failed probe reopens", func(t *testing.T) {
		clock := newFakeClock()
		cb := tripped(t, config.CircuitBreakerConfig{OpenDuration: time.Second}, clock)
		clock.Advance(time.Second)
		require.True(t, cb.Allow())

		cb.RecordFailure()
		assert.Equal(t, StateOpen, cb.State())
		assert.False(t, cb.Allow())
	})
}

func TestCircuitBreakerHalfOpenLimit(t *testing.T) {
	clock := newFakeClock()
	cb := tripped(t, config.CircuitBreakerConfig{OpenDuration: time.Second, HalfOpenMaxRequests: 2}, clock)
	clock.Advance(time.Second)

	assert.True(t, cb.Allow())
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow())
	assert.Equal(t, 2, cb.Stats().HalfOpenRequests)
}

func TestCircuitBreakerExecute(t *testing.T) {
	t.Run("returns the function error", func(t *testing.T) {
		cb := NewCircuitBreaker(config.CircuitBreakerConfig{})
		want := errors.New("boom")

		assert.Same(t, want, cb.Execute(func() error { return want }))
	})

	t.Run("connection errors trip the breaker", func(t *testing.T) {
		cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 2, OpenDuration: time.Hour})

		_ = cb.Execute(func() error { return errDown })
		_ = cb.Execute(func() error { return errDown })

		called := false
		err := cb.Execute(func() error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.True(t, IsCircuitOpen(err))
		assert.False(t, called, "function should not run while open")
	})

	t.Run("other outcomes count as answers", func(t *testing.T) {
		cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1})

		for _, err := range []error{
			types.ErrCacheMiss,
			types.NewSerializationError("Get", "k", "json", errors.New("bad")),
			fmt.Errorf("wrapped: %w", context.Canceled),
			types.NewConnectionError("Get", "k", "redis", context.Canceled),
		} {
			_ = cb.Execute(func() error { return err })
		}

		assert.Equal(t, StateClosed, cb.State())
	})
}

func TestTrips(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection", errDown, true},
		{"deadline", types.NewConnectionError("Get", "k", "redis", context.DeadlineExceeded), true},
		{"canceled", types.NewConnectionError("Get", "k", "redis", context.Canceled), false},
		{"miss", types.ErrCacheMiss, false},
		{"plain", errors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Trips(tt.err))
		})
	}
}

func TestCircuitBreakerOnStateChange(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: time.Second}, WithClock(clock))

	var changes []string
	cb.SetOnStateChange(func(from, to State) {
		changes = append(changes, from.String()+"->"+to.String())
	})

	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.Allow()
	cb.RecordSuccess()
	cb.RecordSuccess()

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, changes)
}

func TestCircuitBreakerCallbackCanReadState(t *testing.T) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1})

	done := make(chan struct{})
	var (
		state State
		stats CircuitBreakerStats
	)
	cb.SetOnStateChange(func(from, to State) {
		state = cb.State()
		stats = cb.Stats()
	})

	go func() {
		cb.RecordFailure()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback deadlocked reading breaker state")
	}

	assert.Equal(t, StateOpen, state)
	assert.Equal(t, StateOpen, stats.State)
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: time.Hour})
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
	assert.Equal(t, CircuitBreakerStats{State: StateClosed}, cb.Stats())
}

func TestCircuitBreakerConcurrency(t *testing.T) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 100000, OpenDuration: time.Second})

	var (
		wg    sync.WaitGroup
		calls atomic.Int64
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = cb.Execute(func() error {
					calls.Add(1)
					if j%2 == 0 {
						return nil
					}
					return errDown
				})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5000), calls.Load())
	assert.Equal(t, StateClosed, cb.State())
}

func TestDisabledCircuitBreaker(t *testing.T) {
	cb := NewDisabledCircuitBreaker()

	for i := 0; i < 10; i++ {
		_ = cb.Execute(func() error { return errDown })
	}

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, StateClosed, cb.Stats().State)
}
