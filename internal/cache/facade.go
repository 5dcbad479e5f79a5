// Package cache implements the facade that sits between callers and a
// byte-level store: key encoding, value encoding, TTL defaults, circuit
// breaking, metrics and the error vocabulary callers rely on.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/LavishGent/cachefacade/internal/codec"
	"github.com/LavishGent/cachefacade/internal/metrics"
	"github.com/LavishGent/cachefacade/internal/resilience"
	"github.com/LavishGent/cachefacade/internal/types"
)

// Loader produces a value on a GetOrLoad miss.
type Loader func(ctx context.Context) (any, error)

// lastErrorReporter is implemented by stores that remember their most recent
// transport failure.
type lastErrorReporter interface {
	LastError() (error, time.Time)
}

// Facade is safe for concurrent use. Its only mutable state is the store's
// connection pool, the breaker and the metrics counters.
type Facade struct {
	store      types.Store
	codec      types.Codec
	keys       codec.StringKeyCodec
	defaultTTL time.Duration
	validator  *types.KeyValidator
	breaker    resilience.Breaker
	metrics    types.MetricsRecorder
	logger     *slog.Logger
	clock      types.Clock

	ownsStore bool
	onClose   func() error

	sfGroup singleflight.Group
	closed  atomic.Bool
}

func New(opts Options) (*Facade, error) {
	if opts.Store == nil {
		return nil, errors.New("cache: store is required")
	}
	if opts.DefaultTTL < 0 && opts.DefaultTTL != types.NoExpiry {
		return nil, fmt.Errorf("%w: default %v", types.ErrInvalidTTL, opts.DefaultTTL)
	}

	logger := newLogger(opts.Logger).With("component", "cache-facade")

	f := &Facade{
		store:      opts.Store,
		codec:      opts.Codec,
		keys:       codec.NewStringKeyCodec(opts.KeyPrefix),
		defaultTTL: opts.DefaultTTL,
		metrics:    opts.Metrics,
		logger:     logger,
		clock:      opts.Clock,
		ownsStore:  opts.OwnsStore,
		onClose:    opts.OnClose,
	}

	if f.codec == nil {
		f.codec = codec.NewJSONCodec()
	}
	if f.metrics == nil {
		f.metrics = metrics.NewNoOpTracker()
	}
	if f.clock == nil {
		f.clock = types.SystemClock{}
	}

	kv := types.DefaultKeyValidationConfig()
	if opts.KeyValidation != nil {
		kv = *opts.KeyValidation
	}
	f.validator = types.NewKeyValidator(kv)

	if opts.CircuitBreaker != nil {
		f.breaker = resilience.New(*opts.CircuitBreaker,
			resilience.WithName(f.store.Name()),
			resilience.WithClock(f.clock),
		)
	} else {
		f.breaker = resilience.NewDisabledCircuitBreaker()
	}
	f.breaker.SetOnStateChange(func(from, to resilience.State) {
		logger.Warn("Circuit breaker state changed",
			"store", f.store.Name(),
			"from", from.String(),
			"to", to.String(),
		)
		f.metrics.RecordCircuitBreakerStateChange(from.String(), to.String())
	})

	return f, nil
}

// Store returns the backend the facade writes to.
func (f *Facade) Store() types.Store {
	return f.store
}

func (f *Facade) Codec() types.Codec {
	return f.codec
}

// Breaker exposes the circuit breaker guarding the store.
func (f *Facade) Breaker() resilience.Breaker {
	return f.breaker
}

// Set encodes value and writes it under key. Without a TTL option the
// configured default applies; types.NoExpiry forces a persistent entry.
func (f *Facade) Set(ctx context.Context, key string, value any, opts ...types.Option) error {
	if f.closed.Load() {
		return types.ErrClosed
	}
	if err := f.validator.Validate(key); err != nil {
		return err
	}

	ttl, err := types.ApplyOptions(opts...).ResolveTTL(f.defaultTTL)
	if err != nil {
		return err
	}

	data, err := f.encode("Set", key, value)
	if err != nil {
		return err
	}

	start := time.Now()
	storeKey := f.keys.Encode(key)
	err = f.call("Set", storeKey, func() error {
		return f.store.Set(ctx, storeKey, data, ttl)
	})
	if err != nil {
		return f.fail("Set", key, err)
	}

	f.metrics.RecordSet(f.store.Name(), key, len(data), time.Since(start))
	return nil
}

// Get decodes the value stored under key into dest. It reports false with a
// nil error when the key is absent or expired.
func (f *Facade) Get(ctx context.Context, key string, dest any) (bool, error) {
	if f.closed.Load() {
		return false, types.ErrClosed
	}
	if err := f.validator.Validate(key); err != nil {
		return false, err
	}

	start := time.Now()
	data, found, err := f.read(ctx, key)
	if err != nil {
		return false, f.fail("Get", key, err)
	}
	if !found {
		f.metrics.RecordMiss(f.store.Name(), key, time.Since(start))
		return false, nil
	}

	if err := f.Decode("Get", key, data, dest); err != nil {
		return false, f.fail("Get", key, err)
	}

	f.metrics.RecordHit(f.store.Name(), key, time.Since(start))
	return true, nil
}

// read fetches the raw bytes for key through the breaker.
func (f *Facade) read(ctx context.Context, key string) ([]byte, bool, error) {
	storeKey := f.keys.Encode(key)

	var data []byte
	err := f.call("Get", storeKey, func() error {
		var err error
		data, err = f.store.Get(ctx, storeKey)
		return err
	})
	if types.IsCacheMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Delete removes key. Removing an absent key succeeds.
func (f *Facade) Delete(ctx context.Context, key string) error {
	if f.closed.Load() {
		return types.ErrClosed
	}
	if err := f.validator.Validate(key); err != nil {
		return err
	}

	start := time.Now()
	storeKey := f.keys.Encode(key)
	err := f.call("Delete", storeKey, func() error {
		return f.store.Delete(ctx, storeKey)
	})
	if err != nil {
		return f.fail("Delete", key, err)
	}

	f.metrics.RecordDelete(f.store.Name(), key, time.Since(start))
	return nil
}

func (f *Facade) Contains(ctx context.Context, key string) (bool, error) {
	if f.closed.Load() {
		return false, types.ErrClosed
	}
	if err := f.validator.Validate(key); err != nil {
		return false, err
	}

	storeKey := f.keys.Encode(key)
	var exists bool
	err := f.call("Contains", storeKey, func() error {
		var err error
		exists, err = f.store.Contains(ctx, storeKey)
		return err
	})
	if err != nil {
		return false, f.fail("Contains", key, err)
	}
	return exists, nil
}

// GetOrLoad returns the cached value for key, calling load on a miss and
// caching its result. Concurrent callers missing on the same key share one
// load. A load whose result cannot be cached is still returned.
func (f *Facade) GetOrLoad(ctx context.Context, key string, dest any, load Loader, opts ...types.Option) error {
	found, err := f.Get(ctx, key, dest)
	if err != nil || found {
		return err
	}

	ttl, err := types.ApplyOptions(opts...).ResolveTTL(f.defaultTTL)
	if err != nil {
		return err
	}

	// The flight outlives any single caller, so it runs on a context that
	// keeps the first caller's values but not its cancellation.
	flightCtx := context.WithoutCancel(ctx)
	ch := f.sfGroup.DoChan(f.keys.Encode(key), func() (any, error) {
		// Another flight may have filled the key while this one queued.
		data, found, err := f.read(flightCtx, key)
		if err != nil {
			return nil, err
		}
		if found {
			return data, nil
		}

		value, err := load(flightCtx)
		if err != nil {
			return nil, err
		}
		data, err = f.encode("GetOrLoad", key, value)
		if err != nil {
			return nil, err
		}

		storeKey := f.keys.Encode(key)
		setErr := f.call("Set", storeKey, func() error {
			return f.store.Set(flightCtx, storeKey, data, ttl)
		})
		if setErr != nil {
			f.metrics.RecordError(f.store.Name(), "GetOrLoad", setErr)
			f.logger.Warn("Failed to cache loaded value", "key", key, "error", setErr)
		}
		return data, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	if res.Err != nil {
		if types.IsConnectionError(res.Err) {
			return f.fail("GetOrLoad", key, res.Err)
		}
		// Loader errors belong to the caller; encode failures are already recorded.
		return res.Err
	}
	if res.Shared {
		f.logger.Debug("Shared in-flight load", "key", key)
	}

	data, ok := res.Val.([]byte)
	if !ok {
		return fmt.Errorf("unexpected result type: %T", res.Val)
	}
	return f.Decode("GetOrLoad", key, data, dest)
}

// HSet encodes value into field of the hash stored under key.
func (f *Facade) HSet(ctx context.Context, key, field string, value any) error {
	hs, err := f.hashStore("HSet", key)
	if err != nil {
		return err
	}

	data, err := f.encode("HSet", key, value)
	if err != nil {
		return err
	}

	start := time.Now()
	storeKey := f.keys.Encode(key)
	err = f.call("HSet", storeKey, func() error {
		return hs.HSet(ctx, storeKey, field, data)
	})
	if err != nil {
		return f.fail("HSet", key, err)
	}

	f.metrics.RecordSet(f.store.Name(), key, len(data), time.Since(start))
	return nil
}

// HGet decodes one hash field into dest, reporting false when the key or the
// field is absent.
func (f *Facade) HGet(ctx context.Context, key, field string, dest any) (bool, error) {
	hs, err := f.hashStore("HGet", key)
	if err != nil {
		return false, err
	}

	start := time.Now()
	storeKey := f.keys.Encode(key)
	var data []byte
	err = f.call("HGet", storeKey, func() error {
		var err error
		data, err = hs.HGet(ctx, storeKey, field)
		return err
	})
	if types.IsCacheMiss(err) {
		f.metrics.RecordMiss(f.store.Name(), key, time.Since(start))
		return false, nil
	}
	if err != nil {
		return false, f.fail("HGet", key, err)
	}

	if err := f.Decode("HGet", key, data, dest); err != nil {
		return false, f.fail("HGet", key, err)
	}

	f.metrics.RecordHit(f.store.Name(), key, time.Since(start))
	return true, nil
}

func (f *Facade) HDel(ctx context.Context, key string, fields ...string) error {
	hs, err := f.hashStore("HDel", key)
	if err != nil {
		return err
	}

	start := time.Now()
	storeKey := f.keys.Encode(key)
	err = f.call("HDel", storeKey, func() error {
		return hs.HDel(ctx, storeKey, fields...)
	})
	if err != nil {
		return f.fail("HDel", key, err)
	}

	f.metrics.RecordDelete(f.store.Name(), key, time.Since(start))
	return nil
}

// HGetAll returns the still-encoded fields of the hash under key. Decode
// turns each value into a Go value. An absent key yields an empty map.
func (f *Facade) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	hs, err := f.hashStore("HGetAll", key)
	if err != nil {
		return nil, err
	}

	storeKey := f.keys.Encode(key)
	var fields map[string][]byte
	err = f.call("HGetAll", storeKey, func() error {
		var err error
		fields, err = hs.HGetAll(ctx, storeKey)
		return err
	})
	if err != nil {
		return nil, f.fail("HGetAll", key, err)
	}
	return fields, nil
}

func (f *Facade) hashStore(op, key string) (types.HashStore, error) {
	if f.closed.Load() {
		return nil, types.ErrClosed
	}
	if err := f.validator.Validate(key); err != nil {
		return nil, err
	}
	hs, ok := f.store.(types.HashStore)
	if !ok {
		return nil, types.NewCacheError(op, key, f.store.Name(), types.ErrUnsupported)
	}
	return hs, nil
}

// Decode unmarshals data with the facade codec, wrapping failures as
// serialization errors.
func (f *Facade) Decode(op, key string, data []byte, dest any) error {
	if err := f.codec.Unmarshal(data, dest); err != nil {
		return types.NewSerializationError(op, key, f.codec.Name(), err)
	}
	return nil
}

func (f *Facade) encode(op, key string, value any) ([]byte, error) {
	data, err := f.codec.Marshal(value)
	if err != nil {
		err = types.NewSerializationError(op, key, f.codec.Name(), err)
		f.metrics.RecordError(f.store.Name(), op, err)
		f.logger.Debug("Serialization failed", "op", op, "key", key, "error", err)
		return nil, err
	}
	return data, nil
}

// call runs fn through the circuit breaker after classifying its error, so
// the breaker only ever sees connection errors as failures.
func (f *Facade) call(op, storeKey string, fn func() error) error {
	err := f.breaker.Execute(func() error {
		return f.classify(op, storeKey, fn())
	})
	if errors.Is(err, types.ErrCircuitOpen) && !types.IsConnectionError(err) {
		return types.NewConnectionError(op, storeKey, f.store.Name(), err)
	}
	return err
}

// classify turns an unrecognised store error into a connection error. Stores
// in this module already do so; third-party stores may not.
func (f *Facade) classify(op, storeKey string, err error) error {
	switch {
	case err == nil,
		types.IsCacheMiss(err),
		types.IsConnectionError(err),
		types.IsSerializationError(err),
		types.IsWrongType(err),
		types.IsInvalidKey(err),
		errors.Is(err, types.ErrClosed),
		errors.Is(err, types.ErrUnsupported):
		return err
	default:
		return types.NewConnectionError(op, storeKey, f.store.Name(), err)
	}
}

func (f *Facade) fail(op, key string, err error) error {
	f.metrics.RecordError(f.store.Name(), op, err)
	f.logger.Debug("Cache operation failed", "op", op, "key", key, "error", err)
	return err
}

// Health pings the store and reports its state together with the breaker
// state. The ping bypasses the breaker so a recovering store is seen.
func (f *Facade) Health(ctx context.Context) (*types.HealthMetrics, error) {
	if f.closed.Load() {
		return nil, types.ErrClosed
	}

	h := &types.HealthMetrics{
		Timestamp:           f.clock.Now(),
		Store:               f.store.Name(),
		Codec:               f.codec.Name(),
		CircuitBreakerState: f.breaker.State().String(),
		Pool:                f.store.Stats(),
	}

	start := time.Now()
	pingErr := f.store.Ping(ctx)
	h.PingLatency = time.Since(start)

	if r, ok := f.store.(lastErrorReporter); ok {
		if err, _ := r.LastError(); err != nil {
			h.LastError = err.Error()
		}
	}

	switch {
	case pingErr != nil:
		h.Status = types.HealthStatusUnhealthy
		h.LastError = pingErr.Error()
	case f.breaker.State() != resilience.StateClosed:
		h.Status = types.HealthStatusDegraded
		h.Available = true
	default:
		h.Status = types.HealthStatusHealthy
		h.Available = true
	}

	return h, nil
}

// IsHealthy reports whether the store answers a ping and the breaker is
// closed.
func (f *Facade) IsHealthy(ctx context.Context) bool {
	h, err := f.Health(ctx)
	return err == nil && h.Status == types.HealthStatusHealthy
}

// Close stops the facade. The store is closed only when the facade owns it.
// Calling Close again is a no-op.
func (f *Facade) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	f.logger.Info("Closing cache facade", "store", f.store.Name(), "owns_store", f.ownsStore)

	var errs []error
	if f.onClose != nil {
		if err := f.onClose(); err != nil {
			errs = append(errs, err)
		}
	}
	if f.ownsStore {
		if err := f.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
