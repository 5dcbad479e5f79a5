package cachefacade

import (
	"time"

	"github.com/LavishGent/cachefacade/internal/cache"
	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/types"
)

// Option configures a single cache operation.
type Option = types.Option

// WithTTL sets a per-entry time-to-live. Pass NoExpiry to persist an entry
// regardless of the facade default.
func WithTTL(ttl time.Duration) Option {
	return types.WithTTL(ttl)
}

// FacadeOption configures a Facade at construction.
type FacadeOption func(*cache.Options)

// WithCodec replaces the default JSON codec. See NewCodec.
func WithCodec(codec Codec) FacadeOption {
	return func(o *cache.Options) {
		o.Codec = codec
	}
}

// WithKeyPrefix namespaces every key. Without a prefix keys reach the store
// byte-for-byte.
func WithKeyPrefix(prefix string) FacadeOption {
	return func(o *cache.Options) {
		o.KeyPrefix = prefix
	}
}

// WithDefaultTTL applies ttl to writes that do not set their own.
func WithDefaultTTL(ttl time.Duration) FacadeOption {
	return func(o *cache.Options) {
		o.DefaultTTL = ttl
	}
}

// WithLogger accepts a *slog.Logger or any Logger.
func WithLogger(logger Logger) FacadeOption {
	return func(o *cache.Options) {
		o.Logger = logger
	}
}

func WithMetrics(metrics MetricsRecorder) FacadeOption {
	return func(o *cache.Options) {
		o.Metrics = metrics
	}
}

func WithClock(clock Clock) FacadeOption {
	return func(o *cache.Options) {
		o.Clock = clock
	}
}

// WithKeyValidation adds rules on top of the non-empty key check.
func WithKeyValidation(cfg KeyValidationConfig) FacadeOption {
	return func(o *cache.Options) {
		o.KeyValidation = &cfg
	}
}

// WithCircuitBreaker guards store calls with a breaker that opens after
// failureThreshold consecutive connection errors and probes again after
// openDuration.
func WithCircuitBreaker(failureThreshold int, openDuration time.Duration) FacadeOption {
	return func(o *cache.Options) {
		o.CircuitBreaker = &config.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: failureThreshold,
			OpenDuration:     openDuration,
		}
	}
}

// WithoutCircuitBreaker disables the breaker Open would otherwise configure.
func WithoutCircuitBreaker() FacadeOption {
	return func(o *cache.Options) {
		o.CircuitBreaker = nil
	}
}

// WithOwnedStore makes Close close the store passed to New.
func WithOwnedStore() FacadeOption {
	return func(o *cache.Options) {
		o.OwnsStore = true
	}
}
