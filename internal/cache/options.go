package cache

import (
	"time"

	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/types"
)

// Options assembles a Facade. Store is required; every other field has a
// usable zero value.
//
//nolint:govet // Options struct - grouped by concern rather than alignment
type Options struct {
	// Store is the backend. The facade closes it only when OwnsStore is set.
	Store     types.Store
	OwnsStore bool

	// Codec encodes values. Nil selects JSON.
	Codec types.Codec
	// KeyPrefix is prepended to every key before it reaches the store.
	KeyPrefix string
	// DefaultTTL applies to writes without an explicit TTL. Zero persists.
	DefaultTTL time.Duration

	// KeyValidation adds rules on top of the non-empty check.
	KeyValidation *types.KeyValidationConfig
	// CircuitBreaker guards store calls when set and enabled.
	CircuitBreaker *config.CircuitBreakerConfig

	Metrics types.MetricsRecorder
	// Logger may be a *slog.Logger or any types.Logger.
	Logger types.Logger
	Clock  types.Clock

	// OnClose runs before the store is closed, e.g. to stop a metrics loop.
	OnClose func() error
}

// FromConfig fills the facade options that come from cfg. Store, Codec and
// the ambient fields are left for the caller.
func FromConfig(cfg *config.Config) Options {
	kv := cfg.KeyValidation.ToTypesConfig()
	breaker := cfg.CircuitBreaker
	return Options{
		KeyPrefix:      cfg.Store.KeyPrefix,
		DefaultTTL:     cfg.Defaults.TTL,
		KeyValidation:  &kv,
		CircuitBreaker: &breaker,
	}
}
