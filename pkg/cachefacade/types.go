package cachefacade

import (
	"github.com/LavishGent/cachefacade/internal/cache"
	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/types"
)

type (
	// Facade is the untyped cache handle. Typed and HashOf give typed views.
	Facade = cache.Facade
	// Loader produces a value on a GetOrLoad miss.
	Loader = cache.Loader

	// Config is the full configuration read by Open and OpenFile.
	Config = config.Config

	// Store is a byte-level backend.
	Store = types.Store
	// HashStore is implemented by stores that support hash values.
	HashStore = types.HashStore
	// Codec encodes values.
	Codec = types.Codec
	// MetricsRecorder receives per-operation metrics.
	MetricsRecorder = types.MetricsRecorder
	// Publisher ships metrics to a backend such as DataDog.
	Publisher = types.Publisher
	Logger    = types.Logger
	Clock     = types.Clock

	// CacheOptions contains options for cache operations.
	CacheOptions = types.CacheOptions
	// KeyValidationConfig configures the rules applied to every key.
	KeyValidationConfig = types.KeyValidationConfig
	// SecretString is a string that redacts itself when printed.
	SecretString = types.SecretString
)

// NoExpiry persists an entry even when the facade has a default TTL.
const NoExpiry = types.NoExpiry

// DefaultConfig returns the default configuration: Redis on localhost,
// JSON values and no TTL.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration backed by the in-memory store.
func TestConfig() *Config {
	return config.ForTesting()
}
