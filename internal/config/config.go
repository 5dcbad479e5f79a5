// Package config provides configuration management for cachefacade.
package config

import (
	"time"

	"github.com/LavishGent/cachefacade/internal/types"
)

// SecretString is a string type that redacts its value when marshaled to JSON.
type SecretString = types.SecretString

// NewSecretString creates a new SecretString with the provided value.
func NewSecretString(value string) SecretString {
	return types.NewSecretString(value)
}

// Backend names accepted by StoreConfig.Backend.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

// Config contains all configuration for a cache facade.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	Store          StoreConfig          `json:"store"`
	Redis          RedisConfig          `json:"redis"`
	Memory         MemoryConfig         `json:"memory"`
	Bolt           BoltConfig           `json:"bolt"`
	NearCache      NearCacheConfig      `json:"nearCache"`
	Codec          CodecConfig          `json:"codec"`
	Defaults       DefaultsConfig       `json:"defaults"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	Metrics        MetricsConfig        `json:"metrics"`
	KeyValidation  KeyValidationConfig  `json:"keyValidation"`
	Log            LogConfig            `json:"log"`
}

// StoreConfig selects the backend and the key namespace.
type StoreConfig struct {
	Backend string `json:"backend"`
	// KeyPrefix is prepended to every key. Empty keeps keys byte-for-byte
	// identical to what callers pass.
	KeyPrefix string `json:"keyPrefix"`
}

// RedisConfig contains configuration for the Redis store.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RedisConfig struct {
	DialTimeout         time.Duration `json:"dialTimeout"`
	ReadTimeout         time.Duration `json:"readTimeout"`
	WriteTimeout        time.Duration `json:"writeTimeout"`
	PoolTimeout         time.Duration `json:"poolTimeout"`
	HealthCheckInterval time.Duration `json:"healthCheckInterval"`
	Password            SecretString  `json:"password"`
	Username            string        `json:"username"`
	Address             string        `json:"address"`
	DB                  int           `json:"db"`
	PoolSize            int           `json:"poolSize"`
	MinIdleConns        int           `json:"minIdleConns"`
	EnableTLS           bool          `json:"enableTLS"`
	TLSSkipVerify       bool          `json:"tlsSkipVerify"`
}

// MemoryConfig contains configuration for the in-process store.
type MemoryConfig struct {
	CleanupInterval time.Duration `json:"cleanupInterval"`
	// Capacity bounds the number of entries; 0 means unbounded.
	Capacity uint64 `json:"capacity"`
}

// BoltConfig contains configuration for the single-file store.
type BoltConfig struct {
	Path        string        `json:"path"`
	Bucket      string        `json:"bucket"`
	OpenTimeout time.Duration `json:"openTimeout"`
	// CleanupInterval is how often expired entries are purged from the file;
	// zero disables the sweeper and expired entries are only hidden on read.
	CleanupInterval time.Duration `json:"cleanupInterval"`
	FileMode        uint32        `json:"fileMode"`
}

// NearCacheConfig configures the optional in-process layer placed in front
// of the store.
type NearCacheConfig struct {
	LifeWindow   time.Duration `json:"lifeWindow"`
	CleanWindow  time.Duration `json:"cleanWindow"`
	MaxSizeMB    int           `json:"maxSizeMB"`
	Shards       int           `json:"shards"`
	MaxEntrySize int           `json:"maxEntrySize"`
	Enabled      bool          `json:"enabled"`
}

// CodecConfig selects the value encoding.
type CodecConfig struct {
	Name string `json:"name"`
}

// DefaultsConfig contains default values for cache operations.
type DefaultsConfig struct {
	// TTL applies to writes that do not pass one. Zero means entries persist
	// until deleted.
	TTL time.Duration `json:"ttl"`
}

// CircuitBreakerConfig contains configuration for the circuit breaker pattern.
type CircuitBreakerConfig struct {
	Enabled             bool          `json:"enabled"`
	FailureThreshold    int           `json:"failureThreshold"`
	SuccessThreshold    int           `json:"successThreshold"`
	OpenDuration        time.Duration `json:"openDuration"`
	HalfOpenMaxRequests int           `json:"halfOpenMaxRequests"`
}

// KeyValidationConfig contains configuration for cache key validation.
type KeyValidationConfig struct {
	ReservedPatterns  []string `json:"reservedPatterns"`
	MaxKeyLength      int      `json:"maxKeyLength"`
	RequireUTF8       bool     `json:"requireUTF8"`
	AllowControlChars bool     `json:"allowControlChars"`
	AllowWhitespace   bool     `json:"allowWhitespace"`
}

// ToTypesConfig converts this config to a types.KeyValidationConfig.
func (c KeyValidationConfig) ToTypesConfig() types.KeyValidationConfig {
	return types.KeyValidationConfig{
		ReservedPatterns:  c.ReservedPatterns,
		MaxKeyLength:      c.MaxKeyLength,
		RequireUTF8:       c.RequireUTF8,
		AllowControlChars: c.AllowControlChars,
		AllowWhitespace:   c.AllowWhitespace,
	}
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	PublishInterval time.Duration `json:"publishInterval"`
	DataDog         DataDogConfig `json:"datadog"`
	Enabled         bool          `json:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags"`
	AgentHost string   `json:"agentHost"`
	Prefix    string   `json:"prefix"`
	Port      int      `json:"port"`
	Enabled   bool     `json:"enabled"`
}
