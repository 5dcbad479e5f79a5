package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:   BackendRedis,
			KeyPrefix: "",
		},
		Redis: RedisConfig{
			Address:             "localhost:6379",
			Password:            SecretString{},
			DB:                  0,
			PoolSize:            100,
			MinIdleConns:        10,
			DialTimeout:         5 * time.Second,
			ReadTimeout:         3 * time.Second,
			WriteTimeout:        3 * time.Second,
			PoolTimeout:         4 * time.Second,
			HealthCheckInterval: 5 * time.Second,
			EnableTLS:           false,
			TLSSkipVerify:       false,
		},
		Memory: MemoryConfig{
			Capacity:        0,
			CleanupInterval: 10 * time.Second,
		},
		Bolt: BoltConfig{
			Path:            "cachefacade.db",
			Bucket:          "cache",
			OpenTimeout:     time.Second,
			CleanupInterval: time.Minute,
			FileMode:        0o600,
		},
		NearCache: NearCacheConfig{
			Enabled:      false,
			LifeWindow:   30 * time.Second,
			CleanWindow:  10 * time.Second,
			MaxSizeMB:    64,
			Shards:       256,
			MaxEntrySize: 1024 * 1024, // 1MB
		},
		Codec: CodecConfig{
			Name: "json",
		},
		Defaults: DefaultsConfig{
			TTL: 0,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             true,
			FailureThreshold:    5,
			SuccessThreshold:    2,
			OpenDuration:        30 * time.Second,
			HalfOpenMaxRequests: 3,
		},
		Metrics: MetricsConfig{
			Enabled:         false,
			PublishInterval: 10 * time.Second,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "cachefacade",
				Tags:      []string{},
			},
		},
		KeyValidation: KeyValidationConfig{
			MaxKeyLength:      0,
			RequireUTF8:       false,
			AllowControlChars: true,
			AllowWhitespace:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests: an
// in-process store with no circuit breaker and no metrics.
func ForTesting() *Config {
	cfg := DefaultConfig()
	cfg.Store.Backend = BackendMemory
	cfg.Store.KeyPrefix = "test:"
	cfg.Redis.PoolSize = 10
	cfg.Redis.MinIdleConns = 1
	cfg.Redis.DialTimeout = time.Second
	cfg.Redis.ReadTimeout = time.Second
	cfg.Redis.WriteTimeout = time.Second
	cfg.Redis.PoolTimeout = time.Second
	cfg.Redis.HealthCheckInterval = 0
	cfg.Memory.CleanupInterval = time.Second
	cfg.Bolt.CleanupInterval = 0
	cfg.NearCache.MaxSizeMB = 16
	cfg.NearCache.Shards = 64
	cfg.CircuitBreaker = CircuitBreakerConfig{
		Enabled:             false,
		FailureThreshold:    3,
		SuccessThreshold:    1,
		OpenDuration:        time.Second,
		HalfOpenMaxRequests: 1,
	}
	cfg.Metrics.Enabled = false
	cfg.Metrics.PublishInterval = time.Second
	cfg.Log.Level = "debug"
	return cfg
}

// ForTestingWithRedis returns a test config backed by the Redis at addr.
func ForTestingWithRedis(addr string) *Config {
	cfg := ForTesting()
	cfg.Store.Backend = BackendRedis
	cfg.Redis.Address = addr
	return cfg
}

// ForTestingWithBolt returns a test config backed by a bolt file at path.
func ForTestingWithBolt(path string) *Config {
	cfg := ForTesting()
	cfg.Store.Backend = BackendBolt
	cfg.Bolt.Path = path
	return cfg
}
