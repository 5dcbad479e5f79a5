package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "CACHEFACADE_"

// Load loads configuration from a JSON file.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenv(name string) string {
	return os.Getenv(envPrefix + name)
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config) {
	if v := getenv("STORE_BACKEND"); v != "" {
		cfg.Store.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv(envPrefix + "KEY_PREFIX"); ok {
		cfg.Store.KeyPrefix = v
	}

	if v := getenv("REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := getenv("REDIS_USERNAME"); v != "" {
		cfg.Redis.Username = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = NewSecretString(v)
	}
	if v := getenv("REDIS_DB"); v != "" {
		cfg.Redis.DB = parseInt(v, cfg.Redis.DB)
	}
	if v := getenv("REDIS_POOL_SIZE"); v != "" {
		cfg.Redis.PoolSize = parseInt(v, cfg.Redis.PoolSize)
	}
	if v := getenv("REDIS_DIAL_TIMEOUT"); v != "" {
		cfg.Redis.DialTimeout = parseDuration(v, cfg.Redis.DialTimeout)
	}
	if v := getenv("REDIS_ENABLE_TLS"); v != "" {
		cfg.Redis.EnableTLS = parseBool(v)
	}
	if v := getenv("REDIS_TLS_SKIP_VERIFY"); v != "" {
		cfg.Redis.TLSSkipVerify = parseBool(v)
	}

	if v := getenv("MEMORY_CAPACITY"); v != "" {
		cfg.Memory.Capacity = uint64(parseInt(v, int(cfg.Memory.Capacity)))
	}

	if v := getenv("BOLT_PATH"); v != "" {
		cfg.Bolt.Path = v
	}
	if v := getenv("BOLT_BUCKET"); v != "" {
		cfg.Bolt.Bucket = v
	}

	if v := getenv("NEAR_CACHE_ENABLED"); v != "" {
		cfg.NearCache.Enabled = parseBool(v)
	}
	if v := getenv("NEAR_CACHE_LIFE_WINDOW"); v != "" {
		cfg.NearCache.LifeWindow = parseDuration(v, cfg.NearCache.LifeWindow)
	}
	if v := getenv("NEAR_CACHE_MAX_SIZE_MB"); v != "" {
		cfg.NearCache.MaxSizeMB = parseInt(v, cfg.NearCache.MaxSizeMB)
	}

	if v := getenv("CODEC"); v != "" {
		cfg.Codec.Name = strings.ToLower(strings.TrimSpace(v))
	}

	if v := getenv("DEFAULT_TTL"); v != "" {
		cfg.Defaults.TTL = parseDuration(v, cfg.Defaults.TTL)
	}

	if v := getenv("CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := getenv("CIRCUIT_BREAKER_FAILURE_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.FailureThreshold = parseInt(v, cfg.CircuitBreaker.FailureThreshold)
	}
	if v := getenv("CIRCUIT_BREAKER_OPEN_DURATION"); v != "" {
		cfg.CircuitBreaker.OpenDuration = parseDuration(v, cfg.CircuitBreaker.OpenDuration)
	}

	if v := getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}

	if v := getenv("DATADOG_ENABLED"); v != "" {
		if os.Getenv("DD_AGENT_HOST") == "" {
			cfg.Metrics.DataDog.Enabled = parseBool(v)
		}
	}
	if v := getenv("DATADOG_PREFIX"); v != "" {
		if os.Getenv("DD_SERVICE") == "" {
			cfg.Metrics.DataDog.Prefix = v
		}
	}
}

// Validate checks if the configuration is valid.
//
//nolint:gocyclo // One branch per section
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendRedis:
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address is required for the redis backend")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.poolSize must be positive")
		}
	case BackendMemory:
	case BackendBolt:
		if c.Bolt.Path == "" {
			return fmt.Errorf("bolt.path is required for the bolt backend")
		}
		if c.Bolt.Bucket == "" {
			return fmt.Errorf("bolt.bucket is required for the bolt backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of redis, memory, bolt, got %q", c.Store.Backend)
	}

	if c.NearCache.Enabled {
		if c.NearCache.MaxSizeMB <= 0 {
			return fmt.Errorf("nearCache.maxSizeMB must be positive")
		}
		if c.NearCache.Shards <= 0 || (c.NearCache.Shards&(c.NearCache.Shards-1)) != 0 {
			return fmt.Errorf("nearCache.shards must be a positive power of 2")
		}
		if c.NearCache.LifeWindow <= 0 {
			return fmt.Errorf("nearCache.lifeWindow must be positive")
		}
	}

	switch c.Codec.Name {
	case "", "json", "msgpack", "tagged":
	default:
		return fmt.Errorf("codec.name must be one of json, msgpack, tagged, got %q", c.Codec.Name)
	}

	if c.Defaults.TTL < 0 {
		return fmt.Errorf("defaults.ttl must not be negative")
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuitBreaker.failureThreshold must be positive")
		}
		if c.CircuitBreaker.OpenDuration <= 0 {
			return fmt.Errorf("circuitBreaker.openDuration must be positive")
		}
	}

	if c.Metrics.Enabled && c.Metrics.PublishInterval <= 0 {
		return fmt.Errorf("metrics.publishInterval must be positive")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}
