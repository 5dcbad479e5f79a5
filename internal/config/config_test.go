package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("store defaults", func(t *testing.T) {
		if cfg.Store.Backend != BackendRedis {
			t.Errorf("Store.Backend = %s, want redis", cfg.Store.Backend)
		}
		if cfg.Store.KeyPrefix != "" {
			t.Errorf("Store.KeyPrefix = %q, want empty (literal keys)", cfg.Store.KeyPrefix)
		}
	})

	t.Run("redis defaults", func(t *testing.T) {
		if cfg.Redis.Address != "localhost:6379" {
			t.Errorf("Redis.Address = %s, want localhost:6379", cfg.Redis.Address)
		}
		if cfg.Redis.PoolSize != 100 {
			t.Errorf("Redis.PoolSize = %d, want 100", cfg.Redis.PoolSize)
		}
		if !cfg.Redis.Password.IsEmpty() {
			t.Error("Redis.Password should be empty by default")
		}
	})

	t.Run("entries persist by default", func(t *testing.T) {
		if cfg.Defaults.TTL != 0 {
			t.Errorf("Defaults.TTL = %v, want 0", cfg.Defaults.TTL)
		}
	})

	t.Run("codec defaults to json", func(t *testing.T) {
		if cfg.Codec.Name != "json" {
			t.Errorf("Codec.Name = %s, want json", cfg.Codec.Name)
		}
	})

	t.Run("near cache disabled", func(t *testing.T) {
		if cfg.NearCache.Enabled {
			t.Error("NearCache.Enabled = true, want false")
		}
	})

	t.Run("circuit breaker defaults", func(t *testing.T) {
		if !cfg.CircuitBreaker.Enabled {
			t.Error("CircuitBreaker.Enabled = false, want true")
		}
		if cfg.CircuitBreaker.FailureThreshold != 5 {
			t.Errorf("CircuitBreaker.FailureThreshold = %d, want 5", cfg.CircuitBreaker.FailureThreshold)
		}
		if cfg.CircuitBreaker.OpenDuration != 30*time.Second {
			t.Errorf("CircuitBreaker.OpenDuration = %v, want 30s", cfg.CircuitBreaker.OpenDuration)
		}
	})

	t.Run("key validation only rejects empty keys", func(t *testing.T) {
		kv := cfg.KeyValidation.ToTypesConfig()
		if kv.MaxKeyLength != 0 || kv.RequireUTF8 || !kv.AllowControlChars || !kv.AllowWhitespace {
			t.Errorf("KeyValidation = %+v, want permissive defaults", kv)
		}
	})

	t.Run("defaults validate", func(t *testing.T) {
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}

func TestForTesting(t *testing.T) {
	cfg := ForTesting()

	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %s, want memory", cfg.Store.Backend)
	}
	if cfg.CircuitBreaker.Enabled {
		t.Error("CircuitBreaker.Enabled = true, want false")
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	redisCfg := ForTestingWithRedis("127.0.0.1:6390")
	if redisCfg.Store.Backend != BackendRedis || redisCfg.Redis.Address != "127.0.0.1:6390" {
		t.Errorf("ForTestingWithRedis() store = %s at %s", redisCfg.Store.Backend, redisCfg.Redis.Address)
	}

	boltCfg := ForTestingWithBolt("/tmp/cache.db")
	if boltCfg.Store.Backend != BackendBolt || boltCfg.Bolt.Path != "/tmp/cache.db" {
		t.Errorf("ForTestingWithBolt() store = %s at %s", boltCfg.Store.Backend, boltCfg.Bolt.Path)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Redis.PoolSize != 100 {
			t.Errorf("Redis.PoolSize = %d, want 100", cfg.Redis.PoolSize)
		}
	})

	t.Run("non-existent file returns defaults", func(t *testing.T) {
		cfg, err := Load("/non/existent/path/config.json")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Store.Backend != BackendRedis {
			t.Errorf("Store.Backend = %s, want redis", cfg.Store.Backend)
		}
	})

	t.Run("loads valid JSON file", func(t *testing.T) {
		path := writeConfig(t, `{
			"store": {"backend": "bolt", "keyPrefix": "app:"},
			"bolt": {"path": "/var/lib/cache.db", "bucket": "sessions"},
			"codec": {"name": "msgpack"},
			"defaults": {"ttl": 60000000000},
			"redis": {"password": "hunter2"}
		}`)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Store.Backend != BackendBolt {
			t.Errorf("Store.Backend = %s, want bolt", cfg.Store.Backend)
		}
		if cfg.Store.KeyPrefix != "app:" {
			t.Errorf("Store.KeyPrefix = %s, want app:", cfg.Store.KeyPrefix)
		}
		if cfg.Bolt.Bucket != "sessions" {
			t.Errorf("Bolt.Bucket = %s, want sessions", cfg.Bolt.Bucket)
		}
		if cfg.Codec.Name != "msgpack" {
			t.Errorf("Codec.Name = %s, want msgpack", cfg.Codec.Name)
		}
		if cfg.Defaults.TTL != time.Minute {
			t.Errorf("Defaults.TTL = %v, want 1m", cfg.Defaults.TTL)
		}
		if cfg.Redis.Password.Value() != "hunter2" {
			t.Error("Redis.Password not loaded from file")
		}
		if cfg.Redis.PoolSize != 100 {
			t.Errorf("Redis.PoolSize = %d, want default 100", cfg.Redis.PoolSize)
		}
	})

	t.Run("returns error for invalid JSON", func(t *testing.T) {
		if _, err := Load(writeConfig(t, "not valid json")); err == nil {
			t.Error("Load() error = nil, want error")
		}
	})

	t.Run("returns error for invalid config values", func(t *testing.T) {
		path := writeConfig(t, `{"store": {"backend": "memcached"}}`)
		if _, err := Load(path); err == nil {
			t.Error("Load() error = nil, want validation error")
		}
	})
}

func TestLoadWithEnv(t *testing.T) {
	t.Run("applies environment overrides", func(t *testing.T) {
		t.Setenv("CACHEFACADE_STORE_BACKEND", "memory")
		t.Setenv("CACHEFACADE_DEFAULT_TTL", "90s")

		cfg, err := LoadWithEnv("")
		if err != nil {
			t.Fatalf("LoadWithEnv() error = %v", err)
		}

		if cfg.Store.Backend != BackendMemory {
			t.Errorf("Store.Backend = %s, want memory", cfg.Store.Backend)
		}
		if cfg.Defaults.TTL != 90*time.Second {
			t.Errorf("Defaults.TTL = %v, want 90s", cfg.Defaults.TTL)
		}
	})

	t.Run("env overrides JSON file values", func(t *testing.T) {
		path := writeConfig(t, `{"redis": {"address": "redis.json:6379"}}`)
		t.Setenv("CACHEFACADE_REDIS_ADDRESS", "redis.override:6380")

		cfg, err := LoadWithEnv(path)
		if err != nil {
			t.Fatalf("LoadWithEnv() error = %v", err)
		}
		if cfg.Redis.Address != "redis.override:6380" {
			t.Errorf("Redis.Address = %s, want redis.override:6380", cfg.Redis.Address)
		}
	})

	t.Run("invalid env override fails validation", func(t *testing.T) {
		t.Setenv("CACHEFACADE_CODEC", "xml")

		if _, err := LoadWithEnv(""); err == nil {
			t.Error("LoadWithEnv() error = nil, want validation error")
		}
	})
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Run("redis overrides", func(t *testing.T) {
		t.Setenv("CACHEFACADE_REDIS_ADDRESS", "redis.custom:6380")
		t.Setenv("CACHEFACADE_REDIS_USERNAME", "app")
		t.Setenv("CACHEFACADE_REDIS_PASSWORD", "secret123")
		t.Setenv("CACHEFACADE_REDIS_DB", "5")
		t.Setenv("CACHEFACADE_REDIS_POOL_SIZE", "50")
		t.Setenv("CACHEFACADE_REDIS_DIAL_TIMEOUT", "2s")
		t.Setenv("CACHEFACADE_REDIS_ENABLE_TLS", "true")
		t.Setenv("CACHEFACADE_REDIS_TLS_SKIP_VERIFY", "true")

		cfg := DefaultConfig()
		applyEnvOverrides(cfg)

		if cfg.Redis.Address != "redis.custom:6380" {
			t.Errorf("Redis.Address = %s", cfg.Redis.Address)
		}
		if cfg.Redis.Username != "app" {
			t.Errorf("Redis.Username = %s", cfg.Redis.Username)
		}
		if cfg.Redis.Password.Value() != "secret123" {
			t.Errorf("Redis.Password.Value() = %s, want secret123", cfg.Redis.Password.Value())
		}
		if cfg.Redis.DB != 5 {
			t.Errorf("Redis.DB = %d, want 5", cfg.Redis.DB)
		}
		if cfg.Redis.PoolSize != 50 {
			t.Errorf("Redis.PoolSize = %d, want 50", cfg.Redis.PoolSize)
		}
		if cfg.Redis.DialTimeout != 2*time.Second {
			t.Errorf("Redis.DialTimeout = %v, want 2s", cfg.Redis.DialTimeout)
		}
		if !cfg.Redis.EnableTLS || !cfg.Redis.TLSSkipVerify {
			t.Error("TLS overrides not applied")
		}
	})

	t.Run("store overrides", func(t *testing.T) {
		t.Setenv("CACHEFACADE_STORE_BACKEND", " Bolt ")
		t.Setenv("CACHEFACADE_KEY_PREFIX", "svc:")
		t.Setenv("CACHEFACADE_BOLT_PATH", "/data/cache.db")
		t.Setenv("CACHEFACADE_BOLT_BUCKET", "kv")
		t.Setenv("CACHEFACADE_MEMORY_CAPACITY", "1000")
		t.Setenv("CACHEFACADE_CODEC", "Tagged")

		cfg := DefaultConfig()
		applyEnvOverrides(cfg)

		if cfg.Store.Backend != BackendBolt {
			t.Errorf("Store.Backend = %q, want bolt", cfg.Store.Backend)
		}
		if cfg.Store.KeyPrefix != "svc:" {
			t.Errorf("Store.KeyPrefix = %q, want svc:", cfg.Store.KeyPrefix)
		}
		if cfg.Bolt.Path != "/data/cache.db" || cfg.Bolt.Bucket != "kv" {
			t.Errorf("Bolt = %+v", cfg.Bolt)
		}
		if cfg.Memory.Capacity != 1000 {
			t.Errorf("Memory.Capacity = %d, want 1000", cfg.Memory.Capacity)
		}
		if cfg.Codec.Name != "tagged" {
			t.Errorf("Codec.Name = %s, want tagged", cfg.Codec.Name)
		}
	})

	t.Run("empty key prefix override clears the prefix", func(t *testing.T) {
		t.Setenv("CACHEFACADE_KEY_PREFIX", "")

		cfg := ForTesting()
		applyEnvOverrides(cfg)

		if cfg.Store.KeyPrefix != "" {
			t.Errorf("Store.KeyPrefix = %q, want empty", cfg.Store.KeyPrefix)
		}
	})

	t.Run("near cache and circuit breaker overrides", func(t *testing.T) {
		t.Setenv("CACHEFACADE_NEAR_CACHE_ENABLED", "yes")
		t.Setenv("CACHEFACADE_NEAR_CACHE_LIFE_WINDOW", "5s")
		t.Setenv("CACHEFACADE_NEAR_CACHE_MAX_SIZE_MB", "8")
		t.Setenv("CACHEFACADE_CIRCUIT_BREAKER_ENABLED", "false")
		t.Setenv("CACHEFACADE_CIRCUIT_BREAKER_FAILURE_THRESHOLD", "9")
		t.Setenv("CACHEFACADE_CIRCUIT_BREAKER_OPEN_DURATION", "1m")

		cfg := DefaultConfig()
		applyEnvOverrides(cfg)

		if !cfg.NearCache.Enabled || cfg.NearCache.LifeWindow != 5*time.Second || cfg.NearCache.MaxSizeMB != 8 {
			t.Errorf("NearCache = %+v", cfg.NearCache)
		}
		if cfg.CircuitBreaker.Enabled {
			t.Error("CircuitBreaker.Enabled = true, want false")
		}
		if cfg.CircuitBreaker.FailureThreshold != 9 || cfg.CircuitBreaker.OpenDuration != time.Minute {
			t.Errorf("CircuitBreaker = %+v", cfg.CircuitBreaker)
		}
	})

	t.Run("datadog standard variables", func(t *testing.T) {
		t.Setenv("DD_AGENT_HOST", "dd-agent")
		t.Setenv("DD_DOGSTATSD_PORT", "8126")
		t.Setenv("DD_SERVICE", "login-api")
		t.Setenv("DD_ENV", "prod")
		t.Setenv("DD_VERSION", "1.2.3")
		t.Setenv("CACHEFACADE_DATADOG_ENABLED", "false")
		t.Setenv("CACHEFACADE_DATADOG_PREFIX", "ignored")

		cfg := DefaultConfig()
		applyEnvOverrides(cfg)

		dd := cfg.Metrics.DataDog
		if !dd.Enabled {
			t.Error("DataDog.Enabled = false, want true when DD_AGENT_HOST is set")
		}
		if dd.AgentHost != "dd-agent" || dd.Port != 8126 || dd.Prefix != "login-api" {
			t.Errorf("DataDog = %+v", dd)
		}
		if strings.Join(dd.Tags, ",") != "env:prod,version:1.2.3" {
			t.Errorf("DataDog.Tags = %v", dd.Tags)
		}
	})

	t.Run("log overrides", func(t *testing.T) {
		t.Setenv("CACHEFACADE_LOG_LEVEL", "warn")
		t.Setenv("CACHEFACADE_LOG_FORMAT", "json")
		t.Setenv("CACHEFACADE_METRICS_ENABLED", "1")

		cfg := DefaultConfig()
		applyEnvOverrides(cfg)

		if cfg.Log.Level != "warn" || cfg.Log.Format != "json" {
			t.Errorf("Log = %+v", cfg.Log)
		}
		if !cfg.Metrics.Enabled {
			t.Error("Metrics.Enabled = false, want true")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "memcached" }},
		{"redis address required", func(c *Config) { c.Redis.Address = "" }},
		{"redis pool size positive", func(c *Config) { c.Redis.PoolSize = 0 }},
		{"bolt path required", func(c *Config) { c.Store.Backend = BackendBolt; c.Bolt.Path = "" }},
		{"bolt bucket required", func(c *Config) { c.Store.Backend = BackendBolt; c.Bolt.Bucket = "" }},
		{"near cache shards power of 2", func(c *Config) { c.NearCache.Enabled = true; c.NearCache.Shards = 100 }},
		{"near cache size positive", func(c *Config) { c.NearCache.Enabled = true; c.NearCache.MaxSizeMB = 0 }},
		{"near cache life window positive", func(c *Config) { c.NearCache.Enabled = true; c.NearCache.LifeWindow = 0 }},
		{"unknown codec", func(c *Config) { c.Codec.Name = "gob" }},
		{"negative default ttl", func(c *Config) { c.Defaults.TTL = -time.Second }},
		{"failure threshold positive", func(c *Config) { c.CircuitBreaker.FailureThreshold = 0 }},
		{"open duration positive", func(c *Config) { c.CircuitBreaker.OpenDuration = 0 }},
		{"publish interval positive", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.PublishInterval = 0 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}

	t.Run("disabled components skip validation", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store.Backend = BackendMemory
		cfg.Redis.Address = ""
		cfg.Bolt.Path = ""
		cfg.NearCache.Enabled = false
		cfg.NearCache.Shards = 100
		cfg.CircuitBreaker.Enabled = false
		cfg.CircuitBreaker.FailureThreshold = 0

		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})
}

func TestLogConfigNewLogger(t *testing.T) {
	t.Run("json handler honours level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
		if err != nil {
			t.Fatalf("NewLogger() error = %v", err)
		}

		logger.Info("dropped")
		logger.Error("Error message", "key", "login:")

		out := buf.String()
		if strings.Contains(out, "dropped") {
			t.Errorf("info line should be filtered at warn level: %s", out)
		}
		var line map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &line); err != nil {
			t.Fatalf("output is not JSON: %v (%s)", err, out)
		}
		if line["msg"] != "Error message" || line["key"] != "login:" {
			t.Errorf("log line = %v", line)
		}
	})

	t.Run("text handler by default", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := LogConfig{}.NewLogger(&buf)
		if err != nil {
			t.Fatalf("NewLogger() error = %v", err)
		}
		logger.Info("hello")
		if !strings.Contains(buf.String(), "msg=hello") {
			t.Errorf("text output = %q", buf.String())
		}
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		if _, err := (LogConfig{Format: "xml"}).NewLogger(&bytes.Buffer{}); err == nil {
			t.Error("NewLogger() error = nil, want error")
		}
	})
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"off", false},
		{"invalid", false},
		{"", false},
		{"  true  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := parseBool(tt.input); result != tt.expected {
				t.Errorf("parseBool(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		input      string
		defaultVal int
		expected   int
	}{
		{"42", 0, 42},
		{"0", 10, 0},
		{"-5", 0, -5},
		{"invalid", 99, 99},
		{"  100  ", 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := parseInt(tt.input, tt.defaultVal); result != tt.expected {
				t.Errorf("parseInt(%q, %d) = %d, want %d", tt.input, tt.defaultVal, result, tt.expected)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	defaultDur := 5 * time.Second

	tests := []struct {
		input    string
		expected time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"100ms", 100 * time.Millisecond},
		{"60", 60 * time.Second},
		{"invalid", defaultDur},
		{"", defaultDur},
		{"  30s  ", 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := parseDuration(tt.input, defaultDur); result != tt.expected {
				t.Errorf("parseDuration(%q, %v) = %v, want %v", tt.input, defaultDur, result, tt.expected)
			}
		})
	}
}

func TestConfigMarshalRedactsPassword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Redis.Password = NewSecretString("super-secret-password")

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal config failed: %v", err)
	}
	if strings.Contains(string(data), "super-secret-password") {
		t.Error("JSON contains actual password, should be redacted")
	}
	if !strings.Contains(string(data), "[REDACTED]") {
		t.Error("JSON should contain [REDACTED] for password")
	}

	output := fmt.Sprintf("password: %s", cfg.Redis.Password)
	if strings.Contains(output, "super-secret-password") {
		t.Errorf("fmt.Sprintf leaked password: %s", output)
	}
}
