package types

import (
	"context"
	"time"
)

type StoreInfo interface {
	Name() string
	IsAvailable() bool
}

type StoreReader interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Contains(ctx context.Context, key string) (bool, error)
}

type StoreWriter interface {
	// Set writes value under key. A ttl of zero means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

type StoreCloser interface {
	Close() error
}

type StoreHealth interface {
	Ping(ctx context.Context) error
	Stats() StoreStats
}

// Store is the byte-level contract every backend implements. Implementations
// must be safe for concurrent use.
type Store interface {
	StoreInfo
	StoreReader
	StoreWriter
	StoreHealth
	StoreCloser
}

// TTLReader is implemented by stores that can report the remaining lifetime
// of an entry together with its value. A ttl of zero means no expiry.
type TTLReader interface {
	GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error)
}

// HashStore is implemented by stores that can hold field/value maps under a
// single key.
type HashStore interface {
	HSet(ctx context.Context, key, field string, value []byte) error
	// HGet returns ErrCacheMiss when the key or the field is absent.
	HGet(ctx context.Context, key, field string) ([]byte, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
}

// Codec converts structured values to and from their wire representation.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
	Name() string
}

type MetricsRecorder interface {
	RecordHit(layer string, key string, latency time.Duration)
	RecordMiss(layer string, key string, latency time.Duration)
	RecordSet(layer string, key string, size int, latency time.Duration)
	RecordDelete(layer string, key string, latency time.Duration)
	RecordError(layer string, operation string, err error)
	RecordCircuitBreakerStateChange(from, to string)
}

type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text string, alertType string, tags ...string)
	PublishHealthMetrics(metrics *PublisherHealthMetrics)
	Close() error
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Clock abstracts time so expiry can be driven by tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
