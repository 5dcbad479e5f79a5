package types

import "time"

// HealthStatus represents the overall health state.
type HealthStatus int

const (
	// HealthStatusHealthy indicates the store answered a ping.
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusDegraded indicates the store answers but the circuit breaker is not closed.
	HealthStatusDegraded
	// HealthStatusUnhealthy indicates the store did not answer.
	HealthStatusUnhealthy
)

// String returns the string representation of health status.
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// HealthMetrics describes the facade and the store behind it.
//
//nolint:govet // Metrics struct - logical grouping prioritized for readability
type HealthMetrics struct {
	Timestamp           time.Time
	Store               string
	Codec               string
	Status              HealthStatus
	Available           bool
	PingLatency         time.Duration
	LastError           string
	CircuitBreakerState string
	Pool                StoreStats
}

// MetricsSnapshot contains a point-in-time view of cache metrics.
//
//nolint:govet // Metrics struct with many counters - grouping by category improves readability
type MetricsSnapshot struct {
	Timestamp time.Time

	Hits   int64
	Misses int64

	GetCount    int64
	SetCount    int64
	DeleteCount int64

	ErrorCount              int64
	ConnectionErrorCount    int64
	SerializationErrorCount int64

	BytesWritten int64

	// Latency metrics (milliseconds)
	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64

	CircuitBreakerChanges int64
}

// HitRatio calculates the read hit ratio.
func (s *MetricsSnapshot) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// PublisherHealthMetrics is the batch of gauges a Publisher emits on each
// background tick.
type PublisherHealthMetrics struct {
	TotalConns       int64
	IdleConns        int64
	PoolTimeouts     int64
	Entries          int64
	HitRatio         float64
	AverageLatencyMs float64
	ErrorCount       int64
	IsConnected      bool
}
