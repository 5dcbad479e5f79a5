package cachefacade

import (
	"github.com/LavishGent/cachefacade/internal/types"
)

// Re-export health types from internal/types.
type (
	// HealthStatus represents the overall health state.
	HealthStatus = types.HealthStatus

	// HealthMetrics describes the facade and the store behind it.
	HealthMetrics = types.HealthMetrics

	// StoreStats is a point-in-time view of a store's pool and contents.
	StoreStats = types.StoreStats

	// MetricsSnapshot contains a point-in-time view of cache metrics.
	MetricsSnapshot = types.MetricsSnapshot
)

// Re-export health status constants.
const (
	HealthStatusHealthy   = types.HealthStatusHealthy
	HealthStatusDegraded  = types.HealthStatusDegraded
	HealthStatusUnhealthy = types.HealthStatusUnhealthy
)
