package metrics

import (
	"time"

	"github.com/LavishGent/cachefacade/internal/types"
)

// Metric names emitted by PublisherRecorder. The publisher adds its own
// namespace in front.
const (
	MetricGet          = "cache.get"
	MetricSet          = "cache.set"
	MetricDelete       = "cache.delete"
	MetricLatency      = "cache.latency"
	MetricValueSize    = "cache.value_size"
	MetricError        = "cache.error"
	MetricCircuitState = "circuit_breaker.state_change"
)

// PublisherRecorder turns facade events into publisher metrics.
type PublisherRecorder struct {
	publisher types.Publisher
}

func NewPublisherRecorder(publisher types.Publisher) *PublisherRecorder {
	if publisher == nil {
		publisher = NewNoOpPublisher()
	}
	return &PublisherRecorder{publisher: publisher}
}

func (r *PublisherRecorder) RecordHit(store string, key string, latency time.Duration) {
	r.publisher.Incr(MetricGet, StoreTag(store), StatusTag("hit"))
	r.publisher.Timing(MetricLatency, latency, StoreTag(store), OperationTag("get"))
}

func (r *PublisherRecorder) RecordMiss(store string, key string, latency time.Duration) {
	r.publisher.Incr(MetricGet, StoreTag(store), StatusTag("miss"))
	r.publisher.Timing(MetricLatency, latency, StoreTag(store), OperationTag("get"))
}

func (r *PublisherRecorder) RecordSet(store string, key string, size int, latency time.Duration) {
	r.publisher.Incr(MetricSet, StoreTag(store))
	r.publisher.Histogram(MetricValueSize, float64(size), StoreTag(store))
	r.publisher.Timing(MetricLatency, latency, StoreTag(store), OperationTag("set"))
}

func (r *PublisherRecorder) RecordDelete(store string, key string, latency time.Duration) {
	r.publisher.Incr(MetricDelete, StoreTag(store))
	r.publisher.Timing(MetricLatency, latency, StoreTag(store), OperationTag("delete"))
}

func (r *PublisherRecorder) RecordError(store string, operation string, err error) {
	r.publisher.Incr(MetricError, StoreTag(store), OperationTag(operation), ErrorKindTag(errorKind(err)))
}

func (r *PublisherRecorder) RecordCircuitBreakerStateChange(from, to string) {
	r.publisher.Incr(MetricCircuitState, CircuitStateTag(to))

	alert := "info"
	if to == "open" {
		alert = "warning"
	}
	r.publisher.Event("Cache circuit breaker "+to, "Circuit breaker moved from "+from+" to "+to, alert, CircuitStateTag(to))
}

func errorKind(err error) string {
	switch {
	case types.IsConnectionError(err):
		return "connection"
	case types.IsSerializationError(err):
		return "serialization"
	default:
		return "other"
	}
}

// Multi fans every event out to each recorder in order.
type Multi []types.MetricsRecorder

func (m Multi) RecordHit(store string, key string, latency time.Duration) {
	for _, r := range m {
		r.RecordHit(store, key, latency)
	}
}

func (m Multi) RecordMiss(store string, key string, latency time.Duration) {
	for _, r := range m {
		r.RecordMiss(store, key, latency)
	}
}

func (m Multi) RecordSet(store string, key string, size int, latency time.Duration) {
	for _, r := range m {
		r.RecordSet(store, key, size, latency)
	}
}

func (m Multi) RecordDelete(store string, key string, latency time.Duration) {
	for _, r := range m {
		r.RecordDelete(store, key, latency)
	}
}

func (m Multi) RecordError(store string, operation string, err error) {
	for _, r := range m {
		r.RecordError(store, operation, err)
	}
}

func (m Multi) RecordCircuitBreakerStateChange(from, to string) {
	for _, r := range m {
		r.RecordCircuitBreakerStateChange(from, to)
	}
}

var (
	_ types.MetricsRecorder = (*PublisherRecorder)(nil)
	_ types.MetricsRecorder = Multi(nil)
)
