// Package metrics provides cache operation metrics collection and publishing.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/cachefacade/internal/types"
)

const (
	defaultLatencyBufferSize = 10000
)

// Tracker keeps in-process counters and a bounded latency window.
type Tracker struct {
	hits   atomic.Int64
	misses atomic.Int64

	getCount    atomic.Int64
	setCount    atomic.Int64
	deleteCount atomic.Int64

	errorCount              atomic.Int64
	connectionErrorCount    atomic.Int64
	serializationErrorCount atomic.Int64

	latencyMu     sync.RWMutex
	latencyBuffer []time.Duration
	latencyIndex  int
	latencyCount  int

	totalBytesWritten atomic.Int64

	cbStateChanges atomic.Int64
}

func NewTracker() *Tracker {
	return &Tracker{
		latencyBuffer: make([]time.Duration, defaultLatencyBufferSize),
	}
}

func (t *Tracker) RecordHit(store string, key string, latency time.Duration) {
	t.hits.Add(1)
	t.getCount.Add(1)
	t.recordLatency(latency)
}

func (t *Tracker) RecordMiss(store string, key string, latency time.Duration) {
	t.misses.Add(1)
	t.getCount.Add(1)
	t.recordLatency(latency)
}

func (t *Tracker) RecordSet(store string, key string, size int, latency time.Duration) {
	t.setCount.Add(1)
	t.totalBytesWritten.Add(int64(size))
	t.recordLatency(latency)
}

func (t *Tracker) RecordDelete(store string, key string, latency time.Duration) {
	t.deleteCount.Add(1)
	t.recordLatency(latency)
}

// RecordError counts err and classifies it as a connection or serialization
// failure when it is one.
func (t *Tracker) RecordError(store string, operation string, err error) {
	t.errorCount.Add(1)
	switch {
	case types.IsConnectionError(err):
		t.connectionErrorCount.Add(1)
	case types.IsSerializationError(err):
		t.serializationErrorCount.Add(1)
	}
}

func (t *Tracker) RecordCircuitBreakerStateChange(from, to string) {
	t.cbStateChanges.Add(1)
}

// recordLatency writes into a circular buffer without allocating.
func (t *Tracker) recordLatency(latency time.Duration) {
	t.latencyMu.Lock()
	t.latencyBuffer[t.latencyIndex] = latency
	t.latencyIndex = (t.latencyIndex + 1) % len(t.latencyBuffer)
	if t.latencyCount < len(t.latencyBuffer) {
		t.latencyCount++
	}
	t.latencyMu.Unlock()
}

func (t *Tracker) Snapshot() types.MetricsSnapshot {
	t.latencyMu.RLock()
	count := t.latencyCount
	latencies := make([]time.Duration, count)
	if count > 0 {
		if count < len(t.latencyBuffer) {
			copy(latencies, t.latencyBuffer[:count])
		} else {
			// Full buffer: the oldest sample sits at latencyIndex.
			head := len(t.latencyBuffer) - t.latencyIndex
			copy(latencies[:head], t.latencyBuffer[t.latencyIndex:])
			copy(latencies[head:], t.latencyBuffer[:t.latencyIndex])
		}
	}
	t.latencyMu.RUnlock()

	snapshot := types.MetricsSnapshot{
		Timestamp:               time.Now(),
		Hits:                    t.hits.Load(),
		Misses:                  t.misses.Load(),
		GetCount:                t.getCount.Load(),
		SetCount:                t.setCount.Load(),
		DeleteCount:             t.deleteCount.Load(),
		ErrorCount:              t.errorCount.Load(),
		ConnectionErrorCount:    t.connectionErrorCount.Load(),
		SerializationErrorCount: t.serializationErrorCount.Load(),
		BytesWritten:            t.totalBytesWritten.Load(),
		CircuitBreakerChanges:   t.cbStateChanges.Load(),
	}

	if len(latencies) > 0 {
		slices.Sort(latencies)
		snapshot.AvgLatencyMs = durationMs(avgDuration(latencies))
		snapshot.P50LatencyMs = durationMs(percentile(latencies, 50))
		snapshot.P95LatencyMs = durationMs(percentile(latencies, 95))
		snapshot.P99LatencyMs = durationMs(percentile(latencies, 99))
	}

	return snapshot
}

func (t *Tracker) Reset() {
	t.hits.Store(0)
	t.misses.Store(0)
	t.getCount.Store(0)
	t.setCount.Store(0)
	t.deleteCount.Store(0)
	t.errorCount.Store(0)
	t.connectionErrorCount.Store(0)
	t.serializationErrorCount.Store(0)
	t.totalBytesWritten.Store(0)
	t.cbStateChanges.Store(0)

	t.latencyMu.Lock()
	t.latencyIndex = 0
	t.latencyCount = 0
	t.latencyMu.Unlock()
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

var _ types.MetricsRecorder = (*Tracker)(nil)
