package sessiongate

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint8

const (
	// MetricSessionCreated counts successful session creations.
	MetricSessionCreated MetricID = iota
	// MetricValidationValid counts validation runs ending in Valid.
	MetricValidationValid
	// MetricValidationInvalid counts validation runs ending in Invalid.
	MetricValidationInvalid
	// MetricSessionRefreshed counts minted replacement token pairs.
	MetricSessionRefreshed
	// MetricSessionInvalidated counts sessions transitioned to invalid.
	MetricSessionInvalidated
	// MetricSessionRecovered counts layer-2 recoveries after a cache miss.
	MetricSessionRecovered
	// MetricSuspiciousActivity counts emitted suspicious-activity events.
	MetricSuspiciousActivity
	// MetricPersistenceDegraded counts swallowed best-effort write failures.
	MetricPersistenceDegraded
	// MetricHeartbeatPruned counts sessions pruned by their heartbeat timer.
	MetricHeartbeatPruned

	metricCount
)

// Metrics is a fixed-size registry of atomic counters. All methods are safe
// for concurrent use and nil-tolerant so disabled metrics cost nothing.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// NewMetrics returns an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies all counters into a map.
func (m *Metrics) Snapshot() map[MetricID]uint64 {
	snap := make(map[MetricID]uint64, metricCount)
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap[id] = m.counters[id].Load()
	}
	return snap
}
