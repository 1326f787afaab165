package verikit

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one engine counter or histogram.
type MetricID uint16

const (
	// MetricGenerateSuccess counts issued codes.
	MetricGenerateSuccess MetricID = iota
	// MetricGenerateInvalid counts generation requests rejected by validation.
	MetricGenerateInvalid
	// MetricGenerateRateLimited counts generation requests denied by the issuance limiter.
	MetricGenerateRateLimited
	// MetricResend counts resend flows that reissued a code.
	MetricResend
	// MetricVerifySuccess counts successful verifications.
	MetricVerifySuccess
	// MetricVerifyInvalidCode counts mismatched or missing-code verifications.
	MetricVerifyInvalidCode
	// MetricVerifyExpired counts verifications against expired codes.
	MetricVerifyExpired
	// MetricVerifyLocked counts verifications refused during a lockout window.
	MetricVerifyLocked
	// MetricVerifyUsed counts verifications against already-used codes.
	MetricVerifyUsed
	// MetricVerifyRateLimited counts verifications denied by the verify limiter.
	MetricVerifyRateLimited
	// MetricLockouts counts codes that transitioned into the locked state.
	MetricLockouts
	// MetricCleanupRuns counts cleanup passes.
	MetricCleanupRuns
	// MetricCodesDeleted counts records removed by cleanup.
	MetricCodesDeleted
	// MetricVerifyLatency is the verify response-time histogram.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the in-process registry: fixed-slot atomic counters plus one
// latency histogram for the verify path. Safe for concurrent use.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of the registry for exporters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a registry from config. A disabled registry is inert and
// free to call into.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

// Enabled reports whether the registry records anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Add adds n to a counter.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records one verify response time.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricVerifyLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value reads a counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram for export.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
}

// Bucket bounds sit around the 500ms response floor: everything healthy
// lands in the 500-750ms bucket, so drift in either direction is visible.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 100:
		return 0
	case ms <= 250:
		return 1
	case ms <= 500:
		return 2
	case ms <= 600:
		return 3
	case ms <= 750:
		return 4
	case ms <= 1000:
		return 5
	case ms <= 2500:
		return 6
	default:
		return 7
	}
}
