package verikit

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsCountersAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatency: true})

	m.Inc(MetricVerifySuccess)
	m.Inc(MetricVerifySuccess)
	m.Add(MetricCodesDeleted, 5)

	if got := m.Value(MetricVerifySuccess); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}

	snapshot := m.Snapshot()
	if snapshot.Counters[MetricVerifySuccess] != 2 {
		t.Fatalf("expected 2 in snapshot, got %d", snapshot.Counters[MetricVerifySuccess])
	}
	if snapshot.Counters[MetricCodesDeleted] != 5 {
		t.Fatalf("expected 5 in snapshot, got %d", snapshot.Counters[MetricCodesDeleted])
	}
}

func TestMetricsDisabledIsInert(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricVerifySuccess)
	m.Observe(MetricVerifyLatency, time.Second)

	if got := m.Value(MetricVerifySuccess); got != 0 {
		t.Fatalf("expected disabled registry to stay zero, got %d", got)
	}
	snapshot := m.Snapshot()
	if len(snapshot.Counters) != 0 || len(snapshot.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatency: true})

	cases := []struct {
		d      time.Duration
		bucket int
	}{
		{50 * time.Millisecond, 0},
		{200 * time.Millisecond, 1},
		{500 * time.Millisecond, 2},
		{550 * time.Millisecond, 3},
		{700 * time.Millisecond, 4},
		{900 * time.Millisecond, 5},
		{2 * time.Second, 6},
		{10 * time.Second, 7},
	}
	for _, tc := range cases {
		m.Observe(MetricVerifyLatency, tc.d)
	}

	buckets := m.Snapshot().Histograms[MetricVerifyLatency]
	for _, tc := range cases {
		if buckets[tc.bucket] == 0 {
			t.Fatalf("expected observation for %v in bucket %d, got %v", tc.d, tc.bucket, buckets)
		}
	}

	var total uint64
	for _, v := range buckets {
		total += v
	}
	if total != uint64(len(cases)) {
		t.Fatalf("expected %d observations total, got %d", len(cases), total)
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatency: true})

	m.Observe(MetricVerifySuccess, time.Second)

	if buckets := m.Snapshot().Histograms[MetricVerifyLatency]; len(buckets) != histBucketCount {
		t.Fatalf("expected empty latency histogram slots, got %v", buckets)
	}
	if m.Value(MetricVerifySuccess) != 0 {
		t.Fatal("Observe must not touch counters")
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 16
	const perWorker = 1000

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				m.Inc(MetricGenerateSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricGenerateSuccess); got != workers*perWorker {
		t.Fatalf("expected %d, got %d", workers*perWorker, got)
	}
}
