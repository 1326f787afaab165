package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	verikit "github.com/verikit/verikit"
)

type fakeSource struct {
	snapshot verikit.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() verikit.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: verikit.MetricsSnapshot{
			Counters:   map[verikit.MetricID]uint64{},
			Histograms: map[verikit.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: verikit.MetricsSnapshot{
			Counters: map[verikit.MetricID]uint64{
				verikit.MetricVerifySuccess: 7,
				verikit.MetricLockouts:      2,
			},
			Histograms: map[verikit.MetricID][]uint64{
				verikit.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "verikit_verify_success_total 7") {
		t.Fatalf("expected verify success counter, got:\n%s", out)
	}
	if !strings.Contains(out, "verikit_lockouts_total 2") {
		t.Fatalf("expected lockouts counter, got:\n%s", out)
	}
	if !strings.Contains(out, "verikit_verify_latency_seconds_bucket{le=\"0.1\"} 1") {
		t.Fatalf("expected first histogram bucket, got:\n%s", out)
	}
	if !strings.Contains(out, "verikit_verify_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket, got:\n%s", out)
	}
	if !strings.Contains(out, "verikit_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: verikit.MetricsSnapshot{
			Counters:   map[verikit.MetricID]uint64{verikit.MetricVerifySuccess: 1},
			Histograms: map[verikit.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: verikit.MetricsSnapshot{
			Counters: map[verikit.MetricID]uint64{
				verikit.MetricGenerateSuccess:   1000,
				verikit.MetricVerifySuccess:     800,
				verikit.MetricVerifyInvalidCode: 40,
				verikit.MetricVerifyExpired:     10,
				verikit.MetricLockouts:          3,
				verikit.MetricCleanupRuns:       24,
			},
			Histograms: map[verikit.MetricID][]uint64{
				verikit.MetricVerifyLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
