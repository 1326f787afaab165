package verikit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/verikit/verikit/internal/audit"
	"github.com/verikit/verikit/internal/codes"
	"github.com/verikit/verikit/internal/limiters"
)

// Engine is the verification service. All methods are safe for concurrent
// use; state lives in Redis, never in the process.
type Engine struct {
	config     Config
	codes      *codes.Store
	attempts   *audit.Store
	genLimiter *limiters.GenerationLimiter
	verLimiter *limiters.VerifyLimiter
	audit      *auditDispatcher
	metrics    *Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current metric values for exporters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) ready() bool {
	return e != nil && e.codes != nil && e.attempts != nil && e.genLimiter != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	e.audit.Emit(ctx, event)
}
