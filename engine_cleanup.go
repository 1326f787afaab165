package verikit

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// CleanupExpiredCodes removes terminal code records: unused codes past their
// validity window and used codes past the retention period. Attempt history
// has its own retention and is never touched here. Safe to run from a cron
// or a ticker loop; concurrent runs are harmless.
func (e *Engine) CleanupExpiredCodes(ctx context.Context) (*CleanupResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	deleted, err := e.codes.Cleanup(ctx, e.now())
	elapsed := time.Since(start)

	if err != nil {
		return nil, e.mapInfraErr(err)
	}

	e.metricInc(MetricCleanupRuns)
	if e.metrics != nil {
		e.metrics.Add(MetricCodesDeleted, uint64(deleted))
	}

	e.logger.Info("verification code cleanup",
		zap.Int("deleted", deleted),
		zap.Duration("execution_time", elapsed),
	)
	e.emit(ctx, AuditEvent{
		EventType: EventCleanup,
		Success:   true,
		Metadata: map[string]string{
			"deleted": strconv.Itoa(deleted),
		},
	})

	return &CleanupResult{
		DeletedCount:  deleted,
		ExecutionTime: elapsed,
	}, nil
}

// RunCleanupLoop runs CleanupExpiredCodes on the given interval until the
// context is cancelled. Errors are logged and the loop keeps going; a Redis
// blip should not kill the janitor.
func (e *Engine) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.CleanupExpiredCodes(ctx); err != nil {
				e.logger.Error("scheduled cleanup failed", zap.Error(err))
			}
		}
	}
}
