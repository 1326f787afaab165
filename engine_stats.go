package verikit

import (
	"context"
	"time"
)

// Statistics aggregates activity over the trailing windowHours hours:
// issuance volume from the code store's time index and verification volume,
// success rate, mean attempts, and failure breakdown from the attempt log.
// Each source is bounded by its own retention, so long windows undercount:
// issuance counts past the 7-day index, verification figures past the 30-day
// attempt log.
func (e *Engine) Statistics(ctx context.Context, windowHours int) (*Statistics, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if windowHours <= 0 {
		windowHours = 24
	}

	now := e.now()
	window := time.Duration(windowHours) * time.Hour

	generated, err := e.codes.CountIssuedSince(ctx, now.Add(-window))
	if err != nil {
		return nil, e.mapInfraErr(err)
	}

	summary, err := e.attempts.Summarize(ctx, window, now)
	if err != nil {
		return nil, e.mapInfraErr(err)
	}

	stats := &Statistics{
		WindowHours:       windowHours,
		TotalGenerated:    generated,
		TotalVerified:     summary.TotalAttempts,
		SuccessRate:       summary.SuccessRate,
		AverageAttempts:   summary.AverageAttempts,
		TopFailureReasons: make([]FailureReason, 0, len(summary.FailureReasons)),
	}
	for _, rc := range summary.FailureReasons {
		stats.TopFailureReasons = append(stats.TopFailureReasons, FailureReason{
			Reason: rc.Reason,
			Count:  rc.Count,
		})
	}
	return stats, nil
}
