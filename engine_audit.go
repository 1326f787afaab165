package verikit

import (
	"context"
	"strings"
	"time"

	"github.com/verikit/verikit/internal/audit"
)

// AttemptRecord is one verification attempt as exposed to callers. The
// attempted code value stays inside the internal store and is never part of
// this type.
type AttemptRecord struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	Type         string            `json:"type"`
	Result       string            `json:"result"`
	IPAddress    string            `json:"ip_address"`
	UserAgent    string            `json:"user_agent,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	ResponseTime time.Duration     `json:"response_time_ms"`
	RiskScore    int               `json:"risk_score"`
	Suspicious   bool              `json:"suspicious"`
	SessionID    string            `json:"session_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SuspiciousActivityGroup is one (ip, email) cluster flagged by the
// suspicious-activity rollup.
type SuspiciousActivityGroup struct {
	IPAddress    string    `json:"ip_address"`
	Email        string    `json:"email"`
	AttemptCount int       `json:"attempt_count"`
	AvgRiskScore float64   `json:"avg_risk_score"`
	LastSeen     time.Time `json:"last_seen"`
}

// RecentAttempts returns the attempt history for (email, type) since the
// cutoff, oldest first. History is bounded by the 30-day attempt retention.
func (e *Engine) RecentAttempts(ctx context.Context, email string, codeType CodeType, since time.Time) ([]AttemptRecord, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	attempts, err := e.attempts.ListSince(ctx, normalizeEmail(email), string(codeType), since)
	if err != nil {
		return nil, e.mapInfraErr(err)
	}
	return exportAttempts(attempts), nil
}

// AttemptsByIP returns the attempt history originating from one IP since
// the cutoff, oldest first.
func (e *Engine) AttemptsByIP(ctx context.Context, ip string, since time.Time) ([]AttemptRecord, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	attempts, err := e.attempts.ListByIPSince(ctx, strings.TrimSpace(ip), since)
	if err != nil {
		return nil, e.mapInfraErr(err)
	}
	return exportAttempts(attempts), nil
}

// FailureRate reports the share of failed verification attempts for
// (email, type) over the trailing windowHours hours. No attempts means zero.
func (e *Engine) FailureRate(ctx context.Context, email string, codeType CodeType, windowHours int) (float64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if windowHours <= 0 {
		windowHours = 24
	}

	rate, err := e.attempts.FailureRate(ctx, normalizeEmail(email), string(codeType),
		time.Duration(windowHours)*time.Hour, e.now())
	if err != nil {
		return 0, e.mapInfraErr(err)
	}
	return rate, nil
}

// SuspiciousActivity groups attempts over the trailing windowHours hours by
// (ip, email), keeps clusters with three or more attempts, and orders them
// by average risk score then attempt count, both descending.
func (e *Engine) SuspiciousActivity(ctx context.Context, windowHours int) ([]SuspiciousActivityGroup, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if windowHours <= 0 {
		windowHours = 24
	}

	groups, err := e.attempts.SuspiciousActivity(ctx, time.Duration(windowHours)*time.Hour, e.now())
	if err != nil {
		return nil, e.mapInfraErr(err)
	}

	out := make([]SuspiciousActivityGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, SuspiciousActivityGroup{
			IPAddress:    g.IPAddress,
			Email:        g.Email,
			AttemptCount: g.AttemptCount,
			AvgRiskScore: g.AvgRiskScore,
			LastSeen:     g.LastSeen,
		})
	}
	return out, nil
}

// AttemptHistogram buckets attempts over the trailing windowHours hours by
// hour of day and result, for spotting off-hours probing.
func (e *Engine) AttemptHistogram(ctx context.Context, windowHours int) (map[int]map[string]int, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if windowHours <= 0 {
		windowHours = 24
	}

	histogram, err := e.attempts.HourlyHistogram(ctx, time.Duration(windowHours)*time.Hour, e.now())
	if err != nil {
		return nil, e.mapInfraErr(err)
	}

	out := make(map[int]map[string]int, len(histogram))
	for hour, results := range histogram {
		out[hour] = make(map[string]int, len(results))
		for result, count := range results {
			out[hour][string(result)] = count
		}
	}
	return out, nil
}

func exportAttempts(attempts []audit.Attempt) []AttemptRecord {
	records := make([]AttemptRecord, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		records = append(records, AttemptRecord{
			ID:           a.ID,
			Email:        a.Email,
			Type:         a.Type,
			Result:       string(a.Result),
			IPAddress:    a.IPAddress,
			UserAgent:    a.UserAgent,
			Timestamp:    a.Timestamp,
			ResponseTime: a.ResponseTime,
			RiskScore:    a.RiskScore,
			Suspicious:   a.IsSuspicious(),
			SessionID:    a.SessionID,
			Metadata:     a.Metadata,
		})
	}
	return records
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
