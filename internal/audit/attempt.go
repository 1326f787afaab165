package audit

import "time"

// Result classifies the outcome of one verification attempt.
type Result string

const (
	ResultSuccess     Result = "success"
	ResultInvalidCode Result = "invalid_code"
	ResultExpired     Result = "expired"
	ResultLocked      Result = "locked"
	ResultRateLimited Result = "rate_limited"
	ResultUsed        Result = "used"
)

// Attempt is one immutable verification attempt record. AttemptedCode is
// stored for forensics but must never leave the store through any external
// serialization; the engine's public audit events omit it.
type Attempt struct {
	ID            string            `json:"id"`
	Email         string            `json:"email"`
	Type          string            `json:"type"`
	AttemptedCode string            `json:"attempted_code"`
	Result        Result            `json:"result"`
	IPAddress     string            `json:"ip_address"`
	UserAgent     string            `json:"user_agent,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	ResponseTime  time.Duration     `json:"response_time_ms"`
	RiskScore     int               `json:"risk_score"`
	SessionID     string            `json:"session_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Risk score contributions. Additive, clamped to [0, 100], computed once at
// write time and never recomputed.
const (
	riskInvalidCode  = 30
	riskExpired      = 10
	riskUsed         = 20
	riskRateLimited  = 50
	riskFastResponse = 25 // per threshold crossed: <100ms, then <50ms again
	riskBadUserAgent = 20
	riskNightHours   = 10

	fastResponseThreshold   = 100 * time.Millisecond
	nearInstantThreshold    = 50 * time.Millisecond
	shortUserAgentThreshold = 10

	suspiciousRiskThreshold = 70
	alertRiskThreshold      = 80
)

// CalculateRiskScore derives the attempt's risk from its result, response
// time, user-agent shape, and hour of day. Deterministic: the same attempt
// always scores the same.
func CalculateRiskScore(a *Attempt) int {
	score := 0

	switch a.Result {
	case ResultInvalidCode:
		score += riskInvalidCode
	case ResultExpired:
		score += riskExpired
	case ResultUsed:
		score += riskUsed
	case ResultRateLimited:
		score += riskRateLimited
	}

	// Near-instant responses suggest automation; both thresholds stack.
	if a.ResponseTime < fastResponseThreshold {
		score += riskFastResponse
		if a.ResponseTime < nearInstantThreshold {
			score += riskFastResponse
		}
	}

	if len(a.UserAgent) < shortUserAgentThreshold {
		score += riskBadUserAgent
	}

	if hour := a.Timestamp.Hour(); hour >= 2 && hour <= 5 {
		score += riskNightHours
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// IsSuspicious reports whether the attempt warrants operator attention.
func (a *Attempt) IsSuspicious() bool {
	return a.RiskScore > suspiciousRiskThreshold || a.Result == ResultRateLimited
}

// alertWorthy gates the structured warning emitted on insert.
func (a *Attempt) alertWorthy() bool {
	return a.RiskScore > alertRiskThreshold || a.Result == ResultRateLimited
}
