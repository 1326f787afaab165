// Package codes persists issued verification codes and their lifecycle
// state: Active, Used, Expired, and temporarily Locked. Records live in
// Redis under a retention TTL longer than the code's own validity so that
// attempt counters, lock state, and cleanup accounting survive logical
// expiry.
package codes

import "time"

const (
	// MaxAttempts is the failed-attempt cap before a code locks.
	MaxAttempts = 3
	// LockDuration is how long a code stays unverifiable after lockout.
	LockDuration = 15 * time.Minute
	// UsedRetention is how long used records are kept before cleanup.
	UsedRetention = 24 * time.Hour
)

// Record is one issued verification code. Email is stored normalized
// (lowercase); Code is always six ASCII digits.
type Record struct {
	Email         string            `json:"email"`
	Code          string            `json:"code"`
	Type          string            `json:"type"`
	CreatedAt     time.Time         `json:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	Used          bool              `json:"used"`
	UsedAt        *time.Time        `json:"used_at,omitempty"`
	Attempts      int               `json:"attempts"`
	LastAttemptAt *time.Time        `json:"last_attempt_at,omitempty"`
	LockedUntil   *time.Time        `json:"locked_until,omitempty"`
	IPAddress     string            `json:"ip_address"`
	UserAgent     string            `json:"user_agent,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// IsExpired reports whether the code's validity window has passed.
func (r *Record) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsLocked reports whether the code is inside an active lockout window.
func (r *Record) IsLocked(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// CanAttempt reports whether a verification attempt may proceed. Before any
// lockout the attempt counter gates at MaxAttempts; once a lockout window has
// passed the code becomes attemptable again with its counter intact, so the
// next failure re-locks it immediately.
func (r *Record) CanAttempt(now time.Time) bool {
	if r.Used || r.IsExpired(now) || r.IsLocked(now) {
		return false
	}
	return r.Attempts < MaxAttempts || r.LockedUntil != nil
}

// IncrementAttempts records a failed attempt and locks the code once the
// counter reaches MaxAttempts.
func (r *Record) IncrementAttempts(now time.Time) {
	r.Attempts++
	r.LastAttemptAt = &now
	if r.Attempts >= MaxAttempts {
		until := now.Add(LockDuration)
		r.LockedUntil = &until
	}
}

// AttemptsRemaining is how many failed attempts are left before lockout.
func (r *Record) AttemptsRemaining() int {
	remaining := MaxAttempts - r.Attempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MarkUsed transitions the record to its terminal success state. Only ever
// called after a successful constant-time equality check, or when an unused
// code is deliberately invalidated before reissue.
func (r *Record) MarkUsed(now time.Time) {
	r.Used = true
	r.UsedAt = &now
}
