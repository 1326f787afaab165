package verikit

import (
	"time"
)

// CodeType identifies the flow a verification code belongs to. At most one
// usable code exists per (email, type) pair; issuing a new code invalidates
// prior unused ones for the same pair.
type CodeType string

const (
	// TypeAdminRegistration gates privileged account registration.
	TypeAdminRegistration CodeType = "admin_registration"
	// TypePasswordReset covers password reset flows.
	TypePasswordReset CodeType = "password_reset"
	// TypeTwoFactor covers login second-factor flows.
	TypeTwoFactor CodeType = "2fa"
	// TypeEmailVerification covers email ownership verification.
	TypeEmailVerification CodeType = "email_verification"
)

// Valid reports whether t is one of the known code types.
func (t CodeType) Valid() bool {
	switch t {
	case TypeAdminRegistration, TypePasswordReset, TypeTwoFactor, TypeEmailVerification:
		return true
	}
	return false
}

// Stable user-facing messages. Deliberately generic: they never distinguish
// "no code exists" from "wrong code" so callers cannot leak account existence.
const (
	MsgInvalidRequest    = "Invalid request"
	MsgInvalidCodeFormat = "Invalid code format"
	MsgInvalidCode       = "Invalid code"
	MsgCodeUsed          = "Code already used"
	MsgCodeExpired       = "Code expired"
	MsgCodeLocked        = "Account temporarily locked"
	MsgRateLimited       = "Too many requests"
)

// GenerateRequest carries the caller-supplied context for code issuance.
// UserAgent, SessionID, and Metadata are optional.
type GenerateRequest struct {
	Email     string
	Type      CodeType
	IPAddress string
	UserAgent string
	SessionID string
	Metadata  map[string]string
}

// RateLimitInfo reports remaining issuance quota after a generation call.
// ResetAt is the end of the current fixed window, not a rolling reset;
// callers should not assume exact timing.
type RateLimitInfo struct {
	Remaining int
	ResetAt   time.Time
}

// GenerateResult is the outcome of GenerateCode or ResendCode. Policy
// denials (rate limits, invalid input) set Success=false with a stable Error
// message; they are not Go errors.
type GenerateResult struct {
	Success   bool
	Code      string
	ExpiresAt time.Time
	Error     string
	RateLimit *RateLimitInfo
}

// VerifyRequest carries the caller-supplied context for code verification.
type VerifyRequest struct {
	Email     string
	Code      string
	Type      CodeType
	IPAddress string
	UserAgent string
	SessionID string
}

// VerifyResult is the outcome of VerifyCode. Attempts is the stored attempt
// counter after this call; AttemptsRemaining is how many tries are left
// before lockout. LockedUntil is set only on the locked path.
type VerifyResult struct {
	Success           bool
	Error             string
	Attempts          int
	AttemptsRemaining int
	LockedUntil       *time.Time
}

// CleanupResult summarizes one cleanup pass over terminal code records.
type CleanupResult struct {
	DeletedCount  int
	ExecutionTime time.Duration
}

// FailureReason is one entry of the Statistics failure breakdown.
type FailureReason struct {
	Reason string
	Count  int
}

// Statistics aggregates engine activity over a trailing window for
// dashboards and operational review.
type Statistics struct {
	WindowHours       int
	TotalGenerated    int64
	TotalVerified     int64
	SuccessRate       float64
	AverageAttempts   float64
	TopFailureReasons []FailureReason
}
