package verikit

import (
	"errors"
	"time"
)

// Config holds all engine tuning. Configure once through the Builder and
// treat as immutable afterwards; defaults implement the documented policy
// (10-minute codes, 3 attempts, 15-minute lockout, 5/hour per email,
// 10/hour per IP, 500ms verify floor).
type Config struct {
	Codes     CodesConfig
	RateLimit RateLimitConfig
	Verify    VerifyConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Keys      KeysConfig
}

// CodesConfig controls issuance.
type CodesConfig struct {
	// TTL is the code validity window.
	TTL time.Duration
	// MaxGenerationAttempts bounds unique-code allocation retries before the
	// engine reports a service outage.
	MaxGenerationAttempts int
}

// RateLimitConfig controls both limiters: issuance (the documented
// 5-per-email / 10-per-IP hourly caps) and the secondary verification
// limiter that bounds total guessing per identity across code reissues.
type RateLimitConfig struct {
	Window            time.Duration
	MaxPerEmail       int
	MaxPerIP          int
	VerifyThrottle    bool
	VerifyWindow      time.Duration
	VerifyMaxPerEmail int
	VerifyMaxPerIP    int
}

// VerifyConfig controls the verification path.
type VerifyConfig struct {
	// MinResponseTime is the timing-side-channel floor: every VerifyCode
	// call, including infrastructure failures, takes at least this long.
	MinResponseTime time.Duration
}

// AuditConfig controls asynchronous delivery of public audit events.
// The durable attempt log is always written; this only governs the sink
// fan-out.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics registry.
type MetricsConfig struct {
	Enabled       bool
	EnableLatency bool
}

// KeysConfig sets the Redis key prefixes per subsystem.
type KeysConfig struct {
	CodePrefix    string
	AttemptPrefix string
	LimiterPrefix string
}

// DefaultConfig returns the documented production policy. Callers adjust it
// and pass the result to Builder.WithConfig.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Codes: CodesConfig{
			TTL:                   10 * time.Minute,
			MaxGenerationAttempts: 100,
		},
		RateLimit: RateLimitConfig{
			Window:            time.Hour,
			MaxPerEmail:       5,
			MaxPerIP:          10,
			VerifyThrottle:    true,
			VerifyWindow:      time.Hour,
			VerifyMaxPerEmail: 30,
			VerifyMaxPerIP:    60,
		},
		Verify: VerifyConfig{
			MinResponseTime: 500 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			EnableLatency: true,
		},
		Keys: KeysConfig{
			CodePrefix:    "vc",
			AttemptPrefix: "va",
			LimiterPrefix: "vrl",
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Codes.TTL <= 0 {
		return errors.New("config: code TTL must be positive")
	}
	if cfg.Codes.MaxGenerationAttempts <= 0 {
		return errors.New("config: max generation attempts must be positive")
	}
	if cfg.RateLimit.Window <= 0 {
		return errors.New("config: rate limit window must be positive")
	}
	if cfg.RateLimit.MaxPerEmail <= 0 || cfg.RateLimit.MaxPerIP <= 0 {
		return errors.New("config: rate limit caps must be positive")
	}
	if cfg.RateLimit.MaxPerIP < cfg.RateLimit.MaxPerEmail {
		return errors.New("config: per-IP cap below per-email cap defeats the email axis")
	}
	if cfg.RateLimit.VerifyThrottle {
		if cfg.RateLimit.VerifyWindow <= 0 {
			return errors.New("config: verify limiter window must be positive")
		}
		if cfg.RateLimit.VerifyMaxPerEmail <= 0 || cfg.RateLimit.VerifyMaxPerIP <= 0 {
			return errors.New("config: verify limiter caps must be positive")
		}
	}
	if cfg.Verify.MinResponseTime < 0 {
		return errors.New("config: minimum response time cannot be negative")
	}
	return nil
}
