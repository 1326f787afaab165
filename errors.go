package verikit

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method is called before
	// the engine was fully constructed through Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrCodeSpaceExhausted is returned when unique code allocation fails after
	// the retry budget. Callers must treat it as a service outage, not a
	// retryable validation failure.
	ErrCodeSpaceExhausted = errors.New("unable to allocate unique code")
	// ErrStoreUnavailable is returned when the backing Redis store cannot be reached.
	ErrStoreUnavailable = errors.New("verification store unavailable")
	// ErrLimiterUnavailable is returned when the rate limiter backend cannot be reached.
	ErrLimiterUnavailable = errors.New("rate limiter unavailable")
	// ErrAuditUnavailable is returned when the attempt audit log cannot be written.
	ErrAuditUnavailable = errors.New("attempt audit log unavailable")
)
