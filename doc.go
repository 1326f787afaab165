// Package verikit provides a one-time verification code engine: issuance,
// storage, rate limiting, verification, and risk-scored audit logging of
// short-lived numeric codes for email verification, password reset, 2FA,
// and privileged-registration gating.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The engine is stateless between calls except through Redis;
// no in-process locks are held across requests.
//
// # Architecture boundaries
//
// verikit is the public surface. It exposes [Engine], [Builder], [Config],
// value types (GenerateResult, VerifyResult, Statistics, MetricsSnapshot),
// sentinel errors, and audit sinks. All internal coordination (secure code
// generation, input validation, code lifecycle, attempt auditing, rate
// limiting) lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Deliver codes to users. Email/SMS transport belongs to the caller;
//     GenerateCode hands back the code and expiry and nothing else.
//   - Issue sessions or tokens after a successful verification.
//   - Know about HTTP. Callers map results to transport responses.
//   - Expose Redis clients, internal stores, or encoding details.
//
// # Security contract
//
// Codes come from crypto/rand only; an unavailable entropy source is a fatal
// error, never a fallback. VerifyCode compares the presented code with a
// constant-time comparison, never queries the store by code value, and pads
// every result path to a configurable minimum response time so outcome cannot
// be inferred from latency. User-facing failures are deliberately generic and
// do not distinguish "no such code" from "wrong code".
package verikit
