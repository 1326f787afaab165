package internaldefs

import (
	verikit "github.com/verikit/verikit"
)

// CounterDef binds one engine counter to its exported metric name.
type CounterDef struct {
	ID   verikit.MetricID
	Name string
	Help string
}

// HistogramDef binds one engine histogram to its exported metric name.
type HistogramDef struct {
	ID   verikit.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter, in a stable render order.
var CounterDefs = []CounterDef{
	{ID: verikit.MetricGenerateSuccess, Name: "verikit_generate_success_total", Help: "Issued verification codes."},
	{ID: verikit.MetricGenerateInvalid, Name: "verikit_generate_invalid_total", Help: "Generation requests rejected by validation."},
	{ID: verikit.MetricGenerateRateLimited, Name: "verikit_generate_rate_limited_total", Help: "Generation requests denied by the issuance limiter."},
	{ID: verikit.MetricResend, Name: "verikit_resend_total", Help: "Resend flows that reissued a code."},
	{ID: verikit.MetricVerifySuccess, Name: "verikit_verify_success_total", Help: "Successful verifications."},
	{ID: verikit.MetricVerifyInvalidCode, Name: "verikit_verify_invalid_code_total", Help: "Verifications that presented a wrong or unknown code."},
	{ID: verikit.MetricVerifyExpired, Name: "verikit_verify_expired_total", Help: "Verifications against expired codes."},
	{ID: verikit.MetricVerifyLocked, Name: "verikit_verify_locked_total", Help: "Verifications refused during a lockout window."},
	{ID: verikit.MetricVerifyUsed, Name: "verikit_verify_used_total", Help: "Verifications against already-used codes."},
	{ID: verikit.MetricVerifyRateLimited, Name: "verikit_verify_rate_limited_total", Help: "Verifications denied by the verify limiter."},
	{ID: verikit.MetricLockouts, Name: "verikit_lockouts_total", Help: "Codes that transitioned into the locked state."},
	{ID: verikit.MetricCleanupRuns, Name: "verikit_cleanup_runs_total", Help: "Cleanup passes."},
	{ID: verikit.MetricCodesDeleted, Name: "verikit_codes_deleted_total", Help: "Code records removed by cleanup."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: verikit.MetricVerifyLatency, Name: "verikit_verify_latency_seconds", Help: "Verify response-time histogram."},
}

// HistogramBounds are the verify latency bucket upper bounds in seconds,
// matching the engine's fixed buckets around the 500ms response floor.
var HistogramBounds = []string{
	"0.1",
	"0.25",
	"0.5",
	"0.6",
	"0.75",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix are instrument-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_1",
	"0_25",
	"0_5",
	"0_6",
	"0_75",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets pads or truncates a snapshot bucket slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
