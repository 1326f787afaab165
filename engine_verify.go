package verikit

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verikit/verikit/internal/audit"
	"github.com/verikit/verikit/internal/codes"
	"github.com/verikit/verikit/internal/random"
	"github.com/verikit/verikit/internal/validate"
)

// verifyOutcome bundles everything one verification branch produced so the
// response-floor and attempt-logging tail runs identically for all of them.
type verifyOutcome struct {
	result  *VerifyResult
	attempt *audit.Attempt
	metric  MetricID
	locked  bool
}

// VerifyCode checks the presented code for (email, type). Every call holds
// the configured minimum response time before returning, on every branch
// including infrastructure failures, and every call is logged to the attempt
// history. Policy outcomes (wrong code, expired, locked, throttled) are
// unsuccessful results, not Go errors.
func (e *Engine) VerifyCode(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	// Wall clock, not the injected clock: the floor defends against real
	// elapsed-time measurement by the caller.
	start := time.Now()
	now := e.now()

	// The throttle runs before any validation so a flood of malformed
	// requests is bounded the same as a flood of wrong guesses. Keys come
	// from the raw request, canonicalized the way validation would.
	if e.verLimiter != nil {
		allowed, err := e.verLimiter.Allow(ctx, normalizeEmail(req.Email), limiterIP(req.IPAddress))
		if err != nil {
			e.holdFloor(ctx, start)
			return nil, e.mapInfraErr(err)
		}
		if !allowed {
			return e.finishVerify(ctx, start, req, verifyOutcome{
				result:  &VerifyResult{Error: MsgRateLimited},
				attempt: rawAttempt(req, audit.ResultRateLimited),
				metric:  MetricVerifyRateLimited,
			}), nil
		}
	}

	vreq := validate.VerificationRequestFrom(validate.VerifyInput{
		Email:     req.Email,
		Code:      req.Code,
		Type:      string(req.Type),
		IP:        req.IPAddress,
		UserAgent: req.UserAgent,
	})
	if !vreq.Valid {
		msg := MsgInvalidRequest
		if vreq.Reason == "code_format" {
			msg = MsgInvalidCodeFormat
		}
		// Malformed requests never load a record, so the stored attempt
		// counter stays untouched; they still cost an audit entry.
		return e.finishVerify(ctx, start, req, verifyOutcome{
			result:  &VerifyResult{Error: msg},
			attempt: rawAttempt(req, audit.ResultInvalidCode),
			metric:  MetricVerifyInvalidCode,
		}), nil
	}

	record, err := e.codes.Latest(ctx, vreq.Email, vreq.Type)
	if err != nil {
		if errors.Is(err, codes.ErrNotFound) {
			// Indistinguishable from a wrong guess on purpose.
			return e.finishVerify(ctx, start, req, verifyOutcome{
				result:  &VerifyResult{Error: MsgInvalidCode},
				attempt: e.newAttempt(vreq, req.SessionID, audit.ResultInvalidCode),
				metric:  MetricVerifyInvalidCode,
			}), nil
		}
		e.holdFloor(ctx, start)
		return nil, e.mapInfraErr(err)
	}

	if record.Used {
		return e.finishVerify(ctx, start, req, verifyOutcome{
			result: &VerifyResult{
				Error:    MsgCodeUsed,
				Attempts: record.Attempts,
			},
			attempt: e.newAttempt(vreq, req.SessionID, audit.ResultUsed),
			metric:  MetricVerifyUsed,
		}), nil
	}

	if record.IsExpired(now) {
		return e.finishVerify(ctx, start, req, verifyOutcome{
			result: &VerifyResult{
				Error:    MsgCodeExpired,
				Attempts: record.Attempts,
			},
			attempt: e.newAttempt(vreq, req.SessionID, audit.ResultExpired),
			metric:  MetricVerifyExpired,
		}), nil
	}

	if record.IsLocked(now) {
		return e.finishVerify(ctx, start, req, verifyOutcome{
			result: &VerifyResult{
				Error:       MsgCodeLocked,
				Attempts:    record.Attempts,
				LockedUntil: record.LockedUntil,
			},
			attempt: e.newAttempt(vreq, req.SessionID, audit.ResultLocked),
			metric:  MetricVerifyLocked,
		}), nil
	}

	if random.FixedEqual(record.Code, vreq.Code) {
		record.MarkUsed(now)
		if err := e.codes.Update(ctx, record); err != nil {
			e.holdFloor(ctx, start)
			return nil, e.mapInfraErr(err)
		}
		if err := e.codes.ReleaseValue(ctx, vreq.Type, record.Code); err != nil {
			e.logger.Warn("value reservation release failed",
				zap.String("type", vreq.Type),
				zap.Error(err),
			)
		}
		return e.finishVerify(ctx, start, req, verifyOutcome{
			result: &VerifyResult{
				Success:           true,
				Attempts:          record.Attempts,
				AttemptsRemaining: record.AttemptsRemaining(),
			},
			attempt: e.newAttempt(vreq, req.SessionID, audit.ResultSuccess),
			metric:  MetricVerifySuccess,
		}), nil
	}

	record.IncrementAttempts(now)
	if err := e.codes.Update(ctx, record); err != nil {
		e.holdFloor(ctx, start)
		return nil, e.mapInfraErr(err)
	}

	outcome := verifyOutcome{
		attempt: e.newAttempt(vreq, req.SessionID, audit.ResultInvalidCode),
		metric:  MetricVerifyInvalidCode,
	}
	if record.IsLocked(now) {
		outcome.locked = true
		outcome.result = &VerifyResult{
			Error:       MsgCodeLocked,
			Attempts:    record.Attempts,
			LockedUntil: record.LockedUntil,
		}
	} else {
		outcome.result = &VerifyResult{
			Error:             MsgInvalidCode,
			Attempts:          record.Attempts,
			AttemptsRemaining: record.AttemptsRemaining(),
		}
	}
	return e.finishVerify(ctx, start, req, outcome), nil
}

func (e *Engine) newAttempt(vreq validate.VerificationRequest, sessionID string, result audit.Result) *audit.Attempt {
	return &audit.Attempt{
		Email:         vreq.Email,
		Type:          vreq.Type,
		AttemptedCode: vreq.Code,
		Result:        result,
		IPAddress:     vreq.IP,
		UserAgent:     vreq.UserAgent,
		SessionID:     sessionID,
	}
}

// rawAttempt builds an attempt record straight from the request, for branches
// that run before validation has produced sanitized fields.
func rawAttempt(req VerifyRequest, result audit.Result) *audit.Attempt {
	return &audit.Attempt{
		Email:         normalizeEmail(req.Email),
		Type:          strings.ToLower(strings.TrimSpace(string(req.Type))),
		AttemptedCode: req.Code,
		Result:        result,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		SessionID:     req.SessionID,
	}
}

// limiterIP canonicalizes a client IP so throttle counters land on the same
// key whether or not the request later passes validation. Unparseable input
// is keyed as trimmed text rather than skipped.
func limiterIP(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		return addr.String()
	}
	return trimmed
}

// finishVerify holds the response floor, logs the attempt with its true
// total response time, bumps metrics, and emits the public audit event.
func (e *Engine) finishVerify(ctx context.Context, start time.Time, req VerifyRequest, out verifyOutcome) *VerifyResult {
	e.holdFloor(ctx, start)
	elapsed := time.Since(start)

	e.metricInc(out.metric)
	if out.locked {
		e.metricInc(MetricLockouts)
	}
	if e.metrics != nil {
		e.metrics.Observe(MetricVerifyLatency, elapsed)
	}

	riskScore := 0
	if out.attempt != nil {
		out.attempt.Timestamp = e.now()
		out.attempt.ResponseTime = elapsed
		if err := e.attempts.Insert(ctx, out.attempt); err != nil {
			// The caller already has their answer; losing one history entry
			// must not turn a successful verification into an error.
			e.logger.Error("attempt log insert failed",
				zap.String("email", out.attempt.Email),
				zap.String("type", out.attempt.Type),
				zap.Error(err),
			)
		}
		riskScore = out.attempt.RiskScore
	}

	result := ""
	if out.attempt != nil {
		result = string(out.attempt.Result)
	}
	e.emit(ctx, AuditEvent{
		EventType: EventCodeVerify,
		Email:     emailForEvent(out.attempt, req),
		CodeType:  typeForEvent(out.attempt, req),
		Result:    result,
		IP:        req.IPAddress,
		SessionID: req.SessionID,
		RiskScore: riskScore,
		Success:   out.result.Success,
		Error:     out.result.Error,
	})

	return out.result
}

// holdFloor blocks until the minimum response time has elapsed since start.
// Context cancellation releases the wait; a caller abandoning the request
// gets no timing signal from an early return.
func (e *Engine) holdFloor(ctx context.Context, start time.Time) {
	remaining := e.config.Verify.MinResponseTime - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func emailForEvent(attempt *audit.Attempt, req VerifyRequest) string {
	if attempt != nil {
		return attempt.Email
	}
	return req.Email
}

func typeForEvent(attempt *audit.Attempt, req VerifyRequest) string {
	if attempt != nil {
		return attempt.Type
	}
	return string(req.Type)
}
