package verikit

import (
	"context"
	"errors"
	"fmt"

	"github.com/verikit/verikit/internal/audit"
	"github.com/verikit/verikit/internal/codes"
	"github.com/verikit/verikit/internal/limiters"
	"github.com/verikit/verikit/internal/random"
	"github.com/verikit/verikit/internal/validate"
)

// GenerateCode issues a fresh code for (email, type): rate-limit check,
// invalidation of any live unused code for the pair, unique value
// allocation, then persistence with the configured validity window.
// Policy denials come back as unsuccessful results; only infrastructure
// trouble and code-space exhaustion return errors.
func (e *Engine) GenerateCode(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	return e.generate(ctx, req, EventCodeGenerate)
}

// ResendCode invalidates any live unused code for (email, type) and issues a
// replacement. Same result shape and rate-limit accounting as GenerateCode:
// resends are not free issuances.
func (e *Engine) ResendCode(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	result, err := e.generate(ctx, req, EventCodeResend)
	if err == nil && result.Success {
		e.metricInc(MetricResend)
	}
	return result, err
}

func (e *Engine) generate(ctx context.Context, req GenerateRequest, eventType string) (*GenerateResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email := validate.Email(req.Email)
	if !email.Valid {
		e.metricInc(MetricGenerateInvalid)
		e.emit(ctx, AuditEvent{
			EventType: eventType,
			Email:     req.Email,
			CodeType:  string(req.Type),
			IP:        req.IPAddress,
			Error:     "email_" + email.Reason,
		})
		return &GenerateResult{Error: MsgInvalidRequest}, nil
	}
	if !req.Type.Valid() {
		e.metricInc(MetricGenerateInvalid)
		e.emit(ctx, AuditEvent{
			EventType: eventType,
			Email:     email.Sanitized,
			IP:        req.IPAddress,
			Error:     "type_unknown",
		})
		return &GenerateResult{Error: MsgInvalidRequest}, nil
	}
	request := validate.Request(req.IPAddress, req.UserAgent)
	if !request.Valid {
		e.metricInc(MetricGenerateInvalid)
		e.emit(ctx, AuditEvent{
			EventType: eventType,
			Email:     email.Sanitized,
			CodeType:  string(req.Type),
			Error:     "request_" + request.Reason,
		})
		return &GenerateResult{Error: MsgInvalidRequest}, nil
	}

	now := e.now()
	codeType := string(req.Type)

	decision, err := e.genLimiter.Allow(ctx, email.Sanitized, request.IP, now)
	if err != nil {
		return nil, e.mapInfraErr(err)
	}
	if !decision.Allowed {
		e.metricInc(MetricGenerateRateLimited)
		e.emit(ctx, AuditEvent{
			EventType: eventType,
			Email:     email.Sanitized,
			CodeType:  codeType,
			IP:        request.IP,
			Result:    string(audit.ResultRateLimited),
			Error:     MsgRateLimited,
		})
		return &GenerateResult{
			Error:     MsgRateLimited,
			RateLimit: &RateLimitInfo{Remaining: 0, ResetAt: decision.ResetAt},
		}, nil
	}

	// Best-effort single-active-code policy: not atomic with the insert
	// below, so two concurrent issuances for the same pair can transiently
	// overlap. Availability wins over a cross-request lock here.
	if _, err := e.codes.InvalidateUnused(ctx, email.Sanitized, codeType, now); err != nil {
		return nil, e.mapInfraErr(err)
	}

	code, err := random.UniqueCode(ctx, func(candidate string) (bool, error) {
		reserved, err := e.codes.ReserveValue(ctx, codeType, candidate, e.config.Codes.TTL)
		if err != nil {
			return false, err
		}
		return !reserved, nil
	}, e.config.Codes.MaxGenerationAttempts)
	if err != nil {
		return nil, e.mapInfraErr(err)
	}

	record := &codes.Record{
		Email:     email.Sanitized,
		Code:      code,
		Type:      codeType,
		CreatedAt: now,
		ExpiresAt: now.Add(e.config.Codes.TTL),
		IPAddress: request.IP,
		UserAgent: request.UserAgent,
		SessionID: req.SessionID,
		Metadata:  req.Metadata,
	}
	if err := e.codes.Save(ctx, record); err != nil {
		return nil, e.mapInfraErr(err)
	}

	e.metricInc(MetricGenerateSuccess)
	e.emit(ctx, AuditEvent{
		EventType: eventType,
		Email:     email.Sanitized,
		CodeType:  codeType,
		IP:        request.IP,
		SessionID: req.SessionID,
		Success:   true,
	})

	return &GenerateResult{
		Success:   true,
		Code:      code,
		ExpiresAt: record.ExpiresAt,
		RateLimit: &RateLimitInfo{Remaining: decision.Remaining, ResetAt: decision.ResetAt},
	}, nil
}

func (e *Engine) mapInfraErr(err error) error {
	switch {
	case errors.Is(err, random.ErrExhausted):
		return fmt.Errorf("%w: %v", ErrCodeSpaceExhausted, err)
	case errors.Is(err, codes.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case errors.Is(err, limiters.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	case errors.Is(err, audit.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	default:
		return err
	}
}
