package validate

import "strings"

// Per-field weights for the composite verification-request score.
const (
	weightEmail     = 0.3
	weightCode      = 0.3
	weightIP        = 0.2
	weightUserAgent = 0.2

	compositeRejectThreshold = 50
)

// codeTypes is the closed set of flows a code can belong to.
var codeTypes = map[string]bool{
	"admin_registration": true,
	"password_reset":     true,
	"2fa":                true,
	"email_verification": true,
}

// TypeResult is the outcome of CodeType validation.
type TypeResult struct {
	Valid     bool
	Sanitized string
	Reason    string
}

// CodeType matches the type case-insensitively against the known flows.
func CodeType(raw string) TypeResult {
	sanitized := strings.ToLower(strings.TrimSpace(raw))
	if !codeTypes[sanitized] {
		return TypeResult{Reason: "unknown_type"}
	}
	return TypeResult{Valid: true, Sanitized: sanitized}
}

// VerificationRequest is the sanitized, typed output of the composite
// validator. Fields are populated only when Valid is true.
type VerificationRequest struct {
	Valid     bool
	Email     string
	Code      string
	Type      string
	IP        string
	UserAgent string
	RiskScore int
	Reason    string
}

// VerifyInput carries the raw fields of a verification request.
type VerifyInput struct {
	Email     string
	Code      string
	Type      string
	IP        string
	UserAgent string
}

// VerificationRequestFrom runs every field validator and combines their risk
// scores with fixed weights into one pass/fail decision. Any individually
// invalid field fails the whole request; so does a weighted score at or above
// compositeRejectThreshold.
func VerificationRequestFrom(in VerifyInput) VerificationRequest {
	email := Email(in.Email)
	if !email.Valid {
		return VerificationRequest{Reason: "email_" + email.Reason, RiskScore: email.RiskScore}
	}

	typ := CodeType(in.Type)
	if !typ.Valid {
		return VerificationRequest{Reason: "type_" + typ.Reason}
	}

	if !FormatOnly(in.Code) {
		return VerificationRequest{Reason: "code_format"}
	}
	code := Code(in.Code)

	req := Request(in.IP, in.UserAgent)
	if !req.Valid {
		return VerificationRequest{Reason: "request_" + req.Reason}
	}

	// UA risk is folded into req.RiskScore; split weights apply to the same
	// underlying signals, so the IP and UA shares are both taken from it.
	weighted := weightEmail*float64(email.RiskScore) +
		weightCode*float64(code.RiskScore) +
		weightIP*float64(req.RiskScore) +
		weightUserAgent*float64(req.RiskScore)

	score := clampRisk(int(weighted))
	if score >= compositeRejectThreshold {
		return VerificationRequest{Reason: "aggregate_risk", RiskScore: score}
	}

	return VerificationRequest{
		Valid:     true,
		Email:     email.Sanitized,
		Code:      in.Code,
		Type:      typ.Sanitized,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		RiskScore: score,
	}
}
