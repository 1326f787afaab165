package validate

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	maxEmailLength = 320

	// emailRejectThreshold is the cumulative risk at which an email is
	// rejected outright instead of merely flagged.
	emailRejectThreshold = 50
)

var emailSyntax = validator.New(validator.WithRequiredStructEnabled())

// EmailResult is the outcome of Email validation.
type EmailResult struct {
	Valid     bool
	Sanitized string
	RiskScore int
	Reason    string
}

// Email trims and lowercases the address, checks length and syntax, and
// scores injection-shaped content. Suspicious substrings add risk; the email
// is rejected when cumulative risk reaches emailRejectThreshold.
func Email(raw string) EmailResult {
	sanitized := strings.ToLower(strings.TrimSpace(raw))

	if sanitized == "" {
		return EmailResult{Reason: "empty"}
	}
	if len(sanitized) > maxEmailLength {
		return EmailResult{Reason: "too_long"}
	}

	risk := 0
	for _, r := range sanitized {
		if r < 0x20 || r == 0x7f {
			risk += 30
			break
		}
	}
	if strings.ContainsAny(sanitized, "<>") {
		risk += 30
	}
	if strings.Contains(sanitized, "script") {
		risk += 30
	}
	if strings.Contains(sanitized, "javascript:") || strings.Contains(sanitized, "data:") {
		risk += 30
	}
	if containsURLEncoding(sanitized) {
		risk += 20
	}
	if strings.Contains(sanitized, "..") {
		risk += 20
	}

	if risk >= emailRejectThreshold {
		return EmailResult{RiskScore: clampRisk(risk), Reason: "suspicious_content"}
	}

	if err := emailSyntax.Var(sanitized, "required,email"); err != nil {
		return EmailResult{RiskScore: clampRisk(risk), Reason: "malformed"}
	}

	return EmailResult{
		Valid:     true,
		Sanitized: sanitized,
		RiskScore: clampRisk(risk),
	}
}

// disposableDomains is a static list of throwaway providers. Classification
// only; enforcement is caller policy.
var disposableDomains = map[string]bool{
	"mailinator.com":    true,
	"guerrillamail.com": true,
	"10minutemail.com":  true,
	"tempmail.com":      true,
	"temp-mail.org":     true,
	"throwaway.email":   true,
	"yopmail.com":       true,
	"getnada.com":       true,
	"trashmail.com":     true,
	"sharklasers.com":   true,
}

// freeProviderDomains distinguishes personal mailboxes from business domains.
var freeProviderDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"live.com":       true,
	"aol.com":        true,
	"icloud.com":     true,
	"proton.me":      true,
	"protonmail.com": true,
	"mail.com":       true,
	"gmx.com":        true,
	"zoho.com":       true,
}

// IsDisposableEmail reports whether the address uses a known throwaway domain.
func IsDisposableEmail(email string) bool {
	return disposableDomains[emailDomain(email)]
}

// IsBusinessEmail reports whether the address is neither disposable nor on a
// free consumer provider.
func IsBusinessEmail(email string) bool {
	domain := emailDomain(email)
	if domain == "" {
		return false
	}
	return !disposableDomains[domain] && !freeProviderDomains[domain]
}

func emailDomain(email string) string {
	sanitized := strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndexByte(sanitized, '@')
	if at < 0 || at == len(sanitized)-1 {
		return ""
	}
	return sanitized[at+1:]
}

func containsURLEncoding(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		if s[i] == '%' && isHexDigit(s[i+1]) && isHexDigit(s[i+2]) {
			return true
		}
	}
	return false
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func clampRisk(risk int) int {
	if risk < 0 {
		return 0
	}
	if risk > 100 {
		return 100
	}
	return risk
}
