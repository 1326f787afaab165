package validate

import (
	"net/netip"
	"strings"
)

const shortUserAgentLen = 10

// botSignatures are user-agent fragments of common automation tools.
var botSignatures = []string{
	"bot", "spider", "crawler", "curl", "wget", "python-requests",
	"python-urllib", "scrapy", "httpclient", "go-http-client", "okhttp",
	"headless",
}

// RequestResult is the outcome of Request metadata validation.
type RequestResult struct {
	Valid     bool
	IP        string
	IPVersion int
	UserAgent string
	RiskScore int
	Reason    string
}

// Request classifies the client IP and scores the user-agent. Loopback and
// private ranges are expected outside production and score low; a missing,
// short, or bot-signatured user-agent adds risk but never rejects on its own.
func Request(ip, userAgent string) RequestResult {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return RequestResult{Reason: "unparseable_ip"}
	}

	risk := 0
	version := 4
	if addr.Is6() && !addr.Is4In6() {
		version = 6
	}
	if addr.IsLoopback() {
		risk += 5
	}
	if addr.IsPrivate() || addr.IsLinkLocalUnicast() {
		risk += 5
	}

	ua := strings.TrimSpace(userAgent)
	switch {
	case ua == "":
		risk += 20
	case len(ua) < shortUserAgentLen:
		risk += 15
	}
	lowered := strings.ToLower(ua)
	for _, sig := range botSignatures {
		if strings.Contains(lowered, sig) {
			risk += 25
			break
		}
	}

	return RequestResult{
		Valid:     true,
		IP:        addr.String(),
		IPVersion: version,
		UserAgent: ua,
		RiskScore: clampRisk(risk),
	}
}
