package validate

const (
	codeLength = 6

	// codeRejectThreshold applies only where a human picks the code; the
	// cryptographic generator is never filtered through this check.
	codeRejectThreshold = 30
)

// knownWeakCodes are the codes attackers try first.
var knownWeakCodes = map[string]bool{
	"123456": true,
	"654321": true,
	"000000": true,
	"111111": true,
	"123123": true,
	"112233": true,
	"121212": true,
	"696969": true,
}

// CodeResult is the outcome of Code validation.
type CodeResult struct {
	Valid     bool
	Sanitized string
	RiskScore int
	Reason    string
}

// Code requires exactly six ASCII digits and scores guessable shapes:
// sequential runs, repeated digits, known weak codes, palindromes. Risk at or
// above codeRejectThreshold rejects the code.
func Code(raw string) CodeResult {
	if len(raw) != codeLength {
		return CodeResult{Reason: "wrong_length"}
	}
	for i := 0; i < codeLength; i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return CodeResult{Reason: "non_digit"}
		}
	}

	risk := 0
	if knownWeakCodes[raw] {
		risk += 30
	}
	if run := longestSequentialRun(raw); run >= 4 {
		risk += 15
	}
	if run := longestRepeatRun(raw); run >= 6 {
		risk += 30
	} else if run >= 3 {
		risk += 10
	}
	if isPalindrome(raw) {
		risk += 10
	}

	if risk >= codeRejectThreshold {
		return CodeResult{RiskScore: clampRisk(risk), Reason: "guessable"}
	}

	return CodeResult{
		Valid:     true,
		Sanitized: raw,
		RiskScore: clampRisk(risk),
	}
}

// FormatOnly reports whether the code is exactly six digits, with no risk
// scoring. This is the check the verification path uses: a well-formed guess
// must proceed to comparison even if it looks weak.
func FormatOnly(raw string) bool {
	if len(raw) != codeLength {
		return false
	}
	for i := 0; i < codeLength; i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return false
		}
	}
	return true
}

func longestSequentialRun(code string) int {
	best, up, down := 1, 1, 1
	for i := 1; i < len(code); i++ {
		if code[i] == code[i-1]+1 {
			up++
		} else {
			up = 1
		}
		if code[i] == code[i-1]-1 {
			down++
		} else {
			down = 1
		}
		if up > best {
			best = up
		}
		if down > best {
			best = down
		}
	}
	return best
}

func longestRepeatRun(code string) int {
	best, run := 1, 1
	for i := 1; i < len(code); i++ {
		if code[i] == code[i-1] {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

func isPalindrome(code string) bool {
	for i, j := 0, len(code)-1; i < j; i, j = i+1, j-1 {
		if code[i] != code[j] {
			return false
		}
	}
	return true
}
