package domain

// AlertDecision is the alert gate's verdict for one completed request.
type AlertDecision struct {
	ShouldSend bool   `json:"should_send"`
	Reason     string `json:"reason"`
}

// ValidPhoneNumber reports whether phone is a well-formed Peruvian mobile
// number: exactly 9 digits with a leading 9 once separators are stripped.
// The +51 country prefix is a presentation concern and is rejected here if
// it leaks into the stored number.
func ValidPhoneNumber(phone string) bool {
	digits := phoneDigits(phone)
	return len(digits) == 9 && digits[0] == '9'
}

// phoneDigits strips spaces, dashes and dots, keeping digit characters.
// Any other character invalidates the number.
func phoneDigits(phone string) string {
	out := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		c := phone[i]
		switch {
		case c >= '0' && c <= '9':
			out = append(out, c)
		case c == ' ' || c == '-' || c == '.':
			// separator, skip
		default:
			return ""
		}
	}
	return string(out)
}

// DecideAlert gates SMS dispatch on a completed analysis request. A send
// requires a valid location, an opted-in phone number in the expected
// format, and a computed assessment; an out-of-coverage or failed analysis
// must never trigger one. The gate holds no memory of prior sends: callers
// invoke it exactly once per request.
func DecideAlert(validation ValidationResult, phone string, assessment *CombinedAssessment) AlertDecision {
	switch {
	case !validation.IsValid:
		return AlertDecision{Reason: "location outside coverage area"}
	case phone == "":
		return AlertDecision{Reason: "no phone number provided"}
	case !ValidPhoneNumber(phone):
		return AlertDecision{Reason: "phone number must be 9 digits starting with 9"}
	case assessment == nil:
		return AlertDecision{Reason: "no assessment available"}
	default:
		return AlertDecision{ShouldSend: true, Reason: "alert criteria met"}
	}
}
