package notify

import "strings"

// NormalizePhone converts a stored phone number to international format.
// Philippine subscriber conventions:
//
//	"09171234567"   → "+639171234567"  (local mobile prefix)
//	"9171234567"    → "+639171234567"  (bare 10-digit subscriber number)
//	"+639171234567" → unchanged        (already international)
//
// Everything else is rejected; spaces and dashes are stripped first.
func NormalizePhone(raw string) (string, bool) {
	phone := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	if phone == "" {
		return "", false
	}

	switch {
	case strings.HasPrefix(phone, "+"):
		if !allDigits(phone[1:]) || len(phone) < 8 {
			return "", false
		}
		return phone, true
	case strings.HasPrefix(phone, "0"):
		rest := phone[1:]
		if !allDigits(rest) || len(rest) != 10 {
			return "", false
		}
		return "+63" + rest, true
	case strings.HasPrefix(phone, "9"):
		if !allDigits(phone) || len(phone) != 10 {
			return "", false
		}
		return "+63" + phone, true
	default:
		return "", false
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
