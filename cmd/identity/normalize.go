package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
// Rate-limit keys and lookups both go through it so case and whitespace
// variants of one address collapse to the same key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail is a shape check only: one '@', non-empty local part and a dotted domain.
func ValidEmail(s string) bool {
	if len(s) > 254 || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	at := strings.IndexByte(s, '@')
	if at <= 0 || at != strings.LastIndexByte(s, '@') {
		return false
	}
	domain := s[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

// MaskEmail renders an address for logs: "ab***@example.com".
// Short or malformed inputs collapse to "***".
func MaskEmail(email string) string {
	if len(email) < 5 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 2 {
		return "***"
	}
	return email[:2] + "***" + email[at:]
}
