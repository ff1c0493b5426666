package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// commonPasswords are rejected outright when RejectVeryWeak is on.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"passw0rd":    {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"iloveyou":    {},
	"letmein123":  {},
	"admin123":    {},
	"welcome1":    {},
}

// Validate checks password against the policy. Length counts runes, not bytes.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	case c.Policy.RejectVeryWeak && looksVeryWeak(password):
		return ErrWeakPassword
	}
	return nil
}

// looksVeryWeak catches the trivially guessable cases only; it is not a strength estimator.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}
	if _, ok := commonPasswords[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return true
	}

	digits := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) == -1
	return digits && utf8.RuneCountInString(s) < 12
}
