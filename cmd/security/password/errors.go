package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
	ErrInvalidHash      = errors.New("invalid password hash")

	// ErrTimeout is returned by Hasher when the caller's deadline expires
	// before hashing completes. It is never a verdict on the password.
	ErrTimeout = errors.New("password hashing timed out")

	ErrConfig = errors.New("invalid password config")
)

// IsPolicyError reports whether err is a password policy violation.
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrPasswordTooLong) ||
		errors.Is(err, ErrWeakPassword)
}
