package authapi

import (
	"errors"

	"sessiond/cmd/security/password"
)

// validationMessage exposes password policy failures; anything else is generic.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return "password is too short"
	case errors.Is(err, password.ErrPasswordTooLong):
		return "password is too long"
	case errors.Is(err, password.ErrWeakPassword):
		return "password is too weak"
	default:
		return "invalid request"
	}
}
