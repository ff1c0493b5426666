package auth

import (
	"errors"
	"fmt"
)

// Error kinds. Transport layers switch on these with errors.Is.
var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountLocked         = errors.New("account locked")
	ErrRateLimited           = errors.New("rate limited")
	ErrInvalidToken          = errors.New("invalid token")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrAccountNotFound is only returned by flows keyed on an account id.
	ErrAccountNotFound = errors.New("account not found")
	ErrValidation      = errors.New("validation error")
	ErrInternal        = errors.New("internal error")

	ErrConfig = errors.New("invalid auth config")
)

// Error is the single error type returned by Service.
type Error struct {
	Op        string
	Kind      error
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

func internal(op string, cause error) *Error {
	return &Error{Op: op, Kind: ErrInternal, Err: cause}
}

func retryable(op string, cause error) *Error {
	return &Error{Op: op, Kind: ErrInternal, Err: cause, Retryable: true}
}

// KindOf returns the kind of err, or ErrInternal for foreign errors.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	return ErrInternal
}

// IsRetryable reports whether the caller may retry the same request.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
