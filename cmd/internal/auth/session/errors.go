package session

import "errors"

var (
	// ErrNotFound is returned when a presented token matches no record, or
	// when a concurrent update made the rotation unsafe to complete.
	ErrNotFound = errors.New("refresh token not found")

	// ErrReuseDetected is returned when a revoked record is presented again.
	// Its family has been revoked by the time the caller sees this error.
	ErrReuseDetected = errors.New("refresh token reuse detected")

	// ErrExpired is returned for an unrevoked record past its expiry.
	ErrExpired = errors.New("refresh token expired")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)

// IsRotationError reports whether err is one of the rotation outcomes a
// client must only ever see as an invalid token.
func IsRotationError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrReuseDetected) || errors.Is(err, ErrExpired)
}
