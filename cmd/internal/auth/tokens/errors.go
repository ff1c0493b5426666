package tokens

import "errors"

var (
	// ErrInvalidToken covers every verification failure: signature, expiry,
	// malformed input and unexpected claim shape.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid token config")
)
