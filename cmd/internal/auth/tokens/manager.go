package tokens

import "time"

// Manager issues and verifies access tokens.
type Manager interface {
	// Issue signs c. IssuedAt and ExpiresAt are set from now and the TTL.
	Issue(c Claims, now time.Time) (token string, exp time.Time, err error)
	// Verify returns ErrInvalidToken for any failure.
	Verify(token string, now time.Time) (Claims, error)
	TTL() time.Duration
}

// NewManager builds the Manager selected by cfg.Format.
func NewManager(cfg Config) (Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Format {
	case FormatPaseto:
		return NewPasetoManager(cfg)
	default:
		return NewJWTManager(cfg)
	}
}

// maxTokenLen rejects oversized input before any parsing.
const maxTokenLen = 8 << 10
