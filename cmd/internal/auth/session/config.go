package session

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"sessiond/cmd/security/token"
)

// Config controls refresh-token lifetime and entropy.
type Config struct {
	// TTL is the lifetime of every refresh record, including rotated successors.
	TTL time.Duration

	// TokenBytes is the number of random bytes in a raw refresh token.
	TokenBytes int
}

// DefaultConfig returns a 7 day TTL with 32 bytes of entropy.
func DefaultConfig() Config {
	return Config{
		TTL:        7 * 24 * time.Hour,
		TokenBytes: token.DefaultBytes,
	}
}

func (c Config) Validate() error {
	if c.TTL < time.Minute {
		return fmt.Errorf("%w: refresh ttl must be at least 1m", ErrConfig)
	}
	if c.TokenBytes < token.MinBytes || c.TokenBytes > token.MaxBytes {
		return fmt.Errorf("%w: token bytes must be in [%d..%d]", ErrConfig, token.MinBytes, token.MaxBytes)
	}
	return nil
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - ARC_AUTH_REFRESH_TTL (Go duration)
//   - ARC_AUTH_REFRESH_TOKEN_BYTES (32..64)
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("ARC_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w: ARC_AUTH_REFRESH_TTL", ErrConfig)
		}
		cfg.TTL = d
	}

	if v := os.Getenv("ARC_AUTH_REFRESH_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: ARC_AUTH_REFRESH_TOKEN_BYTES", ErrConfig)
		}
		cfg.TokenBytes = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
