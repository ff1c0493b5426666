package tokens

import (
	"encoding/base64"
	"encoding/hex"
	"os"
	"strings"
	"time"
)

// Format selects the access-token encoding.
type Format string

const (
	FormatJWT    Format = "jwt"
	FormatPaseto Format = "paseto"
)

// MinKeyBytes is the minimum symmetric key size (256 bits).
const MinKeyBytes = 32

// Config controls access-token minting and verification.
type Config struct {
	Format    Format
	Key       []byte
	Issuer    string
	TTL       time.Duration
	ClockSkew time.Duration
}

// DefaultConfig returns defaults without a key; callers must supply one.
func DefaultConfig() Config {
	return Config{
		Format:    FormatJWT,
		Issuer:    "sessiond",
		TTL:       15 * time.Minute,
		ClockSkew: 30 * time.Second,
	}
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Required:
//   - ARC_ACCESS_TOKEN_KEY (hex or base64, >= 32 bytes decoded)
//
// Optional:
//   - ARC_ACCESS_TOKEN_FORMAT (jwt|paseto, default jwt)
//   - ARC_AUTH_ISSUER
//   - ARC_AUTH_ACCESS_TTL
//   - ARC_AUTH_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("ARC_ACCESS_TOKEN_FORMAT")); v != "" {
		cfg.Format = Format(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("ARC_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}
	if v := os.Getenv("ARC_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}
	if v := os.Getenv("ARC_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	key, err := DecodeKey(os.Getenv("ARC_ACCESS_TOKEN_KEY"))
	if err != nil {
		return Config{}, err
	}
	cfg.Key = key

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DecodeKey accepts a hex or base64 (std or URL, padded or not) key.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrConfig
	}
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, ErrConfig
}

// Validate checks the key policy and format-specific constraints.
func (c Config) Validate() error {
	if len(c.Key) < MinKeyBytes || c.TTL <= 0 || c.ClockSkew < 0 || strings.TrimSpace(c.Issuer) == "" {
		return ErrConfig
	}
	switch c.Format {
	case FormatJWT:
	case FormatPaseto:
		// v4.local keys are exactly 256 bits.
		if len(c.Key) != MinKeyBytes {
			return ErrConfig
		}
	default:
		return ErrConfig
	}
	return nil
}
