package auth

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config bounds the orchestrator's suspension points.
type Config struct {
	// OperationTimeout caps a whole flow: store calls, hashing and email.
	OperationTimeout time.Duration
	// HashTimeout caps a single password hash or verification.
	HashTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		OperationTimeout: 15 * time.Second,
		HashTimeout:      5 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("%w: operation timeout must be positive", ErrConfig)
	}
	if c.HashTimeout <= 0 || c.HashTimeout > c.OperationTimeout {
		return fmt.Errorf("%w: hash timeout must be positive and within the operation timeout", ErrConfig)
	}
	return nil
}

// LoadConfigFromEnv reads ARC_AUTH_OPERATION_TIMEOUT and ARC_AUTH_HASH_TIMEOUT.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	for _, v := range []struct {
		key string
		dst *time.Duration
	}{
		{"ARC_AUTH_OPERATION_TIMEOUT", &cfg.OperationTimeout},
		{"ARC_AUTH_HASH_TIMEOUT", &cfg.HashTimeout},
	} {
		raw := strings.TrimSpace(os.Getenv(v.key))
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrConfig, v.key, err)
		}
		*v.dst = d
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
