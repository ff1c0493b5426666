package ratelimit

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid rate limit config")

// Config is the env-driven limiter configuration.
type Config struct {
	Policies    map[Operation]Policy
	MaxKeys     int
	RedisPrefix string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Policies:    DefaultPolicies(),
		MaxKeys:     DefaultMaxKeys,
		RedisPrefix: DefaultRedisPrefix,
	}
}

// LoadConfigFromEnv reads:
//   - ARC_RATELIMIT_LOGIN_CAPACITY, ARC_RATELIMIT_LOGIN_INTERVAL
//   - ARC_RATELIMIT_RESET_CAPACITY, ARC_RATELIMIT_RESET_INTERVAL
//   - ARC_RATELIMIT_MAX_KEYS
//   - ARC_RATELIMIT_REDIS_PREFIX
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	for op, prefix := range map[Operation]string{OpLogin: "ARC_RATELIMIT_LOGIN", OpReset: "ARC_RATELIMIT_RESET"} {
		p := cfg.Policies[op]
		if v := strings.TrimSpace(os.Getenv(prefix + "_CAPACITY")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return Config{}, ErrConfig
			}
			p.Capacity, p.RefillTokens = n, n
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_INTERVAL")); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return Config{}, ErrConfig
			}
			p.Interval = d
		}
		cfg.Policies[op] = p
	}

	if v := strings.TrimSpace(os.Getenv("ARC_RATELIMIT_MAX_KEYS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, ErrConfig
		}
		cfg.MaxKeys = n
	}
	if v := strings.TrimSpace(os.Getenv("ARC_RATELIMIT_REDIS_PREFIX")); v != "" {
		cfg.RedisPrefix = v
	}
	return cfg, nil
}
