package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envValue parses key with parse and keeps def when the variable is unset,
// unparsable or rejected by valid.
func envValue[T any](key string, def T, parse func(string) (T, error), valid func(T) bool) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	if valid != nil && !valid(v) {
		return def
	}
	return v
}

// EnvString reads a string env var with a default.
func EnvString(key, def string) string {
	return envValue(key, def, func(s string) (string, error) { return s, nil }, nil)
}

// EnvBool reads a bool env var with a default.
func EnvBool(key string, def bool) bool {
	return envValue(key, def, strconv.ParseBool, nil)
}

// EnvInt reads a positive int env var with a default.
func EnvInt(key string, def int) int {
	return envValue(key, def, strconv.Atoi, func(n int) bool { return n > 0 })
}

// EnvInt32 reads a non-negative int32 env var with a default.
func EnvInt32(key string, def int32) int32 {
	parse := func(s string) (int32, error) {
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	}
	return envValue(key, def, parse, func(n int32) bool { return n >= 0 })
}

// EnvDuration reads a positive duration env var with a default.
func EnvDuration(key string, def time.Duration) time.Duration {
	return envValue(key, def, time.ParseDuration, func(d time.Duration) bool { return d > 0 })
}
