package password

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy

	// Timeout bounds a single Hash or Verify call made through Hasher
	// when the caller's context carries no earlier deadline.
	Timeout time.Duration
}

// DefaultConfig returns the baseline cost and policy.
// Length bounds match the account forms (8..72 characters).
func DefaultConfig() Config {
	threads := min(max(runtime.NumCPU(), 1), 4)

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- in [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      8,
			MaxLength:      72,
			RejectVeryWeak: true,
		},
		Timeout: 5 * time.Second,
	}
}

// FromEnv overlays ARC_PASSWORD_* and ARC_ARGON2_* variables on
// DefaultConfig. Every error wraps ErrConfig and names the variable.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	var r envReader

	r.bounded("ARC_PASSWORD_MIN_LEN", 1, 1024, func(n uint64) { cfg.Policy.MinLength = int(n) })
	r.bounded("ARC_PASSWORD_MAX_LEN", 1, 4096, func(n uint64) { cfg.Policy.MaxLength = int(n) })
	r.bounded("ARC_ARGON2_MEMORY_KIB", 8*1024, 1024*1024, func(n uint64) { cfg.Params.MemoryKiB = uint32(n) })
	r.bounded("ARC_ARGON2_ITERATIONS", 1, 20, func(n uint64) { cfg.Params.Iterations = uint32(n) })
	r.bounded("ARC_ARGON2_PARALLELISM", 1, 64, func(n uint64) { cfg.Params.Parallelism = uint8(n) })
	r.bounded("ARC_ARGON2_SALT_LEN", 8, 64, func(n uint64) { cfg.Params.SaltLength = uint32(n) })
	r.bounded("ARC_ARGON2_KEY_LEN", 16, 64, func(n uint64) { cfg.Params.KeyLength = uint32(n) })

	r.parse("ARC_PASSWORD_REJECT_VERY_WEAK", func(v string) error {
		b, err := strconv.ParseBool(v)
		cfg.Policy.RejectVeryWeak = b
		return err
	})
	r.parse("ARC_PASSWORD_HASH_TIMEOUT", func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil && d <= 0 {
			err = errors.New("must be positive")
		}
		cfg.Timeout = d
		return err
	})

	if r.err != nil {
		return Config{}, r.err
	}
	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf("%w: min length %d exceeds max length %d",
			ErrConfig, cfg.Policy.MinLength, cfg.Policy.MaxLength)
	}
	return cfg, nil
}

// envReader keeps the first parse failure and skips everything after it.
type envReader struct{ err error }

func (r *envReader) parse(key string, apply func(string) error) {
	if r.err != nil {
		return
	}
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if err := apply(strings.TrimSpace(v)); err != nil {
		r.err = fmt.Errorf("%w: %s: %v", ErrConfig, key, err)
	}
}

func (r *envReader) bounded(key string, lo, hi uint64, set func(uint64)) {
	r.parse(key, func(v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return errors.New("not an unsigned integer")
		}
		if n < lo || n > hi {
			return fmt.Errorf("out of range [%d..%d]", lo, hi)
		}
		set(n)
		return nil
	})
}
