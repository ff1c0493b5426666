package password

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"ARC_PASSWORD_MIN_LEN",
	"ARC_PASSWORD_MAX_LEN",
	"ARC_PASSWORD_REJECT_VERY_WEAK",
	"ARC_PASSWORD_HASH_TIMEOUT",
	"ARC_ARGON2_MEMORY_KIB",
	"ARC_ARGON2_ITERATIONS",
	"ARC_ARGON2_PARALLELISM",
	"ARC_ARGON2_SALT_LEN",
	"ARC_ARGON2_KEY_LEN",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestFromEnv_Override(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARC_PASSWORD_MIN_LEN", "10")
	t.Setenv("ARC_PASSWORD_MAX_LEN", "200")
	t.Setenv("ARC_PASSWORD_REJECT_VERY_WEAK", "false")
	t.Setenv("ARC_PASSWORD_HASH_TIMEOUT", "2s")
	t.Setenv("ARC_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("ARC_ARGON2_ITERATIONS", "4")
	t.Setenv("ARC_ARGON2_PARALLELISM", "2")
	t.Setenv("ARC_ARGON2_SALT_LEN", "24")
	t.Setenv("ARC_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, Policy{MinLength: 10, MaxLength: 200, RejectVeryWeak: false}, cfg.Policy)
	assert.Equal(t, Argon2idParams{MemoryKiB: 32768, Iterations: 4, Parallelism: 2, SaltLength: 24, KeyLength: 32}, cfg.Params)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"ARC_ARGON2_MEMORY_KIB":         "12",
		"ARC_ARGON2_PARALLELISM":        "0",
		"ARC_ARGON2_KEY_LEN":            "-1",
		"ARC_PASSWORD_REJECT_VERY_WEAK": "maybe",
		"ARC_PASSWORD_HASH_TIMEOUT":     "-1s",
		"ARC_PASSWORD_MIN_LEN":          "abc",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			_, err := FromEnv()
			require.ErrorIs(t, err, ErrConfig)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestFromEnv_MinAboveMax(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARC_PASSWORD_MIN_LEN", "20")
	t.Setenv("ARC_PASSWORD_MAX_LEN", "10")

	_, err := FromEnv()
	require.ErrorIs(t, err, ErrConfig)
}
