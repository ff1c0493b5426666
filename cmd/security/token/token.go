package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the fingerprint HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "ARC_TOKEN_HMAC_KEY"

	// MinHMACKeyBytes is the smallest key accepted when HMAC mode is required.
	MinHMACKeyBytes = 32

	// DefaultBytes is the entropy of a generated secret.
	DefaultBytes = 32
	// MinBytes and MaxBytes bound configurable secret sizes.
	MinBytes = 32
	MaxBytes = 64

	// MaxEncodedLen bounds presented secrets before hashing.
	MaxEncodedLen = 512
)

// Generate returns nBytes of crypto/rand entropy as unpadded base64url.
func Generate(nBytes int) (string, error) {
	if nBytes == 0 {
		nBytes = DefaultBytes
	}
	if nBytes < MinBytes || nBytes > MaxBytes {
		return "", ErrInvalidSize
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrHMACKeyMissing.
// If too short -> ErrHMACKeyTooShort.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// Fingerprinter computes storage fingerprints for raw secrets.
// The zero value hashes with plain SHA-256.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter returns a Fingerprinter keyed with key. An empty key selects SHA-256.
func NewFingerprinter(key []byte) Fingerprinter {
	if len(key) == 0 {
		return Fingerprinter{}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return Fingerprinter{key: k}
}

// FingerprinterFromEnv builds a Fingerprinter from ARC_TOKEN_HMAC_KEY.
// When requireHMAC is set, a missing or short key is an error instead of a SHA-256 fallback.
func FingerprinterFromEnv(requireHMAC bool) (Fingerprinter, error) {
	minBytes := 0
	if requireHMAC {
		minBytes = MinHMACKeyBytes
	}
	key, err := HMACKeyFromEnv(minBytes)
	switch {
	case err == nil:
		return NewFingerprinter(key), nil
	case requireHMAC:
		return Fingerprinter{}, err
	default:
		return Fingerprinter{}, nil
	}
}

// Keyed reports whether fingerprints are HMAC-based.
func (f Fingerprinter) Keyed() bool { return len(f.key) > 0 }

// Fingerprint hashes a raw secret for storage and lookup (64 hex chars).
func (f Fingerprinter) Fingerprint(raw string) string {
	if len(f.key) == 0 {
		return HashSHA256Hex(raw)
	}
	return HashHMACSHA256Hex(raw, f.key)
}

// Normalize trims a presented secret and rejects blank or oversized input.
func Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > MaxEncodedLen {
		return "", false
	}
	return raw, true
}
