package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestGenerate_DefaultSize(t *testing.T) {
	raw, err := Generate(0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(b) != DefaultBytes {
		t.Fatalf("expected %d bytes, got %d", DefaultBytes, len(b))
	}

	other, err := Generate(0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if other == raw {
		t.Fatalf("expected distinct secrets")
	}
}

func TestGenerate_RejectsOutOfRange(t *testing.T) {
	for _, n := range []int{16, 31, 65} {
		if _, err := Generate(n); !errors.Is(err, ErrInvalidSize) {
			t.Fatalf("Generate(%d): expected ErrInvalidSize, got %v", n, err)
		}
	}
}

func TestFingerprint_Modes(t *testing.T) {
	plain := Fingerprinter{}
	keyed := NewFingerprinter([]byte(strings.Repeat("k", 32)))

	if plain.Keyed() || !keyed.Keyed() {
		t.Fatalf("keyed mismatch")
	}

	a := plain.Fingerprint("secret")
	if a != HashSHA256Hex("secret") || len(a) != 64 {
		t.Fatalf("unexpected sha fingerprint %q", a)
	}
	b := keyed.Fingerprint("secret")
	if b == a || len(b) != 64 {
		t.Fatalf("expected distinct hmac fingerprint, got %q", b)
	}
	if keyed.Fingerprint("secret") != b {
		t.Fatalf("fingerprint must be deterministic")
	}
}

func TestFingerprinterFromEnv(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	f, err := FingerprinterFromEnv(false)
	if err != nil || f.Keyed() {
		t.Fatalf("expected sha fallback, got keyed=%v err=%v", f.Keyed(), err)
	}
	if _, err := FingerprinterFromEnv(true); !errors.Is(err, ErrHMACKeyMissing) {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := FingerprinterFromEnv(true); !errors.Is(err, ErrHMACKeyTooShort) {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}

	t.Setenv(HMACEnvKey, strings.Repeat("x", 40))
	f, err = FingerprinterFromEnv(true)
	if err != nil || !f.Keyed() {
		t.Fatalf("expected keyed fingerprinter, got keyed=%v err=%v", f.Keyed(), err)
	}
}

func TestNormalize(t *testing.T) {
	if _, ok := Normalize("   "); ok {
		t.Fatalf("blank must be rejected")
	}
	if _, ok := Normalize(strings.Repeat("a", MaxEncodedLen+1)); ok {
		t.Fatalf("oversized must be rejected")
	}
	if v, ok := Normalize(" abc "); !ok || v != "abc" {
		t.Fatalf("expected trimmed value, got %q ok=%v", v, ok)
	}
}
