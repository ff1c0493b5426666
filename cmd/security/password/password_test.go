package password

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// fastConfig keeps Argon2id cheap so the suite stays quick.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := fastConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(h, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding %q", h)
	}

	ok, err := cfg.Verify(h, "this is a strong password 123!")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := fastConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "wrong password")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := fastConfig()

	ok, err := cfg.Verify("not-a-hash", "whatever")
	if err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
	if ok {
		t.Fatalf("expected false")
	}
}

func TestVerify_RejectsOversizedParams(t *testing.T) {
	cfg := fastConfig()
	huge := "$argon2id$v=19$m=4194304,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"

	if _, err := cfg.Verify(huge, "whatever"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestVerify_Bcrypt(t *testing.T) {
	cfg := fastConfig()
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-password-1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	ok, err := cfg.Verify(string(legacy), "legacy-password-1")
	if err != nil || !ok {
		t.Fatalf("expected bcrypt match, ok=%v err=%v", ok, err)
	}
	ok, err = cfg.Verify(string(legacy), "nope-nope-nope")
	if err != nil || ok {
		t.Fatalf("expected bcrypt mismatch, ok=%v err=%v", ok, err)
	}
	if !cfg.NeedsRehash(string(legacy)) {
		t.Fatalf("bcrypt hashes must be flagged for rehash")
	}
}

func TestNeedsRehash_Argon2(t *testing.T) {
	weak := fastConfig()
	h, err := weak.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if weak.NeedsRehash(h) {
		t.Fatalf("hash with current params must not need rehash")
	}

	stronger := weak
	stronger.Params.Iterations = 2
	if !stronger.NeedsRehash(h) {
		t.Fatalf("expected rehash when iterations increase")
	}
}

func TestValidate_MinMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !IsPolicyError(ErrPasswordTooLong) || IsPolicyError(ErrInvalidHash) {
		t.Fatalf("IsPolicyError classification mismatch")
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 8

	for _, pw := range []string{"password", "11111111", "Password123", "aaaaaaaaaa", "123456789"} {
		if err := cfg.Validate(pw); err != ErrWeakPassword {
			t.Fatalf("Validate(%q): expected ErrWeakPassword, got %v", pw, err)
		}
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestHasher_VerifyTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = time.Nanosecond

	h := &Hasher{cfg: cfg}
	ok, err := h.Verify(context.Background(), "whatever-password", "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g")
	if ok {
		t.Fatalf("timeout must never report a match")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestHasher_HashAndVerify(t *testing.T) {
	h, err := NewHasher(fastConfig())
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	ctx := context.Background()
	enc, err := h.Hash(ctx, "correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	ok, err := h.Verify(ctx, "correct horse battery", enc)
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}

	if _, err := h.Hash(ctx, "short"); err != ErrPasswordTooShort {
		t.Fatalf("expected policy error, got %v", err)
	}

	h.DummyVerify(ctx, "anything at all")
}
