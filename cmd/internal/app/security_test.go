package app

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSecurityFingerprinter(t *testing.T) {
	log := slog.New(slog.DiscardHandler)

	t.Run("required and missing", func(t *testing.T) {
		t.Setenv("ARC_TOKEN_HMAC_KEY", "")
		_, err := securityFingerprinter(Config{RequireTokenHMAC: true}, log)
		if !errors.Is(err, ErrConfig) || !strings.Contains(err.Error(), "missing") {
			t.Fatalf("expected missing-key config error, got %v", err)
		}
	})

	t.Run("required and short", func(t *testing.T) {
		t.Setenv("ARC_TOKEN_HMAC_KEY", "short")
		_, err := securityFingerprinter(Config{RequireTokenHMAC: true}, log)
		if !errors.Is(err, ErrConfig) || !strings.Contains(err.Error(), "too short") {
			t.Fatalf("expected short-key config error, got %v", err)
		}
	})

	t.Run("required and present", func(t *testing.T) {
		t.Setenv("ARC_TOKEN_HMAC_KEY", strings.Repeat("k", 32))
		fp, err := securityFingerprinter(Config{RequireTokenHMAC: true}, log)
		if err != nil || !fp.Keyed() {
			t.Fatalf("expected keyed fingerprinter, got keyed=%v err=%v", fp.Keyed(), err)
		}
	})

	t.Run("optional falls back to sha256", func(t *testing.T) {
		t.Setenv("ARC_TOKEN_HMAC_KEY", "")
		fp, err := securityFingerprinter(Config{}, log)
		if err != nil || fp.Keyed() {
			t.Fatalf("expected unkeyed fingerprinter, got keyed=%v err=%v", fp.Keyed(), err)
		}
	})
}
