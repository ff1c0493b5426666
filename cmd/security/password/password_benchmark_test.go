package password

import (
	"context"
	"testing"
)

func BenchmarkHash_DefaultConfig(b *testing.B) {
	cfg := DefaultConfig()
	pw := "this is a strong password 123!"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cfg.Hash(pw); err != nil {
			b.Fatalf("Hash error: %v", err)
		}
	}
}

func BenchmarkHasherVerify_DefaultConfig(b *testing.B) {
	h, err := NewHasher(DefaultConfig())
	if err != nil {
		b.Fatalf("NewHasher: %v", err)
	}
	ctx := context.Background()
	pw := "this is a strong password 123!"
	enc, err := h.Hash(ctx, pw)
	if err != nil {
		b.Fatalf("Hash error: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if ok, err := h.Verify(ctx, pw, enc); err != nil || !ok {
			b.Fatalf("Verify failed: ok=%v err=%v", ok, err)
		}
	}
}
