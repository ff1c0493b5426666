package password

import (
	"context"
	"errors"
)

// Hasher runs Config hashing under a context deadline.
//
// Argon2id cannot be interrupted, so on timeout the computation finishes in the
// background and its result is dropped; the caller gets ErrTimeout right away.
type Hasher struct {
	cfg   Config
	dummy string
}

// NewHasher builds a Hasher and precomputes the hash used by DummyVerify.
func NewHasher(cfg Config) (*Hasher, error) {
	h := &Hasher{cfg: cfg}
	dummy, err := cfg.Hash("timing-equalizer-Not-A-Real-Password-9")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Config returns the hasher configuration.
func (h *Hasher) Config() Config { return h.cfg }

// Validate checks password against the policy without hashing it.
func (h *Hasher) Validate(password string) error { return h.cfg.Validate(password) }

// Hash hashes password, returning ErrTimeout if ctx expires first.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	type result struct {
		hash string
		err  error
	}
	ctx, cancel := h.bound(ctx)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		s, err := h.cfg.Hash(password)
		ch <- result{s, err}
	}()

	select {
	case r := <-ch:
		return r.hash, r.err
	case <-ctx.Done():
		return "", timeoutErr(ctx.Err())
	}
}

// Verify compares password with encodedHash, returning ErrTimeout if ctx expires first.
func (h *Hasher) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	type result struct {
		ok  bool
		err error
	}
	ctx, cancel := h.bound(ctx)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		ok, err := h.cfg.Verify(encodedHash, password)
		ch <- result{ok, err}
	}()

	select {
	case r := <-ch:
		return r.ok, r.err
	case <-ctx.Done():
		return false, timeoutErr(ctx.Err())
	}
}

// DummyVerify burns the same work as a real verification. Used when the
// account does not exist so response timing does not reveal it.
func (h *Hasher) DummyVerify(ctx context.Context, password string) {
	_, _ = h.Verify(ctx, password, h.dummy)
}

// NeedsRehash reports whether encodedHash should be upgraded.
func (h *Hasher) NeedsRehash(encodedHash string) bool { return h.cfg.NeedsRehash(encodedHash) }

func (h *Hasher) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.cfg.Timeout)
}

func timeoutErr(cause error) error {
	return errors.Join(ErrTimeout, cause)
}
