package reset

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/store/sqlitestore/sqlitetest"
	"sessiond/cmd/security/token"
)

type backend func(t *testing.T) (Store, func(t *testing.T, email string) string)

func accountMaker(r identity.Repository) func(t *testing.T, email string) string {
	return func(t *testing.T, email string) string {
		t.Helper()
		a, err := r.Create(context.Background(), identity.CreateAccountInput{
			Email: email, PasswordHash: "h", Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		return a.ID
	}
}

func TestService_Memory(t *testing.T) {
	runResetContract(t, func(t *testing.T) (Store, func(t *testing.T, email string) string) {
		return NewMemoryStore(), accountMaker(identity.NewMemoryStore())
	})
}

func TestService_SQLite(t *testing.T) {
	runResetContract(t, func(t *testing.T) (Store, func(t *testing.T, email string) string) {
		db := sqlitetest.Open(t)
		accounts, err := identity.NewSQLiteStore(db)
		require.NoError(t, err)
		s, err := NewSQLiteStore(db)
		require.NoError(t, err)
		return s, accountMaker(accounts)
	})
}

func newService(t *testing.T, s Store) *Service {
	t.Helper()
	svc, err := NewService(DefaultConfig(), s, token.Fingerprinter{})
	require.NoError(t, err)
	return svc
}

func runResetContract(t *testing.T, newBackend backend) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("issue then consume once", func(t *testing.T) {
		store, mk := newBackend(t)
		svc := newService(t, store)
		acct := mk(t, "once@example.com")

		raw, rec, err := svc.Issue(ctx, acct, now)
		require.NoError(t, err)
		assert.True(t, rec.ExpiresAt.Equal(now.Add(time.Hour)))
		assert.Equal(t, token.HashSHA256Hex(raw), rec.Fingerprint)

		got, err := svc.Lookup(ctx, raw, now)
		require.NoError(t, err)
		assert.Equal(t, acct, got.AccountID)

		used, err := svc.Consume(ctx, raw, now.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, used.Used)
		require.NotNil(t, used.UsedAt)

		_, err = svc.Consume(ctx, raw, now.Add(2*time.Minute))
		assert.ErrorIs(t, err, ErrInvalidOrExpired)
		_, err = svc.Lookup(ctx, raw, now.Add(2*time.Minute))
		assert.ErrorIs(t, err, ErrInvalidOrExpired)
	})

	t.Run("expired and unknown tokens look identical", func(t *testing.T) {
		store, mk := newBackend(t)
		svc := newService(t, store)
		acct := mk(t, "expired@example.com")

		raw, _, err := svc.Issue(ctx, acct, now)
		require.NoError(t, err)

		_, err = svc.Consume(ctx, raw, now.Add(time.Hour))
		assert.ErrorIs(t, err, ErrInvalidOrExpired)
		_, err = svc.Consume(ctx, "never-issued", now)
		assert.ErrorIs(t, err, ErrInvalidOrExpired)
		_, err = svc.Consume(ctx, "  ", now)
		assert.ErrorIs(t, err, ErrInvalidOrExpired)
	})

	t.Run("active cap", func(t *testing.T) {
		store, mk := newBackend(t)
		svc := newService(t, store)
		acct := mk(t, "cap@example.com")

		var raws []string
		for i := 0; i < 3; i++ {
			raw, _, err := svc.Issue(ctx, acct, now)
			require.NoError(t, err)
			raws = append(raws, raw)
		}
		_, _, err := svc.Issue(ctx, acct, now)
		assert.ErrorIs(t, err, ErrTooManyActive)

		n, err := svc.CountActive(ctx, acct, now)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		// Consuming frees a slot, and so does expiry.
		_, err = svc.Consume(ctx, raws[0], now)
		require.NoError(t, err)
		_, _, err = svc.Issue(ctx, acct, now)
		require.NoError(t, err)

		_, _, err = svc.Issue(ctx, acct, now.Add(2*time.Hour))
		assert.NoError(t, err)
	})

	t.Run("concurrent issue respects the cap", func(t *testing.T) {
		store, mk := newBackend(t)
		svc := newService(t, store)
		acct := mk(t, "burst@example.com")

		var (
			wg sync.WaitGroup
			ok atomic.Int32
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, _, err := svc.Issue(ctx, acct, now); err == nil {
					ok.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 3, ok.Load())
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		store, mk := newBackend(t)
		svc := newService(t, store)
		acct := mk(t, "double@example.com")

		raw, _, err := svc.Issue(ctx, acct, now)
		require.NoError(t, err)

		var (
			wg sync.WaitGroup
			ok atomic.Int32
		)
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := svc.Consume(ctx, raw, now); err == nil {
					ok.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 1, ok.Load())
	})

	t.Run("purge", func(t *testing.T) {
		store, mk := newBackend(t)
		svc := newService(t, store)
		acct := mk(t, "purge@example.com")

		_, _, err := svc.Issue(ctx, acct, now.Add(-40*24*time.Hour))
		require.NoError(t, err)
		_, _, err = svc.Issue(ctx, acct, now)
		require.NoError(t, err)

		n, err := svc.Purge(ctx, now.Add(-30*24*time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}

func TestConfig(t *testing.T) {
	t.Setenv("ARC_RESET_TTL", "30m")
	t.Setenv("ARC_RESET_MAX_ACTIVE", "5")
	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.TTL)
	assert.Equal(t, 5, cfg.MaxActive)

	t.Setenv("ARC_RESET_MAX_ACTIVE", "0")
	_, err = LoadConfigFromEnv()
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewService(Config{TTL: time.Hour, MaxActive: 3}, NewMemoryStore(), token.Fingerprinter{})
	assert.ErrorIs(t, err, ErrConfig)
}
