package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract exercises behaviour every Repository backend must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Helper()

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	seed := func(t *testing.T, r Repository, email string) Account {
		t.Helper()
		a, err := r.Create(ctx, CreateAccountInput{
			Email:        email,
			PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
			Now:          now,
		})
		require.NoError(t, err)
		return a
	}

	t.Run("create normalizes and finds", func(t *testing.T) {
		r := newRepo(t)
		a := seed(t, r, "  Alice@Example.COM ")
		assert.Equal(t, "alice@example.com", a.Email)
		assert.Equal(t, DefaultRole, a.Role)
		assert.True(t, a.Active)

		byEmail, err := r.FindByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		assert.Equal(t, a.ID, byEmail.ID)

		byID, err := r.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.Email, byID.Email)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "dup@example.com")
		_, err := r.Create(ctx, CreateAccountInput{Email: "DUP@example.com", PasswordHash: "h", Now: now})
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("missing account", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.FindByEmail(ctx, "nobody@example.com")
		assert.True(t, IsNotFound(err))
		_, err = r.FindByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
		assert.True(t, IsNotFound(err))
	})

	t.Run("failures lock at threshold and success clears", func(t *testing.T) {
		r := newRepo(t)
		a := seed(t, r, "lock@example.com")

		for i := 1; i <= 4; i++ {
			st, err := r.RecordFailedLogin(ctx, a.ID, 5, 15*time.Minute, now)
			require.NoError(t, err)
			assert.Equal(t, i, st.Attempts)
			assert.Nil(t, st.LockedUntil)
			assert.False(t, st.JustLocked)
		}
		st, err := r.RecordFailedLogin(ctx, a.ID, 5, 15*time.Minute, now)
		require.NoError(t, err)
		assert.Equal(t, 5, st.Attempts)
		require.NotNil(t, st.LockedUntil)
		assert.True(t, st.LockedUntil.Equal(now.Add(15*time.Minute)))
		assert.True(t, st.JustLocked)

		// A further failure while locked does not extend the lock.
		st, err = r.RecordFailedLogin(ctx, a.ID, 5, 15*time.Minute, now.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, st.LockedUntil.Equal(now.Add(15*time.Minute)))
		assert.False(t, st.JustLocked)

		got, err := r.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.IsLocked(now.Add(10*time.Minute)))
		assert.False(t, got.IsLocked(now.Add(16*time.Minute)))

		// Expiry alone keeps the stale counter; the next failure relocks.
		later := now.Add(20 * time.Minute)
		st, err = r.RecordFailedLogin(ctx, a.ID, 5, 15*time.Minute, later)
		require.NoError(t, err)
		assert.Equal(t, 7, st.Attempts)
		require.NotNil(t, st.LockedUntil)
		assert.True(t, st.LockedUntil.Equal(later.Add(15*time.Minute)))
		assert.True(t, st.JustLocked)

		require.NoError(t, r.RecordSuccessfulLogin(ctx, a.ID, later))
		got, err = r.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.FailedAttempts)
		assert.Nil(t, got.LockedUntil)
		require.NotNil(t, got.LastLoginAt)
		assert.True(t, got.LastLoginAt.Equal(later))
	})

	t.Run("concurrent failures never lose an increment", func(t *testing.T) {
		r := newRepo(t)
		a := seed(t, r, "race@example.com")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = r.RecordFailedLogin(ctx, a.ID, 100, time.Minute, now)
			}()
		}
		wg.Wait()

		got, err := r.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 20, got.FailedAttempts)
	})

	t.Run("update password clears force flag on request", func(t *testing.T) {
		r := newRepo(t)
		a, err := r.Create(ctx, CreateAccountInput{
			Email: "force@example.com", PasswordHash: "old", ForcePasswordChange: true, Now: now,
		})
		require.NoError(t, err)

		require.NoError(t, r.UpdatePassword(ctx, a.ID, "rehash", false, now))
		got, err := r.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "rehash", got.PasswordHash)
		assert.True(t, got.ForcePasswordChange)

		require.NoError(t, r.UpdatePassword(ctx, a.ID, "new", true, now))
		got, err = r.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.PasswordHash)
		assert.False(t, got.ForcePasswordChange)

		assert.True(t, IsNotFound(r.UpdatePassword(ctx, "missing", "x", true, now)))
	})

	t.Run("invalid threshold", func(t *testing.T) {
		r := newRepo(t)
		a := seed(t, r, "bad@example.com")
		_, err := r.RecordFailedLogin(ctx, a.ID, 0, time.Minute, now)
		assert.True(t, IsInvalidInput(err))
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository { return NewMemoryStore() })
}
