package reset

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resetCols = []string{"id", "account_id", "token_hash", "expires_at", "used", "used_at", "created_at"}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewPostgresStore(mock, WithSchema("tenant_a"))
	require.NoError(t, err)
	return s, mock
}

func TestPostgresStore_InsertCapped(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	rec := Record{ID: "r1", AccountID: "acct", Fingerprint: "fp", ExpiresAt: now.Add(time.Hour), CreatedAt: now}

	t.Run("under cap", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WithArgs("acct").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "tenant_a"."password_reset_tokens"`).WithArgs("acct", now).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectExec(`INSERT INTO "tenant_a"."password_reset_tokens"`).
			WithArgs("r1", "acct", "fp", rec.ExpiresAt, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		require.NoError(t, s.InsertCapped(context.Background(), rec, 3, now))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("at cap", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WithArgs("acct").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectQuery(`SELECT count`).WithArgs("acct", now).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectRollback()

		assert.ErrorIs(t, s.InsertCapped(context.Background(), rec, 3, now), ErrTooManyActive)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Consume(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE "tenant_a"."password_reset_tokens"\s+SET used = true, used_at = \$2\s+WHERE token_hash = \$1 AND used = false AND expires_at > \$2\s+RETURNING`).
		WithArgs("fp", now).
		WillReturnRows(pgxmock.NewRows(resetCols).AddRow("r1", "acct", "fp", now.Add(time.Hour), true, &now, now))

	rec, err := s.Consume(context.Background(), "fp", now)
	require.NoError(t, err)
	assert.True(t, rec.Used)
	assert.Equal(t, "acct", rec.AccountID)

	mock.ExpectQuery(`UPDATE "tenant_a"."password_reset_tokens"`).
		WithArgs("fp", now).
		WillReturnError(pgx.ErrNoRows)
	_, err = s.Consume(context.Background(), "fp", now)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)

	require.NoError(t, mock.ExpectationsWereMet())
}
