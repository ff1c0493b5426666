package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessiond/cmd/internal/store/sqlitestore/sqlitetest"
)

func TestPostgresRecorder_Inserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r, err := NewPostgresRecorder(mock, "tenant_a", nil)
	require.NoError(t, err)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	meta := `{"reason":"bad_password"}`
	mock.ExpectExec(`(?s)INSERT INTO "tenant_a"."audit_log" \(\s+action, account_id`).
		WithArgs(LoginFailed, "acct-1", nil, "10.0.0.1", nil, &meta, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r.Record(context.Background(), Event{
		Action:    LoginFailed,
		AccountID: "acct-1",
		IP:        "10.0.0.1",
		UserAgent: "  ",
		Meta:      map[string]any{"reason": "bad_password"},
		At:        at,
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_SwallowsErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	var buf bytes.Buffer
	r, err := NewPostgresRecorder(mock, "", slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO "auth"."audit_log"`).
		WithArgs(Logout, nil, nil, nil, nil, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	r.Record(context.Background(), Event{Action: Logout})
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), "audit.insert.fail")
	assert.Contains(t, buf.String(), "db down")
}

func TestPostgresRecorder_SkipsEmptyAction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r, err := NewPostgresRecorder(mock, "", nil)
	require.NoError(t, err)
	r.Record(context.Background(), Event{Action: "  "})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRecorder_Inserts(t *testing.T) {
	db := sqlitetest.Open(t)
	r := NewSQLiteRecorder(db, nil)

	r.Record(context.Background(), Event{
		Action:   RefreshReuseDetected,
		FamilyID: "fam-1",
		Meta:     map[string]any{"revoked": 3},
	})

	var action, family, meta string
	require.NoError(t, db.QueryRow(`SELECT action, family_id, meta FROM audit_log`).Scan(&action, &family, &meta))
	assert.Equal(t, RefreshReuseDetected, action)
	assert.Equal(t, "fam-1", family)
	assert.JSONEq(t, `{"revoked":3}`, meta)
}

func TestLogAndMemoryRecorders(t *testing.T) {
	var buf bytes.Buffer
	mem := &MemoryRecorder{}
	rec := Multi{LogRecorder{Log: slog.New(slog.NewTextHandler(&buf, nil))}, mem, nil, Discard{}}

	rec.Record(context.Background(), Event{Action: PasswordChanged, AccountID: "acct-9"})

	assert.Equal(t, []string{PasswordChanged}, mem.Actions())
	assert.Contains(t, buf.String(), "audit.event")
	assert.Contains(t, buf.String(), "account_id=acct-9")
}
