package audit

import (
	"context"
	"database/sql"
	"log/slog"

	"sessiond/cmd/internal/store/sqlitestore"
)

// SQLiteRecorder inserts events into the audit_log table.
type SQLiteRecorder struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSQLiteRecorder(db *sql.DB, log *slog.Logger) *SQLiteRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &SQLiteRecorder{db: db, log: log}
}

func (r *SQLiteRecorder) Record(ctx context.Context, ev Event) {
	ev, meta, ok := prepare(ev)
	if !ok {
		return
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (action, account_id, family_id, ip, user_agent, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Action, trimOrNil(ev.AccountID), trimOrNil(ev.FamilyID),
		trimOrNil(ev.IP), trimOrNil(ev.UserAgent), meta, sqlitestore.Millis(ev.At))
	if err != nil {
		r.log.Error("audit.insert.fail", "err", err, "action", ev.Action)
	}
}
