package audit

import (
	"context"
	"errors"
	"log/slog"

	"sessiond/cmd/internal/store/pgstore"
)

// PostgresRecorder inserts events into <schema>.audit_log.
type PostgresRecorder struct {
	db    pgstore.DB
	log   *slog.Logger
	query string
}

func NewPostgresRecorder(db pgstore.DB, schema string, log *slog.Logger) (*PostgresRecorder, error) {
	if db == nil {
		return nil, errors.New("audit: nil db")
	}
	sc, err := pgstore.CheckSchema(schema)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	q := `INSERT INTO ` + pgstore.Ident(sc, "audit_log") + ` (
			action, account_id, family_id, ip, user_agent, meta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`
	return &PostgresRecorder{db: db, log: log, query: q}, nil
}

func (r *PostgresRecorder) Record(ctx context.Context, ev Event) {
	ev, meta, ok := prepare(ev)
	if !ok {
		return
	}
	_, err := r.db.Exec(ctx, r.query,
		ev.Action, trimOrNil(ev.AccountID), trimOrNil(ev.FamilyID),
		trimOrNil(ev.IP), trimOrNil(ev.UserAgent), meta, ev.At)
	if err != nil {
		r.log.Error("audit.insert.fail", "err", err, "action", ev.Action)
	}
}
