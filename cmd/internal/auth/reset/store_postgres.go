package reset

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"sessiond/cmd/internal/store/pgstore"
)

// PostgresStore implements Store over <schema>.password_reset_tokens.
type PostgresStore struct {
	db    pgstore.DB
	table string
}

type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default pgstore.DefaultSchema).
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		sc, err := pgstore.CheckSchema(schema)
		if err != nil {
			return err
		}
		s.table = pgstore.Ident(sc, "password_reset_tokens")
		return nil
	}
}

func NewPostgresStore(db pgstore.DB, opts ...PostgresOption) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("reset: nil db")
	}
	s := &PostgresStore{db: db, table: pgstore.Ident(pgstore.DefaultSchema, "password_reset_tokens")}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

const resetColumns = `id, account_id, token_hash, expires_at, used, used_at, created_at`

func scanReset(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.AccountID, &r.Fingerprint, &r.ExpiresAt, &r.Used, &r.UsedAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrInvalidOrExpired
	}
	return r, err
}

// InsertCapped serializes issuers per account with a transaction-scoped
// advisory lock, then counts and inserts.
func (s *PostgresStore) InsertCapped(ctx context.Context, rec Record, maxActive int, now time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}

	err = func() error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('password_reset:' || $1))`, rec.AccountID); err != nil {
			return err
		}
		var active int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM `+s.table+` WHERE account_id = $1 AND used = false AND expires_at > $2`,
			rec.AccountID, now,
		).Scan(&active); err != nil {
			return err
		}
		if active >= maxActive {
			return ErrTooManyActive
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO `+s.table+` (id, account_id, token_hash, expires_at, used, used_at, created_at)
			 VALUES ($1, $2, $3, $4, false, NULL, $5)`,
			rec.ID, rec.AccountID, rec.Fingerprint, rec.ExpiresAt, rec.CreatedAt,
		)
		return err
	}()
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Lookup(ctx context.Context, fingerprint string, now time.Time) (Record, error) {
	return scanReset(s.db.QueryRow(ctx,
		`SELECT `+resetColumns+` FROM `+s.table+`
		  WHERE token_hash = $1 AND used = false AND expires_at > $2`,
		fingerprint, now,
	))
}

func (s *PostgresStore) Consume(ctx context.Context, fingerprint string, now time.Time) (Record, error) {
	return scanReset(s.db.QueryRow(ctx,
		`UPDATE `+s.table+`
		    SET used = true, used_at = $2
		  WHERE token_hash = $1 AND used = false AND expires_at > $2
		 RETURNING `+resetColumns,
		fingerprint, now,
	))
}

func (s *PostgresStore) CountActive(ctx context.Context, accountID string, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM `+s.table+` WHERE account_id = $1 AND used = false AND expires_at > $2`,
		accountID, now,
	).Scan(&n)
	return n, err
}

func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := s.db.Exec(ctx, `DELETE FROM `+s.table+` WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
