package reset

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sessiond/cmd/internal/store/sqlitestore"
)

// SQLiteStore implements Store on the single-node SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("reset: nil db")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteResetColumns = `id, account_id, token_hash, expires_at, used, used_at, created_at`

func scanSQLiteReset(row *sql.Row) (Record, error) {
	var (
		r                Record
		expires, created int64
		usedAt           sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.AccountID, &r.Fingerprint, &expires, &r.Used, &usedAt, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrInvalidOrExpired
	}
	if err != nil {
		return Record{}, err
	}
	r.ExpiresAt = sqlitestore.Time(expires)
	r.CreatedAt = sqlitestore.Time(created)
	r.UsedAt = sqlitestore.TimePtr(usedAt)
	return r, nil
}

// InsertCapped counts and inserts inside one immediate transaction.
func (s *SQLiteStore) InsertCapped(ctx context.Context, rec Record, maxActive int, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var active int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM password_reset_tokens WHERE account_id = ? AND used = 0 AND expires_at > ?`,
		rec.AccountID, sqlitestore.Millis(now),
	).Scan(&active); err != nil {
		return err
	}
	if active >= maxActive {
		return ErrTooManyActive
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (id, account_id, token_hash, expires_at, used, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		rec.ID, rec.AccountID, rec.Fingerprint, sqlitestore.Millis(rec.ExpiresAt), sqlitestore.Millis(rec.CreatedAt),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Lookup(ctx context.Context, fingerprint string, now time.Time) (Record, error) {
	return scanSQLiteReset(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteResetColumns+` FROM password_reset_tokens
		  WHERE token_hash = ? AND used = 0 AND expires_at > ?`,
		fingerprint, sqlitestore.Millis(now),
	))
}

func (s *SQLiteStore) Consume(ctx context.Context, fingerprint string, now time.Time) (Record, error) {
	ms := sqlitestore.Millis(now)
	return scanSQLiteReset(s.db.QueryRowContext(ctx,
		`UPDATE password_reset_tokens
		    SET used = 1, used_at = ?
		  WHERE token_hash = ? AND used = 0 AND expires_at > ?
		 RETURNING `+sqliteResetColumns,
		ms, fingerprint, ms,
	))
}

func (s *SQLiteStore) CountActive(ctx context.Context, accountID string, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM password_reset_tokens WHERE account_id = ? AND used = 0 AND expires_at > ?`,
		accountID, sqlitestore.Millis(now),
	).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < ?`, sqlitestore.Millis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
