package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sessiond/cmd/internal/store/sqlitestore"
)

// SQLiteStore implements Store on the single-node SQLite database. The
// database runs on one connection with immediate transactions, so InTx holds
// the write lock from its first statement.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("session: nil db")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteRecordColumns = `id, account_id, token_hash, family_id, expires_at,
	revoked, revoked_at, revocation_reason, replaced_by_id, user_agent, ip, created_at`

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanSQLiteRecord(row *sql.Row) (Record, error) {
	var (
		r                          Record
		expires, created           int64
		revokedAt                  sql.NullInt64
		reason, replacedBy, ua, ip sql.NullString
	)
	err := row.Scan(
		&r.ID,
		&r.AccountID,
		&r.Fingerprint,
		&r.FamilyID,
		&expires,
		&r.Revoked,
		&revokedAt,
		&reason,
		&replacedBy,
		&ua,
		&ip,
		&created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	r.ExpiresAt = sqlitestore.Time(expires)
	r.CreatedAt = sqlitestore.Time(created)
	r.RevokedAt = sqlitestore.TimePtr(revokedAt)
	r.RevocationReason = reason.String
	r.ReplacedByID = replacedBy.String
	r.UserAgent = ua.String
	r.IP = ip.String
	return r, nil
}

func sqliteInsert(ctx context.Context, q sqliteQuerier, rec Record) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (
			id, account_id, token_hash, family_id, expires_at,
			revoked, user_agent, ip, created_at
		) VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		rec.ID, rec.AccountID, rec.Fingerprint, rec.FamilyID, sqlitestore.Millis(rec.ExpiresAt),
		nullString(rec.UserAgent), nullString(rec.IP), sqlitestore.Millis(rec.CreatedAt),
	)
	return err
}

func sqliteRevoke(ctx context.Context, q sqliteQuerier, column, value, reason string, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE refresh_tokens
		    SET revoked = 1, revoked_at = ?, revocation_reason = ?
		  WHERE `+column+` = ? AND revoked = 0`,
		sqlitestore.Millis(now), reason, value,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Insert(ctx context.Context, rec Record) error {
	return sqliteInsert(ctx, s.db, rec)
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (Record, error) {
	return scanSQLiteRecord(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRecordColumns+` FROM refresh_tokens WHERE id = ?`, id))
}

func (s *SQLiteStore) RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error) {
	return sqliteRevoke(ctx, s.db, "family_id", familyID, reason, now)
}

func (s *SQLiteStore) RevokeAllForAccount(ctx context.Context, accountID, reason string, now time.Time) (int64, error) {
	return sqliteRevoke(ctx, s.db, "account_id", accountID, reason, now)
}

func (s *SQLiteStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, sqlitestore.Millis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		if sqlitestore.IsBusy(err) {
			return ErrNotFound
		}
		return err
	}
	if err := fn(ctx, sqliteTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		if sqlitestore.IsBusy(err) || sqlitestore.IsUniqueViolation(err) {
			return ErrNotFound
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		if sqlitestore.IsBusy(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t sqliteTx) GetByFingerprintForUpdate(ctx context.Context, fingerprint string) (Record, error) {
	return scanSQLiteRecord(t.tx.QueryRowContext(ctx,
		`SELECT `+sqliteRecordColumns+` FROM refresh_tokens WHERE token_hash = ?`, fingerprint))
}

func (t sqliteTx) Insert(ctx context.Context, rec Record) error {
	return sqliteInsert(ctx, t.tx, rec)
}

func (t sqliteTx) MarkRotated(ctx context.Context, id, replacedByID string, now time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE refresh_tokens
		    SET revoked = 1, revoked_at = ?, revocation_reason = ?, replaced_by_id = ?
		  WHERE id = ? AND revoked = 0`,
		sqlitestore.Millis(now), ReasonRotated, replacedByID, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}

func (t sqliteTx) RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error) {
	return sqliteRevoke(ctx, t.tx, "family_id", familyID, reason, now)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
