package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"sessiond/cmd/internal/store/pgstore"
)

// PostgresStore implements Store over <schema>.refresh_tokens.
type PostgresStore struct {
	db    pgstore.DB
	table string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default pgstore.DefaultSchema).
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		sc, err := pgstore.CheckSchema(schema)
		if err != nil {
			return err
		}
		s.table = pgstore.Ident(sc, "refresh_tokens")
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(db pgstore.DB, opts ...PostgresOption) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("session: nil db")
	}
	s := &PostgresStore{db: db, table: pgstore.Ident(pgstore.DefaultSchema, "refresh_tokens")}
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

const recordColumns = `id, account_id, token_hash, family_id::text, expires_at,
	revoked, revoked_at, revocation_reason, replaced_by_id, user_agent, ip, created_at`

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r                          Record
		reason, replacedBy, ua, ip *string
	)
	err := row.Scan(
		&r.ID,
		&r.AccountID,
		&r.Fingerprint,
		&r.FamilyID,
		&r.ExpiresAt,
		&r.Revoked,
		&r.RevokedAt,
		&reason,
		&replacedBy,
		&ua,
		&ip,
		&r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	r.RevocationReason = deref(reason)
	r.ReplacedByID = deref(replacedBy)
	r.UserAgent = deref(ua)
	r.IP = deref(ip)
	return r, nil
}

func (s *PostgresStore) insertSQL() string {
	return `INSERT INTO ` + s.table + ` (
			id, account_id, token_hash, family_id, expires_at,
			revoked, revoked_at, revocation_reason, replaced_by_id,
			user_agent, ip, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			false, NULL, NULL, NULL,
			$6, $7, $8
		)`
}

func insertArgs(rec Record) []any {
	return []any{
		rec.ID, rec.AccountID, rec.Fingerprint, rec.FamilyID, rec.ExpiresAt,
		nullIfEmpty(rec.UserAgent), nullIfEmpty(rec.IP), rec.CreatedAt,
	}
}

func (s *PostgresStore) revokeSQL(column string) string {
	return `UPDATE ` + s.table + `
		SET revoked = true,
		    revoked_at = $2,
		    revocation_reason = $3
		WHERE ` + column + ` = $1 AND revoked = false`
}

// Insert adds a new record.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.Exec(ctx, s.insertSQL(), insertArgs(rec)...)
	return err
}

// GetByID loads a record by ID.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Record, error) {
	return scanRecord(s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM `+s.table+` WHERE id = $1`, id))
}

// RevokeFamily revokes every unrevoked record in familyID.
func (s *PostgresStore) RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error) {
	ct, err := s.db.Exec(ctx, s.revokeSQL("family_id"), familyID, now, reason)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// RevokeAllForAccount revokes every unrevoked record for accountID.
func (s *PostgresStore) RevokeAllForAccount(ctx context.Context, accountID, reason string, now time.Time) (int64, error) {
	ct, err := s.db.Exec(ctx, s.revokeSQL("account_id"), accountID, now, reason)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// Purge deletes records that expired before cutoff.
func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := s.db.Exec(ctx, `DELETE FROM `+s.table+` WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// InTx runs fn in one transaction. Serialization failures, lock timeouts and
// fingerprint collisions fail closed as ErrNotFound.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, &pgTx{s: s, tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return failClosed(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return failClosed(err)
	}
	return nil
}

func failClosed(err error) error {
	if pgstore.IsSerializationFailure(err) {
		return ErrNotFound
	}
	if _, ok := pgstore.IsUniqueViolation(err); ok {
		return ErrNotFound
	}
	return err
}

type pgTx struct {
	s  *PostgresStore
	tx pgx.Tx
}

func (t *pgTx) GetByFingerprintForUpdate(ctx context.Context, fingerprint string) (Record, error) {
	return scanRecord(t.tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM `+t.s.table+` WHERE token_hash = $1 FOR UPDATE`,
		fingerprint,
	))
}

func (t *pgTx) Insert(ctx context.Context, rec Record) error {
	_, err := t.tx.Exec(ctx, t.s.insertSQL(), insertArgs(rec)...)
	return err
}

func (t *pgTx) MarkRotated(ctx context.Context, id, replacedByID string, now time.Time) error {
	ct, err := t.tx.Exec(ctx, `UPDATE `+t.s.table+`
		SET revoked = true,
		    revoked_at = $2,
		    revocation_reason = '`+ReasonRotated+`',
		    replaced_by_id = $3
		WHERE id = $1 AND revoked = false`,
		id, now, replacedByID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error) {
	ct, err := t.tx.Exec(ctx, t.s.revokeSQL("family_id"), familyID, now, reason)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
