package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"sessiond/cmd/identity/ids"
	"sessiond/cmd/internal/store/sqlitestore"
)

// SQLiteStore implements Repository on the single-node SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened, migrated database (see sqlitestore.Open).
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("identity: nil db")
	}
	return &SQLiteStore{db: db}, nil
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAccount(row sqliteScanner) (Account, error) {
	var (
		a                   Account
		lockedUntil, lastAt sql.NullInt64
		created, updated    int64
	)
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.FailedAttempts,
		&lockedUntil,
		&a.ForcePasswordChange,
		&a.Active,
		&lastAt,
		&created,
		&updated,
	)
	if err != nil {
		return Account{}, err
	}
	a.LockedUntil = sqlitestore.TimePtr(lockedUntil)
	a.LastLoginAt = sqlitestore.TimePtr(lastAt)
	a.CreatedAt = sqlitestore.Time(created)
	a.UpdatedAt = sqlitestore.Time(updated)
	return a, nil
}

func (s *SQLiteStore) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.Create"

	in, err := prepareCreate(op, in)
	if err != nil {
		return Account{}, err
	}
	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Account{}, err
	}

	now := sqlitestore.Millis(in.Now)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, role, force_password_change, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		id, in.Email, in.PasswordHash, in.Role, in.ForcePasswordChange, now, now,
	)
	if err != nil {
		if sqlitestore.IsUniqueViolation(err) {
			return Account{}, conflict(op, "email")
		}
		return Account{}, err
	}
	return s.FindByID(ctx, id)
}

func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	const op = "identity.FindByEmail"

	email = NormalizeEmail(email)
	if email == "" {
		return Account{}, invalid(op, "email")
	}
	a, err := scanSQLiteAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, notFound(op)
	}
	return a, err
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.FindByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, invalid(op, "id")
	}
	a, err := scanSQLiteAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, notFound(op)
	}
	return a, err
}

func (s *SQLiteStore) UpdatePassword(ctx context.Context, id, passwordHash string, clearForceChange bool, now time.Time) error {
	const op = "identity.UpdatePassword"

	if passwordHash == "" {
		return invalid(op, "password_hash")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts
		    SET password_hash = ?,
		        force_password_change = CASE WHEN ? THEN 0 ELSE force_password_change END,
		        updated_at = ?
		  WHERE id = ?`,
		passwordHash, clearForceChange, sqlitestore.Millis(now), id,
	)
	return affectedOne(op, res, err)
}

func (s *SQLiteStore) RecordFailedLogin(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (FailureState, error) {
	const op = "identity.RecordFailedLogin"

	if err := checkThreshold(op, threshold, lockFor); err != nil {
		return FailureState{}, err
	}

	nowMS := sqlitestore.Millis(now)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return FailureState{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var prev sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT locked_until FROM accounts WHERE id = ?`, id).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return FailureState{}, notFound(op)
	}
	if err != nil {
		return FailureState{}, err
	}

	var (
		out         FailureState
		lockedUntil sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`UPDATE accounts
		    SET failed_attempts = failed_attempts + 1,
		        locked_until = CASE
		            WHEN failed_attempts + 1 >= ? AND (locked_until IS NULL OR locked_until <= ?)
		            THEN ?
		            ELSE locked_until
		        END,
		        updated_at = ?
		  WHERE id = ?
		 RETURNING failed_attempts, locked_until`,
		threshold, nowMS, sqlitestore.Millis(now.Add(lockFor)), nowMS, id,
	).Scan(&out.Attempts, &lockedUntil)
	if err != nil {
		return FailureState{}, err
	}
	if err := tx.Commit(); err != nil {
		return FailureState{}, err
	}
	out.LockedUntil = sqlitestore.TimePtr(lockedUntil)
	out.JustLocked = out.Attempts >= threshold && (!prev.Valid || prev.Int64 <= nowMS)
	return out, nil
}

func (s *SQLiteStore) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	const op = "identity.RecordSuccessfulLogin"

	ms := sqlitestore.Millis(now)
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts
		    SET failed_attempts = 0, locked_until = NULL, last_login_at = ?, updated_at = ?
		  WHERE id = ?`,
		ms, ms, id,
	)
	return affectedOne(op, res, err)
}

// SetActive toggles the active flag.
func (s *SQLiteStore) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET active = ?, updated_at = ? WHERE id = ?`,
		active, sqlitestore.Millis(now), id,
	)
	return affectedOne("identity.SetActive", res, err)
}

func affectedOne(op string, res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(op)
	}
	return nil
}
