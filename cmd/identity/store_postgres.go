package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"sessiond/cmd/identity/ids"
	"sessiond/cmd/internal/store/pgstore"
)

// PostgresStore implements Repository over PostgreSQL.
//
// The pool is owned by the caller. Failure counting is a single
// UPDATE ... RETURNING so concurrent failures never lose an increment.
type PostgresStore struct {
	db       pgstore.DB
	accounts string
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
		s.accounts = pgstore.Ident(sc, "accounts")
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db pgstore.DB, opts ...PostgresOption) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("identity: nil db")
	}
	st := &PostgresStore{
		db:       db,
		accounts: pgstore.Ident(pgstore.DefaultSchema, "accounts"),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

const accountColumns = `id, email, password_hash, role, failed_attempts, locked_until,
	force_password_change, active, last_login_at, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.FailedAttempts,
		&a.LockedUntil,
		&a.ForcePasswordChange,
		&a.Active,
		&a.LastLoginAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (s *PostgresStore) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.Create"

	in, err := prepareCreate(op, in)
	if err != nil {
		return Account{}, err
	}
	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Account{}, err
	}

	a, err := scanAccount(s.db.QueryRow(ctx,
		`INSERT INTO `+s.accounts+` (
		     id, email, password_hash, role, force_password_change, active, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, true, $6, $6)
		 RETURNING `+accountColumns,
		id, in.Email, in.PasswordHash, in.Role, in.ForcePasswordChange, in.Now,
	))
	if err != nil {
		if c, ok := pgstore.IsUniqueViolation(err); ok {
			field := "id"
			if strings.Contains(c, "email") {
				field = "email"
			}
			return Account{}, conflict(op, field)
		}
		return Account{}, err
	}
	return a, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	const op = "identity.FindByEmail"

	email = NormalizeEmail(email)
	if email == "" {
		return Account{}, invalid(op, "email")
	}
	a, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+s.accounts+` WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, notFound(op)
	}
	return a, err
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.FindByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, invalid(op, "id")
	}
	a, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+s.accounts+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, notFound(op)
	}
	return a, err
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, id, passwordHash string, clearForceChange bool, now time.Time) error {
	const op = "identity.UpdatePassword"

	if passwordHash == "" {
		return invalid(op, "password_hash")
	}
	ct, err := s.db.Exec(ctx,
		`UPDATE `+s.accounts+`
		    SET password_hash = $2,
		        force_password_change = CASE WHEN $3 THEN false ELSE force_password_change END,
		        updated_at = $4
		  WHERE id = $1`,
		id, passwordHash, clearForceChange, now,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return notFound(op)
	}
	return nil
}

func (s *PostgresStore) RecordFailedLogin(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (FailureState, error) {
	const op = "identity.RecordFailedLogin"

	if err := checkThreshold(op, threshold, lockFor); err != nil {
		return FailureState{}, err
	}

	// The CTE row-locks the account and keeps the pre-update lock so the
	// statement can report whether this write is the one that locked it.
	var out FailureState
	err := s.db.QueryRow(ctx,
		`WITH prev AS (
		    SELECT id, locked_until FROM `+s.accounts+` WHERE id = $1 FOR UPDATE
		)
		UPDATE `+s.accounts+` AS a
		    SET failed_attempts = a.failed_attempts + 1,
		        locked_until = CASE
		            WHEN a.failed_attempts + 1 >= $2 AND (a.locked_until IS NULL OR a.locked_until <= $4)
		            THEN $3
		            ELSE a.locked_until
		        END,
		        updated_at = $4
		   FROM prev
		  WHERE a.id = prev.id
		 RETURNING a.failed_attempts, a.locked_until,
		           (a.failed_attempts >= $2 AND (prev.locked_until IS NULL OR prev.locked_until <= $4))`,
		id, threshold, now.Add(lockFor), now,
	).Scan(&out.Attempts, &out.LockedUntil, &out.JustLocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return FailureState{}, notFound(op)
	}
	if err != nil {
		return FailureState{}, err
	}
	return out, nil
}

func (s *PostgresStore) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	const op = "identity.RecordSuccessfulLogin"

	ct, err := s.db.Exec(ctx,
		`UPDATE `+s.accounts+`
		    SET failed_attempts = 0,
		        locked_until = NULL,
		        last_login_at = $2,
		        updated_at = $2
		  WHERE id = $1`,
		id, now,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return notFound(op)
	}
	return nil
}
