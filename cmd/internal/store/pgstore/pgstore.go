// Package pgstore holds the Postgres plumbing shared by the account, session,
// reset, permission and audit stores.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultSchema is used when no schema is configured.
const DefaultSchema = "auth"

// DB is the subset of *pgxpool.Pool the stores use. pgxmock pools satisfy it too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidSchema reports whether s is a plain Postgres identifier.
func ValidSchema(s string) bool {
	return identRe.MatchString(s)
}

// CheckSchema trims and validates a schema name, defaulting to DefaultSchema.
func CheckSchema(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSchema, nil
	}
	if !ValidSchema(s) {
		return "", fmt.Errorf("pgstore: invalid schema identifier %q", s)
	}
	return s, nil
}

// Ident quotes a schema-qualified identifier: "schema"."name".
func Ident(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

//go:embed schema.sql
var schemaSQL string

// SchemaSQL returns the DDL for every table, qualified with schema.
func SchemaSQL(schema string) string {
	return strings.ReplaceAll(schemaSQL, "{{schema}}", pgx.Identifier{schema}.Sanitize())
}

// ApplySchema creates the schema and its tables if they do not exist.
func ApplySchema(ctx context.Context, db DB, schema string) error {
	if !ValidSchema(schema) {
		return fmt.Errorf("pgstore: invalid schema identifier %q", schema)
	}
	if _, err := db.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("pgstore: create schema: %w", err)
	}
	if _, err := db.Exec(ctx, SchemaSQL(schema)); err != nil {
		return fmt.Errorf("pgstore: apply schema: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	return pgErr.Code
}

// IsUniqueViolation reports a 23505 error and the violated constraint.
func IsUniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(pgErr.ConstraintName)), true
}

// IsForeignKeyViolation reports a 23503 error.
func IsForeignKeyViolation(err error) bool { return pgCode(err) == "23503" }

// IsSerializationFailure reports errors that mean a concurrent writer won:
// serialization_failure, deadlock_detected and lock_not_available.
func IsSerializationFailure(err error) bool {
	switch pgCode(err) {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}
