package pgstore

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestCheckSchema(t *testing.T) {
	got, err := CheckSchema("  ")
	if err != nil || got != DefaultSchema {
		t.Fatalf("CheckSchema(blank)=%q,%v", got, err)
	}
	if _, err := CheckSchema(`auth"; DROP TABLE x; --`); err == nil {
		t.Fatalf("expected invalid identifier error")
	}
	if got, _ := CheckSchema("tenant_a"); got != "tenant_a" {
		t.Fatalf("got %q", got)
	}
}

func TestSchemaSQL_QualifiesEveryTable(t *testing.T) {
	sql := SchemaSQL("tenant_a")
	if strings.Contains(sql, "{{schema}}") {
		t.Fatalf("unreplaced placeholder in schema SQL")
	}
	for _, table := range []string{"accounts", "refresh_tokens", "password_reset_tokens", "audit_log"} {
		if !strings.Contains(sql, `"tenant_a".`+table) {
			t.Fatalf("table %s not qualified", table)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	uniq := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505", ConstraintName: "UQ_Accounts_Email"})
	c, ok := IsUniqueViolation(uniq)
	if !ok || c != "uq_accounts_email" {
		t.Fatalf("IsUniqueViolation=%q,%v", c, ok)
	}
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("expected FK violation")
	}
	for _, code := range []string{"40001", "40P01", "55P03"} {
		if !IsSerializationFailure(&pgconn.PgError{Code: code}) {
			t.Fatalf("code %s should be a serialization failure", code)
		}
	}
	if IsSerializationFailure(errors.New("plain")) {
		t.Fatalf("plain errors are not serialization failures")
	}
}
