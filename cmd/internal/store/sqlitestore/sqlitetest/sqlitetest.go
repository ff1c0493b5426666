// Package sqlitetest opens throwaway SQLite databases for tests.
package sqlitetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"sessiond/cmd/internal/store/sqlitestore"
)

// Open returns a migrated database in a temp dir, closed on cleanup.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlitestore.Open(context.Background(), sqlitestore.Config{
		Path: filepath.Join(t.TempDir(), "sessiond-test.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
