// Package identity owns the Account entity and its persistence.
//
// It provides the account repository used by the session orchestrator
// (Postgres, SQLite and in-memory backends), email normalization and
// masking, typed operation errors and ULID identifiers.
//
// The durable failure counter and lock timestamp live here, next to the
// account, so a restart never silently unlocks an account.
package identity
