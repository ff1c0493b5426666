package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/audit"
	"sessiond/cmd/internal/auth/reset"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/internal/store/pgstore"
	"sessiond/cmd/internal/store/sqlitestore"
)

// backend bundles the stores for the configured StoreKind and owns the
// underlying connection (pool or SQLite handle).
type backend struct {
	kind StoreKind

	accounts identity.Repository
	sessions session.Store
	resets   reset.Store
	audit    audit.Recorder

	pool   *pgxpool.Pool
	sqlite *sql.DB
}

func openBackend(ctx context.Context, cfg Config, log Logger) (*backend, error) {
	switch cfg.Store {
	case StorePostgres:
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b, err := postgresBackend(ctx, cfg, pool, log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("store.enabled", "kind", cfg.Store, "schema", cfg.DBSchema)
		return b, nil

	case StoreSQLite:
		db, err := sqlitestore.Open(ctx, sqlitestore.Config{Path: cfg.SQLitePath})
		if err != nil {
			return nil, err
		}
		b, err := sqliteBackend(db, log)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("store.enabled", "kind", cfg.Store, "path", cfg.SQLitePath)
		return b, nil

	default:
		log.Warn("store.enabled", "kind", StoreMemory, "note", "state is lost on restart")
		return &backend{
			kind:     StoreMemory,
			accounts: identity.NewMemoryStore(),
			sessions: session.NewMemoryStore(),
			resets:   reset.NewMemoryStore(),
			audit:    audit.LogRecorder{Log: log},
		}, nil
	}
}

func postgresBackend(ctx context.Context, cfg Config, pool *pgxpool.Pool, log Logger) (*backend, error) {
	if cfg.DBApplySchema {
		if err := pgstore.ApplySchema(ctx, pool, cfg.DBSchema); err != nil {
			return nil, err
		}
	}
	accounts, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewPostgresStore(pool, session.WithSchema(cfg.DBSchema))
	if err != nil {
		return nil, err
	}
	resets, err := reset.NewPostgresStore(pool, reset.WithSchema(cfg.DBSchema))
	if err != nil {
		return nil, err
	}
	rec, err := audit.NewPostgresRecorder(pool, cfg.DBSchema, log)
	if err != nil {
		return nil, err
	}
	return &backend{
		kind:     StorePostgres,
		accounts: accounts,
		sessions: sessions,
		resets:   resets,
		audit:    rec,
		pool:     pool,
	}, nil
}

func sqliteBackend(db *sql.DB, log Logger) (*backend, error) {
	accounts, err := identity.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	resets, err := reset.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return &backend{
		kind:     StoreSQLite,
		accounts: accounts,
		sessions: sessions,
		resets:   resets,
		audit:    audit.NewSQLiteRecorder(db, log),
		sqlite:   db,
	}, nil
}

// Durable reports whether state survives a restart.
func (b *backend) Durable() bool { return b.kind != StoreMemory }

// Ping checks the underlying connection, if any.
func (b *backend) Ping(ctx context.Context, timeout time.Duration) error {
	switch {
	case b.pool != nil:
		return PingDB(ctx, b.pool, timeout)
	case b.sqlite != nil:
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return b.sqlite.PingContext(ctx)
	default:
		return nil
	}
}

func (b *backend) Close() error {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.sqlite != nil {
		if err := b.sqlite.Close(); err != nil {
			return fmt.Errorf("sqlite close: %w", err)
		}
	}
	return nil
}

// NewDBPool builds a pgxpool and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
