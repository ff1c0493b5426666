package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"sessiond/cmd/internal/store/pgstore"
)

// ErrConfig is returned for invalid runtime configuration.
var ErrConfig = errors.New("invalid app config")

// StoreKind selects the persistence backend.
type StoreKind string

const (
	StorePostgres StoreKind = "postgres"
	StoreSQLite   StoreKind = "sqlite"
	StoreMemory   StoreKind = "memory"
)

// PermissionSource selects where role permissions come from.
type PermissionSource string

const (
	PermissionsStatic   PermissionSource = "static"
	PermissionsPostgres PermissionSource = "postgres"
)

// Config contains all runtime configuration loaded from environment variables.
// Component settings (tokens, sessions, lockout, reset, notify, rate limits,
// password hashing) are loaded by their own packages.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	Store StoreKind

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32
	// DBApplySchema creates the schema and tables at startup.
	DBApplySchema bool

	SQLitePath string

	// RedisURL enables the shared rate-limit bucket store.
	RedisURL string

	// If true, /readyz returns 503 unless a durable store is configured and reachable.
	ReadinessRequireDB bool

	// If true, ARC_TOKEN_HMAC_KEY must be set (>= 32 bytes) and stored token
	// fingerprints are HMAC-based.
	RequireTokenHMAC bool

	PermissionsSource PermissionSource
	PermissionsFile   string

	// RetentionSchedule is a cron expression for purging dead refresh and reset records.
	RetentionSchedule string
	// RetentionGrace keeps records this long past expiry before purging.
	RetentionGrace time.Duration

	MetricsEnabled bool

	// BootstrapAdminEmail seeds an admin account at startup when it does not exist.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		HTTPAddr:  EnvString("ARC_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("ARC_LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(EnvString("ARC_LOG_FORMAT", "json")),

		ReadHeaderTimeout: EnvDuration("ARC_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("ARC_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("ARC_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("ARC_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("ARC_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    EnvInt("ARC_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:   EnvString("ARC_DATABASE_URL", ""),
		DBSchema:      EnvString("ARC_DB_SCHEMA", pgstore.DefaultSchema),
		DBMaxConns:    EnvInt32("ARC_DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32("ARC_DB_MIN_CONNS", 0),
		DBApplySchema: EnvBool("ARC_DB_APPLY_SCHEMA", false),

		SQLitePath: EnvString("ARC_SQLITE_PATH", "data/sessiond.db"),
		RedisURL:   EnvString("ARC_REDIS_URL", ""),

		ReadinessRequireDB: EnvBool("ARC_READINESS_REQUIRE_DB", false),
		RequireTokenHMAC:   EnvBool("ARC_REQUIRE_TOKEN_HMAC", false),

		PermissionsSource: PermissionSource(strings.ToLower(EnvString("ARC_PERMISSIONS_SOURCE", string(PermissionsStatic)))),
		PermissionsFile:   EnvString("ARC_PERMISSIONS_FILE", ""),

		RetentionSchedule: EnvString("ARC_RETENTION_SCHEDULE", "@every 1h"),
		RetentionGrace:    EnvDuration("ARC_RETENTION_GRACE", 30*24*time.Hour),

		MetricsEnabled: EnvBool("ARC_METRICS_ENABLED", true),

		BootstrapAdminEmail:    EnvString("ARC_BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword: EnvString("ARC_BOOTSTRAP_ADMIN_PASSWORD", ""),
	}

	// An explicit ARC_STORE wins; otherwise a database URL selects Postgres.
	def := StoreMemory
	if cfg.DatabaseURL != "" {
		def = StorePostgres
	}
	cfg.Store = StoreKind(strings.ToLower(EnvString("ARC_STORE", string(def))))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the runtime cannot serve.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: ARC_STORE=postgres requires ARC_DATABASE_URL", ErrConfig)
		}
		if !pgstore.ValidSchema(c.DBSchema) {
			return fmt.Errorf("%w: ARC_DB_SCHEMA %q is not a plain identifier", ErrConfig, c.DBSchema)
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: ARC_STORE=sqlite requires ARC_SQLITE_PATH", ErrConfig)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: ARC_STORE must be postgres, sqlite or memory", ErrConfig)
	}

	switch c.PermissionsSource {
	case PermissionsStatic:
	case PermissionsPostgres:
		if c.Store != StorePostgres {
			return fmt.Errorf("%w: ARC_PERMISSIONS_SOURCE=postgres requires the postgres store", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: ARC_PERMISSIONS_SOURCE must be static or postgres", ErrConfig)
	}

	switch c.LogFormat {
	case "json", "pretty":
	default:
		return fmt.Errorf("%w: ARC_LOG_FORMAT must be json or pretty", ErrConfig)
	}

	if c.RetentionSchedule != "" {
		if _, err := cron.ParseStandard(c.RetentionSchedule); err != nil {
			return fmt.Errorf("%w: ARC_RETENTION_SCHEDULE: %v", ErrConfig, err)
		}
	}

	if (c.BootstrapAdminEmail == "") != (c.BootstrapAdminPassword == "") {
		return fmt.Errorf("%w: ARC_BOOTSTRAP_ADMIN_EMAIL and ARC_BOOTSTRAP_ADMIN_PASSWORD must be set together", ErrConfig)
	}
	return nil
}
