package app

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"ARC_STORE", "ARC_DATABASE_URL", "ARC_LOG_FORMAT", "ARC_PERMISSIONS_SOURCE", "ARC_RETENTION_SCHEDULE", "ARC_BOOTSTRAP_ADMIN_EMAIL", "ARC_BOOTSTRAP_ADMIN_PASSWORD"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store != StoreMemory {
		t.Fatalf("Store=%q want memory", cfg.Store)
	}
	if cfg.DBSchema != "auth" || cfg.RetentionGrace != 30*24*time.Hour || !cfg.MetricsEnabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_DatabaseURLSelectsPostgres(t *testing.T) {
	t.Setenv("ARC_STORE", "")
	t.Setenv("ARC_DATABASE_URL", "postgres://localhost/sessiond")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store != StorePostgres {
		t.Fatalf("Store=%q want postgres", cfg.Store)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	base := Config{Store: StoreMemory, PermissionsSource: PermissionsStatic, LogFormat: "json", RetentionSchedule: "@every 1h"}

	cases := []struct {
		name string
		mod  func(*Config)
		ok   bool
	}{
		{name: "base", mod: func(*Config) {}, ok: true},
		{name: "postgres without url", mod: func(c *Config) { c.Store = StorePostgres; c.DBSchema = "auth" }},
		{name: "postgres bad schema", mod: func(c *Config) { c.Store = StorePostgres; c.DatabaseURL = "postgres://x"; c.DBSchema = "a;drop" }},
		{name: "sqlite without path", mod: func(c *Config) { c.Store = StoreSQLite }},
		{name: "unknown store", mod: func(c *Config) { c.Store = "mongo" }},
		{name: "postgres permissions on memory", mod: func(c *Config) { c.PermissionsSource = PermissionsPostgres }},
		{name: "bad log format", mod: func(c *Config) { c.LogFormat = "xml" }},
		{name: "bad schedule", mod: func(c *Config) { c.RetentionSchedule = "every tuesday" }},
		{name: "cron schedule", mod: func(c *Config) { c.RetentionSchedule = "15 3 * * *" }, ok: true},
		{name: "half bootstrap", mod: func(c *Config) { c.BootstrapAdminEmail = "a@b.co" }},
	}
	for _, tc := range cases {
		cfg := base
		tc.mod(&cfg)
		err := cfg.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrConfig) {
			t.Fatalf("%s: expected ErrConfig, got %v", tc.name, err)
		}
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SESSIOND_TEST_INT", "-3")
	t.Setenv("SESSIOND_TEST_DUR", "90s")
	t.Setenv("SESSIOND_TEST_BOOL", "nope")
	t.Setenv("SESSIOND_TEST_I32", "7")

	if got := EnvInt("SESSIOND_TEST_INT", 5); got != 5 {
		t.Fatalf("EnvInt negative should fall back, got %d", got)
	}
	if got := EnvDuration("SESSIOND_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration=%v", got)
	}
	if got := EnvBool("SESSIOND_TEST_BOOL", true); !got {
		t.Fatalf("EnvBool invalid should fall back")
	}
	if got := EnvInt32("SESSIOND_TEST_I32", 0); got != 7 {
		t.Fatalf("EnvInt32=%d", got)
	}
	if got := EnvString("SESSIOND_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString=%q", got)
	}
}
