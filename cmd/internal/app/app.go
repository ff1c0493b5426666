// Package app wires the sessiond runtime: config, logging, stores, the auth
// service and its HTTP surface, metrics and the retention job.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sessiond/cmd/internal/auth"
	authapi "sessiond/cmd/internal/auth/api"
	"sessiond/cmd/internal/auth/lockout"
	"sessiond/cmd/internal/auth/notify"
	"sessiond/cmd/internal/auth/permissions"
	"sessiond/cmd/internal/auth/ratelimit"
	"sessiond/cmd/internal/auth/reset"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/internal/auth/tokens"
	"sessiond/cmd/security/password"
)

// App is the sessiond runtime.
type App struct {
	cfg Config
	log Logger

	backend *backend
	redis   *redis.Client

	registry *prometheus.Registry

	// static is set when permissions come from a file that can be watched.
	static *permissions.StaticCatalog

	svc       *auth.Service
	api       *authapi.Handler
	retention *retention
}

// New constructs a fully wired App. Every component loads its own settings
// from the environment; any invalid security setting fails startup.
func New(ctx context.Context, cfg Config, log Logger) (_ *App, err error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	fp, err := securityFingerprinter(cfg, log)
	if err != nil {
		return nil, err
	}

	hasherCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(hasherCfg)
	if err != nil {
		return nil, err
	}
	tokCfg, err := tokens.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	tok, err := tokens.NewManager(tokCfg)
	if err != nil {
		return nil, err
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	lockCfg, err := lockout.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	resetCfg, err := reset.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	notifySettings, err := notify.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	rlCfg, err := ratelimit.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	authCfg, err := auth.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	var reg prometheus.Registerer
	if cfg.MetricsEnabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reg = a.registry
	}

	if a.backend, err = openBackend(ctx, cfg, log); err != nil {
		return nil, err
	}

	buckets, err := a.bucketStore(ctx, rlCfg)
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimit.New(buckets, rlCfg.Policies, ratelimit.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	notifySettings.Notifier.ResetTokenTTL = resetCfg.TTL
	notifySettings.Notifier.LockoutDuration = lockCfg.LockDuration
	sender, err := notifySettings.BuildSender(log)
	if err != nil {
		return nil, err
	}
	notifier := notify.New(notifySettings.Notifier, sender, log)

	tracker, err := lockout.New(lockCfg, a.backend.accounts, notifier, log)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewService(sessCfg, a.backend.sessions, fp, log)
	if err != nil {
		return nil, err
	}
	resets, err := reset.NewService(resetCfg, a.backend.resets, fp)
	if err != nil {
		return nil, err
	}
	catalog, err := a.permissionCatalog()
	if err != nil {
		return nil, err
	}

	a.svc, err = auth.NewService(authCfg, auth.Deps{
		Accounts:    a.backend.accounts,
		Hasher:      hasher,
		Limiter:     limiter,
		Lockout:     tracker,
		Sessions:    sessions,
		Resets:      resets,
		Tokens:      tok,
		Permissions: catalog,
		Notifier:    notifier,
		Audit:       a.backend.audit,
		Log:         log,
		Registerer:  reg,
	})
	if err != nil {
		return nil, err
	}

	if a.api, err = authapi.NewHandler(log, a.svc, authapi.LoadConfigFromEnv()); err != nil {
		return nil, err
	}

	a.retention = newRetention(cfg.RetentionGrace, sessions, resets, log)

	if err := bootstrapAdmin(ctx, a.backend.accounts, hasher, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword, time.Now(), log); err != nil {
		return nil, err
	}

	log.Info("app.ready",
		"store", a.backend.kind,
		"token_format", tokCfg.Format,
		"redis", a.redis != nil,
		"permissions", cfg.PermissionsSource,
		"metrics", cfg.MetricsEnabled,
	)
	return a, nil
}

func (a *App) bucketStore(ctx context.Context, cfg ratelimit.Config) (ratelimit.BucketStore, error) {
	if a.cfg.RedisURL == "" {
		return ratelimit.NewMemoryStore(cfg.MaxKeys)
	}
	client, err := newRedisClient(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.redis = client
	return ratelimit.NewRedisStore(client, cfg.RedisPrefix)
}

func (a *App) permissionCatalog() (permissions.Catalog, error) {
	switch a.cfg.PermissionsSource {
	case PermissionsPostgres:
		if a.backend.pool == nil {
			return nil, fmt.Errorf("%w: postgres permissions need a postgres pool", ErrConfig)
		}
		return permissions.NewPostgresCatalog(a.backend.pool, a.cfg.DBSchema)
	default:
		if a.cfg.PermissionsFile == "" {
			return permissions.NewStaticCatalog(permissions.DefaultRoles), nil
		}
		c, err := permissions.LoadStaticCatalog(a.cfg.PermissionsFile)
		if err != nil {
			return nil, err
		}
		a.static = c
		return c, nil
	}
}

// Ready reports whether every configured dependency answers.
func (a *App) Ready(ctx context.Context) error {
	if a.cfg.ReadinessRequireDB && !a.backend.Durable() {
		return errors.New("no durable store configured")
	}
	if err := a.backend.Ping(ctx, 2*time.Second); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if a.redis != nil {
		if err := pingRedis(ctx, a.redis, 2*time.Second); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.log.Error("store.close.fail", "err", err)
		}
	}
}
