package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/audit"
	"sessiond/cmd/internal/auth/lockout"
	"sessiond/cmd/internal/auth/notify"
	"sessiond/cmd/internal/auth/permissions"
	"sessiond/cmd/internal/auth/ratelimit"
	"sessiond/cmd/internal/auth/reset"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/internal/auth/tokens"
)

// PasswordHasher is satisfied by *password.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, encodedHash string) (bool, error)
	DummyVerify(ctx context.Context, password string)
	NeedsRehash(encodedHash string) bool
	Validate(password string) error
}

// Limiter is satisfied by *ratelimit.Limiter.
type Limiter interface {
	TryConsume(ctx context.Context, op ratelimit.Operation, key string) (bool, error)
}

// ResetNotifier delivers reset links. Satisfied by *notify.Notifier.
type ResetNotifier interface {
	PasswordReset(ctx context.Context, to, rawToken string, mode notify.Mode) error
}

// Deps are the collaborators a Service is built from. Audit, Log, Registerer
// and Clock are optional.
type Deps struct {
	Accounts    identity.Repository
	Hasher      PasswordHasher
	Limiter     Limiter
	Lockout     *lockout.Tracker
	Sessions    *session.Service
	Resets      *reset.Service
	Tokens      tokens.Manager
	Permissions permissions.Catalog
	Notifier    ResetNotifier

	Audit      audit.Recorder
	Log        *slog.Logger
	Registerer prometheus.Registerer
	Clock      func() time.Time
}

const auditTimeout = 5 * time.Second

type Service struct {
	cfg Config

	accounts    identity.Repository
	hasher      PasswordHasher
	limiter     Limiter
	lockout     *lockout.Tracker
	sessions    *session.Service
	resets      *reset.Service
	tokens      tokens.Manager
	permissions permissions.Catalog
	notifier    ResetNotifier
	audit       audit.Recorder

	log     *slog.Logger
	metrics *metrics
	now     func() time.Time
}

func NewService(cfg Config, d Deps) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case d.Accounts == nil:
		return nil, fmt.Errorf("%w: accounts repository is required", ErrConfig)
	case d.Hasher == nil:
		return nil, fmt.Errorf("%w: password hasher is required", ErrConfig)
	case d.Limiter == nil:
		return nil, fmt.Errorf("%w: rate limiter is required", ErrConfig)
	case d.Lockout == nil:
		return nil, fmt.Errorf("%w: lockout tracker is required", ErrConfig)
	case d.Sessions == nil:
		return nil, fmt.Errorf("%w: session service is required", ErrConfig)
	case d.Resets == nil:
		return nil, fmt.Errorf("%w: reset service is required", ErrConfig)
	case d.Tokens == nil:
		return nil, fmt.Errorf("%w: token manager is required", ErrConfig)
	case d.Permissions == nil:
		return nil, fmt.Errorf("%w: permission catalog is required", ErrConfig)
	case d.Notifier == nil:
		return nil, fmt.Errorf("%w: notifier is required", ErrConfig)
	}

	s := &Service{
		cfg:         cfg,
		accounts:    d.Accounts,
		hasher:      d.Hasher,
		limiter:     d.Limiter,
		lockout:     d.Lockout,
		sessions:    d.Sessions,
		resets:      d.Resets,
		tokens:      d.Tokens,
		permissions: d.Permissions,
		notifier:    d.Notifier,
		audit:       d.Audit,
		log:         d.Log,
		metrics:     newMetrics(d.Registerer),
		now:         d.Clock,
	}
	if s.audit == nil {
		s.audit = audit.Discard{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

// AccessTokenTTL is the lifetime of minted access tokens.
func (s *Service) AccessTokenTTL() time.Duration { return s.tokens.TTL() }

// RefreshTokenTTL is the lifetime of issued refresh tokens.
func (s *Service) RefreshTokenTTL() time.Duration { return s.sessions.TTL() }

// VerifyAccessToken checks a bearer token. Every failure is ErrInvalidToken.
func (s *Service) VerifyAccessToken(raw string) (tokens.Claims, error) {
	c, err := s.tokens.Verify(raw, s.now())
	if err != nil {
		return tokens.Claims{}, newError("auth.verify", ErrInvalidToken, nil)
	}
	return c, nil
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// verifyPassword never reports a timeout or a corrupt hash as a mismatch.
func (s *Service) verifyPassword(ctx context.Context, password, hash string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HashTimeout)
	defer cancel()
	start := time.Now()
	ok, err := s.hasher.Verify(ctx, password, hash)
	s.metrics.verified(time.Since(start))
	return ok, err
}

func (s *Service) dummyVerify(ctx context.Context, password string) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HashTimeout)
	defer cancel()
	s.hasher.DummyVerify(ctx, password)
}

func (s *Service) hashPassword(ctx context.Context, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HashTimeout)
	defer cancel()
	return s.hasher.Hash(ctx, password)
}

// mint resolves current permissions and signs an access token for a.
func (s *Service) mint(ctx context.Context, a identity.Account, now time.Time) (string, time.Time, error) {
	perms, err := s.permissions.EffectivePermissions(ctx, a.ID, a.Role)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("permissions: %w", err)
	}
	return s.tokens.Issue(tokens.Claims{
		Subject:     a.ID,
		Email:       a.Email,
		Role:        a.Role,
		Permissions: tokens.NormalizePermissions(perms),
	}, now)
}

// revokeAll is the shared tail of logout, password change and reset.
func (s *Service) revokeAll(ctx context.Context, accountID, reason string, now time.Time) (int64, error) {
	return s.sessions.RevokeAllForAccount(ctx, accountID, reason, now)
}

func (s *Service) record(ctx context.Context, action string, meta session.Meta, ev audit.Event) {
	ev.Action = action
	ev.IP = meta.IP
	ev.UserAgent = meta.UserAgent
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	// Audit writes outlive a cancelled request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	s.audit.Record(ctx, ev)
}

func isNotFound(err error) bool {
	return errors.Is(err, identity.ErrNotFound)
}
