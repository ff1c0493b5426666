// Package lockout tracks consecutive failed logins per account.
//
// Lock state is derived from the account's LockedUntil timestamp; there are no
// timers. The failure counter is durable in the account store and clears only
// on a successful login.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/notify"
)

var ErrConfig = errors.New("lockout config")

type Config struct {
	MaxAttempts  int
	LockDuration time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 5, LockDuration: 15 * time.Minute}
}

func (c Config) Validate() error {
	if c.MaxAttempts < 1 || c.MaxAttempts > 100 {
		return fmt.Errorf("%w: max attempts must be in [1..100]", ErrConfig)
	}
	if c.LockDuration < time.Second || c.LockDuration > 30*24*time.Hour {
		return fmt.Errorf("%w: lock duration must be in [1s..720h]", ErrConfig)
	}
	return nil
}

// LoadConfigFromEnv reads ARC_LOCKOUT_MAX_ATTEMPTS and ARC_LOCKOUT_DURATION.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if v := strings.TrimSpace(os.Getenv("ARC_LOCKOUT_MAX_ATTEMPTS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: ARC_LOCKOUT_MAX_ATTEMPTS not an integer", ErrConfig)
		}
		cfg.MaxAttempts = n
	}
	if v := strings.TrimSpace(os.Getenv("ARC_LOCKOUT_DURATION")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: ARC_LOCKOUT_DURATION invalid duration", ErrConfig)
		}
		cfg.LockDuration = d
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Accounts is the slice of identity.Repository the tracker writes through.
type Accounts interface {
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (identity.FailureState, error)
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error
}

// LockNotifier is told when an account transitions into the locked state.
type LockNotifier interface {
	AccountLocked(ctx context.Context, to string, mode notify.Mode) error
}

// Outcome describes the account after a failure was recorded.
type Outcome struct {
	Attempts    int
	Locked      bool
	JustLocked  bool
	LockedUntil *time.Time
}

type Tracker struct {
	cfg      Config
	accounts Accounts
	notifier LockNotifier
	log      *slog.Logger
}

// New returns a Tracker. notifier may be nil.
func New(cfg Config, accounts Accounts, notifier LockNotifier, log *slog.Logger) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if accounts == nil {
		return nil, errors.New("lockout: accounts store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{cfg: cfg, accounts: accounts, notifier: notifier, log: log}, nil
}

func (t *Tracker) Config() Config { return t.cfg }

func (t *Tracker) IsLocked(a identity.Account, now time.Time) bool {
	return a.IsLocked(now)
}

// RecordFailure increments the counter for a and locks the account when the
// threshold is reached. The lockout email is sent best effort and only by the
// request whose write set the lock.
func (t *Tracker) RecordFailure(ctx context.Context, a identity.Account, now time.Time) (Outcome, error) {
	st, err := t.accounts.RecordFailedLogin(ctx, a.ID, t.cfg.MaxAttempts, t.cfg.LockDuration, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("lockout: record failure: %w", err)
	}

	out := Outcome{
		Attempts:    st.Attempts,
		Locked:      st.LockedUntil != nil && st.LockedUntil.After(now),
		JustLocked:  st.JustLocked,
		LockedUntil: st.LockedUntil,
	}

	if out.JustLocked {
		t.log.Warn("auth.lockout.locked",
			"account_id", a.ID,
			"email", identity.MaskEmail(a.Email),
			"attempts", st.Attempts,
			"locked_until", st.LockedUntil.UTC(),
		)
		if t.notifier != nil {
			// BestEffort never returns an error.
			_ = t.notifier.AccountLocked(ctx, a.Email, notify.BestEffort)
		}
	}
	return out, nil
}

// RecordSuccess clears the counter and any lock, and stamps the login time.
func (t *Tracker) RecordSuccess(ctx context.Context, accountID string, now time.Time) error {
	if err := t.accounts.RecordSuccessfulLogin(ctx, accountID, now); err != nil {
		return fmt.Errorf("lockout: record success: %w", err)
	}
	return nil
}
