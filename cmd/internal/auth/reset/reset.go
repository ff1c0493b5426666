// Package reset stores single-use password reset tokens.
//
// Raw tokens are returned once from Issue and never persisted; the store keys
// records by fingerprint. An account may hold at most MaxActive unused,
// unexpired tokens, enforced atomically with the insert.
package reset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sessiond/cmd/identity/ids"
	"sessiond/cmd/security/token"
)

var (
	// ErrInvalidOrExpired covers unknown, used and expired tokens alike.
	ErrInvalidOrExpired = errors.New("reset token invalid or expired")

	// ErrTooManyActive is returned by Issue when the account is at its cap.
	ErrTooManyActive = errors.New("too many active reset tokens")

	ErrConfig = errors.New("invalid reset config")
)

// Record mirrors a password_reset_tokens row.
type Record struct {
	ID          string
	AccountID   string
	Fingerprint string
	ExpiresAt   time.Time
	Used        bool
	UsedAt      *time.Time
	CreatedAt   time.Time
}

// Active reports whether the record can still be consumed at now.
func (r Record) Active(now time.Time) bool {
	return !r.Used && r.ExpiresAt.After(now)
}

// Store persists reset records.
type Store interface {
	// InsertCapped inserts rec unless the account already holds maxActive
	// active records, in which case it returns ErrTooManyActive. The count and
	// the insert are one atomic unit.
	InsertCapped(ctx context.Context, rec Record, maxActive int, now time.Time) error

	// Lookup returns the active record for fingerprint or ErrInvalidOrExpired.
	Lookup(ctx context.Context, fingerprint string, now time.Time) (Record, error)

	// Consume marks the active record used in one statement and returns it.
	// A record can be consumed once; later calls return ErrInvalidOrExpired.
	Consume(ctx context.Context, fingerprint string, now time.Time) (Record, error)

	CountActive(ctx context.Context, accountID string, now time.Time) (int, error)

	// Purge deletes records that expired before cutoff.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	TTL        time.Duration
	MaxActive  int
	TokenBytes int
}

func DefaultConfig() Config {
	return Config{TTL: time.Hour, MaxActive: 3, TokenBytes: token.DefaultBytes}
}

func (c Config) Validate() error {
	if c.TTL < time.Minute || c.TTL > 72*time.Hour {
		return fmt.Errorf("%w: ttl must be in [1m..72h]", ErrConfig)
	}
	if c.MaxActive < 1 || c.MaxActive > 50 {
		return fmt.Errorf("%w: max active must be in [1..50]", ErrConfig)
	}
	if c.TokenBytes < token.MinBytes || c.TokenBytes > token.MaxBytes {
		return fmt.Errorf("%w: token bytes must be in [%d..%d]", ErrConfig, token.MinBytes, token.MaxBytes)
	}
	return nil
}

// LoadConfigFromEnv reads ARC_RESET_TTL and ARC_RESET_MAX_ACTIVE.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if v := strings.TrimSpace(os.Getenv("ARC_RESET_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: ARC_RESET_TTL", ErrConfig)
		}
		cfg.TTL = d
	}
	if v := strings.TrimSpace(os.Getenv("ARC_RESET_MAX_ACTIVE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: ARC_RESET_MAX_ACTIVE", ErrConfig)
		}
		cfg.MaxActive = n
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Service issues and consumes reset tokens.
type Service struct {
	cfg   Config
	store Store
	fp    token.Fingerprinter
}

func NewService(cfg Config, store Store, fp token.Fingerprinter) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("reset: nil store")
	}
	return &Service{cfg: cfg, store: store, fp: fp}, nil
}

func (s *Service) Config() Config { return s.cfg }

// Issue creates a token for accountID, or returns ErrTooManyActive.
func (s *Service) Issue(ctx context.Context, accountID string, now time.Time) (string, Record, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", Record{}, errors.New("reset: missing account id")
	}
	raw, err := token.Generate(s.cfg.TokenBytes)
	if err != nil {
		return "", Record{}, fmt.Errorf("reset: generate token: %w", err)
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return "", Record{}, err
	}
	rec := Record{
		ID:          id,
		AccountID:   accountID,
		Fingerprint: s.fp.Fingerprint(raw),
		ExpiresAt:   now.Add(s.cfg.TTL),
		CreatedAt:   now,
	}
	if err := s.store.InsertCapped(ctx, rec, s.cfg.MaxActive, now); err != nil {
		if errors.Is(err, ErrTooManyActive) {
			return "", Record{}, ErrTooManyActive
		}
		return "", Record{}, fmt.Errorf("reset: insert: %w", err)
	}
	return raw, rec, nil
}

// Lookup checks that raw is currently consumable without consuming it.
func (s *Service) Lookup(ctx context.Context, raw string, now time.Time) (Record, error) {
	raw, ok := token.Normalize(raw)
	if !ok {
		return Record{}, ErrInvalidOrExpired
	}
	return s.wrap(s.store.Lookup(ctx, s.fp.Fingerprint(raw), now))
}

// Consume marks raw used. Exactly one concurrent caller succeeds.
func (s *Service) Consume(ctx context.Context, raw string, now time.Time) (Record, error) {
	raw, ok := token.Normalize(raw)
	if !ok {
		return Record{}, ErrInvalidOrExpired
	}
	return s.wrap(s.store.Consume(ctx, s.fp.Fingerprint(raw), now))
}

func (s *Service) CountActive(ctx context.Context, accountID string, now time.Time) (int, error) {
	return s.store.CountActive(ctx, accountID, now)
}

// Purge deletes records that expired before cutoff.
func (s *Service) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.store.Purge(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset: purge: %w", err)
	}
	return n, nil
}

func (s *Service) wrap(rec Record, err error) (Record, error) {
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, ErrInvalidOrExpired):
		return Record{}, ErrInvalidOrExpired
	default:
		return Record{}, fmt.Errorf("reset: %w", err)
	}
}
