package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sessiond/cmd/identity/ids"
	"sessiond/cmd/security/token"
)

// Service implements refresh-token issuance, rotation and revocation.
type Service struct {
	cfg   Config
	store Store
	fp    token.Fingerprinter
	log   *slog.Logger
}

// NewService constructs a Service. The zero Fingerprinter hashes with SHA-256.
func NewService(cfg Config, store Store, fp token.Fingerprinter, log *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("session: nil store")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, store: store, fp: fp, log: log}, nil
}

// TTL is the lifetime given to every issued record.
func (s *Service) TTL() time.Duration { return s.cfg.TTL }

func (s *Service) newRecord(accountID, familyID string, meta Meta, now time.Time) (string, Record, error) {
	raw, err := token.Generate(s.cfg.TokenBytes)
	if err != nil {
		return "", Record{}, fmt.Errorf("session: generate token: %w", err)
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return "", Record{}, err
	}
	return raw, Record{
		ID:          id,
		AccountID:   accountID,
		Fingerprint: s.fp.Fingerprint(raw),
		FamilyID:    familyID,
		ExpiresAt:   now.Add(s.cfg.TTL),
		UserAgent:   clip(meta.UserAgent, 512),
		IP:          clip(meta.IP, 64),
		CreatedAt:   now,
	}, nil
}

// Issue starts a new family for accountID and returns its first raw token.
// The raw token is returned only here and from Rotate; it is never stored.
func (s *Service) Issue(ctx context.Context, accountID string, meta Meta, now time.Time) (string, Record, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", Record{}, errors.New("session: missing account id")
	}
	familyID, err := ids.NewFamilyID()
	if err != nil {
		return "", Record{}, err
	}
	raw, rec, err := s.newRecord(accountID, familyID, meta, now)
	if err != nil {
		return "", Record{}, err
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return "", Record{}, fmt.Errorf("session: insert: %w", err)
	}
	return raw, rec, nil
}

// Rotate exchanges a presented raw token for its successor.
//
// Outcomes, checked in this order under the record's lock:
//   - unknown fingerprint: ErrNotFound
//   - revoked record: the family is revoked and ErrReuseDetected returned
//   - expired record: ErrExpired
//   - otherwise the record is revoked and a successor inserted in the same family
//
// On ErrReuseDetected and ErrExpired the presented record is returned with the
// error so callers can audit the account and family involved.
func (s *Service) Rotate(ctx context.Context, raw string, meta Meta, now time.Time) (string, Record, error) {
	raw, ok := token.Normalize(raw)
	if !ok {
		return "", Record{}, ErrNotFound
	}
	fingerprint := s.fp.Fingerprint(raw)

	var (
		outcome   error
		presented Record
		nextRaw   string
		next      Record
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		rec, err := tx.GetByFingerprintForUpdate(ctx, fingerprint)
		if err != nil {
			return err
		}
		presented = rec

		if rec.Revoked {
			n, err := tx.RevokeFamily(ctx, rec.FamilyID, ReasonReuseDetected, now)
			if err != nil {
				return err
			}
			s.log.Warn("session.rotate.reuse_detected",
				"account_id", rec.AccountID,
				"family_id", rec.FamilyID,
				"record_id", rec.ID,
				"revoked", n,
			)
			// Commit the family revocation, then report reuse.
			outcome = ErrReuseDetected
			return nil
		}
		if rec.Expired(now) {
			outcome = ErrExpired
			return nil
		}

		nextRaw, next, err = s.newRecord(rec.AccountID, rec.FamilyID, meta, now)
		if err != nil {
			return err
		}
		if err := tx.Insert(ctx, next); err != nil {
			return err
		}
		return tx.MarkRotated(ctx, rec.ID, next.ID, now)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", Record{}, ErrNotFound
		}
		return "", Record{}, fmt.Errorf("session: rotate: %w", err)
	}
	if outcome != nil {
		return "", presented, outcome
	}
	return nextRaw, next, nil
}

// RevokeFamily revokes every record in familyID.
func (s *Service) RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error) {
	if !ids.ValidFamilyID(familyID) {
		return 0, nil
	}
	n, err := s.store.RevokeFamily(ctx, familyID, reason, now)
	if err != nil {
		return 0, fmt.Errorf("session: revoke family: %w", err)
	}
	return n, nil
}

// RevokeAllForAccount revokes every record owned by accountID across all families.
func (s *Service) RevokeAllForAccount(ctx context.Context, accountID, reason string, now time.Time) (int64, error) {
	n, err := s.store.RevokeAllForAccount(ctx, accountID, reason, now)
	if err != nil {
		return 0, fmt.Errorf("session: revoke account: %w", err)
	}
	return n, nil
}

// Purge deletes records that expired before cutoff.
func (s *Service) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.store.Purge(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("session: purge: %w", err)
	}
	return n, nil
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
