package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"sessiond/cmd/internal/audit"
	"sessiond/cmd/internal/auth/session"
)

type RefreshResult struct {
	AccessToken     string
	AccessTokenTTL  time.Duration
	AccessExpiresAt time.Time
	AccountID       string

	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Refresh rotates raw and mints a fresh access token with current permissions.
// Unknown, expired and reused tokens are all ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, raw string, meta session.Meta) (RefreshResult, error) {
	const op = "auth.refresh"
	ctx, cancel := s.bound(ctx)
	defer cancel()
	now := s.now()

	if strings.TrimSpace(raw) == "" {
		s.metrics.refresh("invalid")
		return RefreshResult{}, newError(op, ErrInvalidToken, nil)
	}

	next, rec, err := s.sessions.Rotate(ctx, raw, meta, now)
	switch {
	case errors.Is(err, session.ErrReuseDetected):
		s.metrics.refresh("reuse_detected")
		s.log.Error("auth.refresh.reuse_detected",
			"account_id", rec.AccountID,
			"family_id", rec.FamilyID,
			"ip", meta.IP,
		)
		s.record(ctx, audit.RefreshReuseDetected, meta, audit.Event{AccountID: rec.AccountID, FamilyID: rec.FamilyID})
		return RefreshResult{}, newError(op, ErrInvalidToken, err)
	case session.IsRotationError(err):
		s.metrics.refresh("invalid")
		return RefreshResult{}, newError(op, ErrInvalidToken, err)
	case err != nil:
		s.metrics.refresh("error")
		s.log.Error("auth.refresh.rotate_failed", "err", err)
		return RefreshResult{}, internal(op, err)
	}

	acct, err := s.accounts.FindByID(ctx, rec.AccountID)
	if err != nil || !acct.Active {
		if err != nil && !isNotFound(err) {
			s.metrics.refresh("error")
			s.log.Error("auth.refresh.lookup_failed", "account_id", rec.AccountID, "err", err)
			return RefreshResult{}, internal(op, err)
		}
		// The successor was just committed; do not leave it usable.
		if _, rerr := s.sessions.RevokeFamily(ctx, rec.FamilyID, session.ReasonAdmin, now); rerr != nil {
			s.log.Error("auth.refresh.revoke_failed", "family_id", rec.FamilyID, "err", rerr)
		}
		s.metrics.refresh("invalid")
		return RefreshResult{}, newError(op, ErrInvalidToken, errors.New("account unavailable"))
	}

	access, accessExp, err := s.mint(ctx, acct, now)
	if err != nil {
		s.metrics.refresh("error")
		s.log.Error("auth.refresh.mint_failed", "account_id", acct.ID, "err", err)
		return RefreshResult{}, internal(op, err)
	}

	s.metrics.refresh("success")
	s.log.Debug("auth.refresh.success", "account_id", acct.ID, "family_id", rec.FamilyID)
	s.record(ctx, audit.RefreshSucceeded, meta, audit.Event{AccountID: acct.ID, FamilyID: rec.FamilyID})

	return RefreshResult{
		AccessToken:      access,
		AccessTokenTTL:   s.tokens.TTL(),
		AccessExpiresAt:  accessExp,
		AccountID:        acct.ID,
		RefreshToken:     next,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// Logout rotates the presented token, ignoring the outcome, then revokes every
// refresh token of accountID. A stale or missing cookie still ends all sessions.
func (s *Service) Logout(ctx context.Context, accountID, raw string, meta session.Meta) error {
	const op = "auth.logout"
	ctx, cancel := s.bound(ctx)
	defer cancel()
	now := s.now()

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return newError(op, ErrValidation, errors.New("account id is required"))
	}

	if strings.TrimSpace(raw) != "" {
		_, rec, err := s.sessions.Rotate(ctx, raw, meta, now)
		if err == nil && rec.AccountID != accountID {
			s.log.Warn("auth.logout.foreign_token", "account_id", accountID, "family_id", rec.FamilyID)
			if _, err := s.sessions.RevokeFamily(ctx, rec.FamilyID, session.ReasonLogout, now); err != nil {
				s.log.Error("auth.logout.revoke_failed", "family_id", rec.FamilyID, "err", err)
			}
		}
	}

	n, err := s.revokeAll(ctx, accountID, session.ReasonLogout, now)
	if err != nil {
		s.log.Error("auth.logout.revoke_failed", "account_id", accountID, "err", err)
		return internal(op, err)
	}
	s.log.Info("auth.logout", "account_id", accountID, "revoked", n)
	s.record(ctx, audit.Logout, meta, audit.Event{AccountID: accountID, Meta: map[string]any{"revoked": n}})
	return nil
}
