package auth

import (
	"context"
	"errors"
	"time"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/audit"
	"sessiond/cmd/internal/auth/ratelimit"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/security/password"
)

// LoginResult is what a successful login hands to the transport.
// RefreshToken must only ever travel in the refresh cookie.
type LoginResult struct {
	AccessToken         string
	AccessTokenTTL      time.Duration
	AccessExpiresAt     time.Time
	ForcePasswordChange bool
	Account             identity.Summary

	RefreshToken     string
	RefreshExpiresAt time.Time
	FamilyID         string
}

// Login authenticates email/password and starts a new refresh-token family.
//
// Unknown, inactive and wrong-password accounts are all ErrInvalidCredentials.
// A locked account is ErrAccountLocked even with the correct password.
func (s *Service) Login(ctx context.Context, email, plain string, meta session.Meta) (LoginResult, error) {
	const op = "auth.login"
	ctx, cancel := s.bound(ctx)
	defer cancel()
	now := s.now()

	email = identity.NormalizeEmail(email)
	if email == "" || plain == "" {
		s.metrics.login("invalid_input")
		return LoginResult{}, newError(op, ErrValidation, errors.New("email and password are required"))
	}
	masked := identity.MaskEmail(email)

	allowed, err := s.limiter.TryConsume(ctx, ratelimit.OpLogin, email)
	if err != nil {
		s.metrics.login("error")
		s.log.Error("auth.login.ratelimit_failed", "email", masked, "err", err)
		return LoginResult{}, internal(op, err)
	}
	if !allowed {
		s.metrics.login("rate_limited")
		s.log.Warn("auth.login.rate_limited", "email", masked, "ip", meta.IP)
		s.record(ctx, audit.LoginRateLimited, meta, audit.Event{Meta: map[string]any{"email": masked}})
		return LoginResult{}, newError(op, ErrRateLimited, nil)
	}

	acct, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case isNotFound(err):
		s.dummyVerify(ctx, plain)
		return LoginResult{}, s.loginRejected(ctx, op, "", masked, "unknown_account", meta)
	case err != nil:
		s.metrics.login("error")
		s.log.Error("auth.login.lookup_failed", "email", masked, "err", err)
		return LoginResult{}, internal(op, err)
	}

	if !acct.Active {
		s.dummyVerify(ctx, plain)
		return LoginResult{}, s.loginRejected(ctx, op, acct.ID, masked, "inactive", meta)
	}

	if s.lockout.IsLocked(acct, now) {
		s.metrics.login("locked")
		s.log.Warn("auth.login.locked", "account_id", acct.ID, "email", masked, "locked_until", acct.LockedUntil.UTC())
		s.record(ctx, audit.LoginLocked, meta, audit.Event{AccountID: acct.ID})
		return LoginResult{}, newError(op, ErrAccountLocked, nil)
	}

	ok, err := s.verifyPassword(ctx, plain, acct.PasswordHash)
	if err != nil {
		// A timeout or unreadable hash says nothing about the password.
		s.metrics.login("error")
		s.log.Error("auth.login.verify_failed", "account_id", acct.ID, "err", err)
		return LoginResult{}, internal(op, err)
	}
	if !ok {
		out, err := s.lockout.RecordFailure(ctx, acct, now)
		if err != nil {
			s.metrics.login("error")
			s.log.Error("auth.login.record_failure_failed", "account_id", acct.ID, "err", err)
			return LoginResult{}, internal(op, err)
		}
		if out.JustLocked {
			s.metrics.locked()
			s.record(ctx, audit.LoginLocked, meta, audit.Event{
				AccountID: acct.ID,
				Meta:      map[string]any{"attempts": out.Attempts, "locked_until": out.LockedUntil},
			})
		}
		return LoginResult{}, s.loginRejected(ctx, op, acct.ID, masked, "bad_password", meta)
	}

	if err := s.lockout.RecordSuccess(ctx, acct.ID, now); err != nil {
		s.metrics.login("error")
		s.log.Error("auth.login.record_success_failed", "account_id", acct.ID, "err", err)
		return LoginResult{}, internal(op, err)
	}
	s.upgradeHash(ctx, acct, plain, now)

	access, accessExp, err := s.mint(ctx, acct, now)
	if err != nil {
		s.metrics.login("error")
		s.log.Error("auth.login.mint_failed", "account_id", acct.ID, "err", err)
		return LoginResult{}, internal(op, err)
	}
	refresh, rec, err := s.sessions.Issue(ctx, acct.ID, meta, now)
	if err != nil {
		s.metrics.login("error")
		s.log.Error("auth.login.issue_failed", "account_id", acct.ID, "err", err)
		return LoginResult{}, internal(op, err)
	}

	s.metrics.login("success")
	s.log.Info("auth.login.success", "account_id", acct.ID, "family_id", rec.FamilyID)
	s.record(ctx, audit.LoginSucceeded, meta, audit.Event{AccountID: acct.ID, FamilyID: rec.FamilyID})

	return LoginResult{
		AccessToken:         access,
		AccessTokenTTL:      s.tokens.TTL(),
		AccessExpiresAt:     accessExp,
		ForcePasswordChange: acct.ForcePasswordChange,
		Account:             acct.Summary(),
		RefreshToken:        refresh,
		RefreshExpiresAt:    rec.ExpiresAt,
		FamilyID:            rec.FamilyID,
	}, nil
}

// loginRejected is the one exit for every invalid-credentials branch.
func (s *Service) loginRejected(ctx context.Context, op, accountID, masked, reason string, meta session.Meta) error {
	s.metrics.login("invalid_credentials")
	s.log.Info("auth.login.failed", "email", masked, "reason", reason)
	s.record(ctx, audit.LoginFailed, meta, audit.Event{
		AccountID: accountID,
		Meta:      map[string]any{"email": masked, "reason": reason},
	})
	return newError(op, ErrInvalidCredentials, nil)
}

// upgradeHash replaces bcrypt or under-cost hashes after a verified login.
// Failure only costs another rehash next time.
func (s *Service) upgradeHash(ctx context.Context, a identity.Account, plain string, now time.Time) {
	if !s.hasher.NeedsRehash(a.PasswordHash) {
		return
	}
	h, err := s.hashPassword(ctx, plain)
	if err != nil {
		// Legacy passwords may fall outside the current policy.
		if !password.IsPolicyError(err) {
			s.log.Warn("auth.login.rehash_failed", "account_id", a.ID, "err", err)
		}
		return
	}
	if err := s.accounts.UpdatePassword(ctx, a.ID, h, false, now); err != nil {
		s.log.Warn("auth.login.rehash_failed", "account_id", a.ID, "err", err)
		return
	}
	s.log.Info("auth.login.rehashed", "account_id", a.ID)
}
