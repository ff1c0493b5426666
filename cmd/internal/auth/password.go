package auth

import (
	"context"
	"errors"
	"strings"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/audit"
	"sessiond/cmd/internal/auth/notify"
	"sessiond/cmd/internal/auth/ratelimit"
	"sessiond/cmd/internal/auth/reset"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/security/password"
)

// ChangePassword replaces the password of an authenticated account and ends
// every session it has. A wrong current password counts toward lockout.
func (s *Service) ChangePassword(ctx context.Context, accountID, current, next string, meta session.Meta) error {
	const op = "auth.change_password"
	ctx, cancel := s.bound(ctx)
	defer cancel()
	now := s.now()

	if strings.TrimSpace(accountID) == "" || current == "" || next == "" {
		return newError(op, ErrValidation, errors.New("current and new password are required"))
	}

	acct, err := s.accounts.FindByID(ctx, accountID)
	switch {
	case isNotFound(err):
		return newError(op, ErrAccountNotFound, nil)
	case err != nil:
		s.log.Error("auth.change_password.lookup_failed", "account_id", accountID, "err", err)
		return internal(op, err)
	}
	if !acct.Active {
		return newError(op, ErrAccountNotFound, nil)
	}

	allowed, err := s.limiter.TryConsume(ctx, ratelimit.OpLogin, acct.Email)
	if err != nil {
		s.log.Error("auth.change_password.ratelimit_failed", "account_id", acct.ID, "err", err)
		return internal(op, err)
	}
	if !allowed {
		return newError(op, ErrRateLimited, nil)
	}
	if s.lockout.IsLocked(acct, now) {
		return newError(op, ErrAccountLocked, nil)
	}

	ok, err := s.verifyPassword(ctx, current, acct.PasswordHash)
	if err != nil {
		s.log.Error("auth.change_password.verify_failed", "account_id", acct.ID, "err", err)
		return internal(op, err)
	}
	if !ok {
		out, err := s.lockout.RecordFailure(ctx, acct, now)
		if err != nil {
			return internal(op, err)
		}
		if out.JustLocked {
			s.metrics.locked()
			s.record(ctx, audit.LoginLocked, meta, audit.Event{AccountID: acct.ID, Meta: map[string]any{"attempts": out.Attempts}})
		}
		return newError(op, ErrInvalidCredentials, nil)
	}
	if err := s.lockout.RecordSuccess(ctx, acct.ID, now); err != nil {
		return internal(op, err)
	}

	if err := s.hasher.Validate(next); err != nil {
		return newError(op, ErrValidation, err)
	}
	hash, err := s.hashPassword(ctx, next)
	if err != nil {
		return s.hashFailed(op, acct.ID, err)
	}
	if err := s.accounts.UpdatePassword(ctx, acct.ID, hash, true, now); err != nil {
		s.log.Error("auth.change_password.update_failed", "account_id", acct.ID, "err", err)
		return internal(op, err)
	}

	n, err := s.revokeAll(ctx, acct.ID, session.ReasonPasswordChanged, now)
	if err != nil {
		s.log.Error("auth.change_password.revoke_failed", "account_id", acct.ID, "err", err)
		return internal(op, err)
	}
	s.log.Info("auth.password.changed", "account_id", acct.ID, "revoked", n)
	s.record(ctx, audit.PasswordChanged, meta, audit.Event{AccountID: acct.ID, Meta: map[string]any{"revoked": n}})
	return nil
}

// RequestPasswordReset issues a reset token and emails it. Rate limiting,
// unknown accounts and the active-token cap all return nil, exactly like a
// sent email. A failed send returns a retryable ErrInternal.
func (s *Service) RequestPasswordReset(ctx context.Context, email string, meta session.Meta) error {
	const op = "auth.request_password_reset"
	ctx, cancel := s.bound(ctx)
	defer cancel()
	now := s.now()

	email = identity.NormalizeEmail(email)
	if !identity.ValidEmail(email) {
		s.metrics.reset("invalid_input")
		return nil
	}
	masked := identity.MaskEmail(email)

	allowed, err := s.limiter.TryConsume(ctx, ratelimit.OpReset, email)
	if err != nil {
		s.metrics.reset("error")
		s.log.Error("auth.password_reset.ratelimit_failed", "email", masked, "err", err)
		return retryable(op, err)
	}
	if !allowed {
		s.metrics.reset("rate_limited")
		s.log.Info("auth.password_reset.rate_limited", "email", masked)
		return nil
	}

	acct, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case isNotFound(err):
		s.metrics.reset("unknown_account")
		s.log.Info("auth.password_reset.unknown_account", "email", masked)
		return nil
	case err != nil:
		s.metrics.reset("error")
		s.log.Error("auth.password_reset.lookup_failed", "email", masked, "err", err)
		return retryable(op, err)
	}
	if !acct.Active {
		s.metrics.reset("inactive")
		return nil
	}

	raw, rec, err := s.resets.Issue(ctx, acct.ID, now)
	switch {
	case errors.Is(err, reset.ErrTooManyActive):
		s.metrics.reset("capped")
		s.log.Info("auth.password_reset.capped", "account_id", acct.ID)
		return nil
	case err != nil:
		s.metrics.reset("error")
		s.log.Error("auth.password_reset.issue_failed", "account_id", acct.ID, "err", err)
		return retryable(op, err)
	}

	// The token stays committed if delivery fails; it simply never arrives.
	if err := s.notifier.PasswordReset(ctx, acct.Email, raw, notify.Propagate); err != nil {
		s.metrics.reset("delivery_failed")
		return retryable(op, err)
	}

	s.metrics.reset("sent")
	s.record(ctx, audit.PasswordResetRequested, meta, audit.Event{
		AccountID: acct.ID,
		Meta:      map[string]any{"reset_id": rec.ID},
	})
	return nil
}

// ConfirmPasswordReset sets a new password using a reset token and ends every
// session of the account. Unknown, used and expired tokens are one error.
//
// The token is checked and the new password validated and hashed before the
// token is consumed, so a rejected password does not burn the token.
func (s *Service) ConfirmPasswordReset(ctx context.Context, raw, next string, meta session.Meta) error {
	const op = "auth.confirm_password_reset"
	ctx, cancel := s.bound(ctx)
	defer cancel()
	now := s.now()

	if strings.TrimSpace(raw) == "" {
		return newError(op, ErrInvalidOrExpiredToken, nil)
	}

	if _, err := s.resets.Lookup(ctx, raw, now); err != nil {
		return s.resetTokenFailed(op, err)
	}
	if err := s.hasher.Validate(next); err != nil {
		return newError(op, ErrValidation, err)
	}
	hash, err := s.hashPassword(ctx, next)
	if err != nil {
		return s.hashFailed(op, "", err)
	}

	rec, err := s.resets.Consume(ctx, raw, now)
	if err != nil {
		return s.resetTokenFailed(op, err)
	}

	err = s.accounts.UpdatePassword(ctx, rec.AccountID, hash, true, now)
	switch {
	case isNotFound(err):
		return newError(op, ErrInvalidOrExpiredToken, err)
	case err != nil:
		s.log.Error("auth.password_reset.update_failed", "account_id", rec.AccountID, "err", err)
		return internal(op, err)
	}

	n, err := s.revokeAll(ctx, rec.AccountID, session.ReasonPasswordReset, now)
	if err != nil {
		s.log.Error("auth.password_reset.revoke_failed", "account_id", rec.AccountID, "err", err)
		return internal(op, err)
	}
	s.log.Info("auth.password_reset.confirmed", "account_id", rec.AccountID, "revoked", n)
	s.record(ctx, audit.PasswordResetConfirmed, meta, audit.Event{
		AccountID: rec.AccountID,
		Meta:      map[string]any{"reset_id": rec.ID, "revoked": n},
	})
	return nil
}

func (s *Service) resetTokenFailed(op string, err error) error {
	if errors.Is(err, reset.ErrInvalidOrExpired) {
		return newError(op, ErrInvalidOrExpiredToken, nil)
	}
	s.log.Error("auth.password_reset.lookup_failed", "err", err)
	return internal(op, err)
}

func (s *Service) hashFailed(op, accountID string, err error) error {
	if password.IsPolicyError(err) {
		return newError(op, ErrValidation, err)
	}
	s.log.Error("auth.password.hash_failed", "account_id", accountID, "err", err)
	return internal(op, err)
}
