package app

import (
	"context"
	"fmt"
	"time"

	"sessiond/cmd/identity"
)

// seedHasher is the slice of password.Hasher the seed needs.
type seedHasher interface {
	Validate(password string) error
	Hash(ctx context.Context, password string) (string, error)
}

// bootstrapAdmin creates an admin account for email when none exists. The
// account must change its password on first login.
func bootstrapAdmin(ctx context.Context, accounts identity.Repository, hasher seedHasher, email, plain string, now time.Time, log Logger) error {
	email = identity.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	if !identity.ValidEmail(email) {
		return fmt.Errorf("%w: ARC_BOOTSTRAP_ADMIN_EMAIL is not a valid address", ErrConfig)
	}

	_, err := accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		log.Info("bootstrap.admin.exists", "email", identity.MaskEmail(email))
		return nil
	case !identity.IsNotFound(err):
		return fmt.Errorf("bootstrap admin lookup: %w", err)
	}

	if err := hasher.Validate(plain); err != nil {
		return fmt.Errorf("%w: ARC_BOOTSTRAP_ADMIN_PASSWORD: %v", ErrConfig, err)
	}
	hash, err := hasher.Hash(ctx, plain)
	if err != nil {
		return fmt.Errorf("bootstrap admin hash: %w", err)
	}

	acct, err := accounts.Create(ctx, identity.CreateAccountInput{
		Email:               email,
		PasswordHash:        hash,
		Role:                "admin",
		ForcePasswordChange: true,
		Now:                 now,
	})
	if err != nil {
		if identity.IsConflict(err) {
			// Another instance won the race.
			return nil
		}
		return fmt.Errorf("bootstrap admin create: %w", err)
	}
	log.Info("bootstrap.admin.created", "account_id", acct.ID, "email", identity.MaskEmail(email))
	return nil
}
