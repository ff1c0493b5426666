package identity

import (
	"context"
	"time"
)

// DefaultRole is assigned when an account is created without one.
const DefaultRole = "user"

// Account is the security principal authenticated by the session layer.
type Account struct {
	ID           string
	Email        string // normalized
	PasswordHash string
	Role         string

	FailedAttempts int
	LockedUntil    *time.Time

	ForcePasswordChange bool
	Active              bool
	LastLoginAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked derives lock state at read time. There is no unlock job: an
// expired lock simply stops counting.
func (a Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// Summary is the account view returned to clients after login.
type Summary struct {
	ID       string
	Email    string
	Role     string
	FullName string
}

// Summary returns the client-facing view. FullName falls back to the email.
func (a Account) Summary() Summary {
	return Summary{ID: a.ID, Email: a.Email, Role: a.Role, FullName: a.Email}
}

// CreateAccountInput seeds a new account. PasswordHash must already be hashed.
type CreateAccountInput struct {
	Email               string
	PasswordHash        string
	Role                string
	ForcePasswordChange bool
	Now                 time.Time
}

// FailureState is the account's counter after a failed login was recorded.
type FailureState struct {
	Attempts    int
	LockedUntil *time.Time
	// JustLocked is true only for the write that set LockedUntil.
	JustLocked bool
}

// Repository is the account persistence boundary.
//
// RecordFailedLogin must be a single atomic read-modify-write: two concurrent
// failures always advance the counter by two. It sets LockedUntil to
// now+lockFor when the incremented counter reaches threshold and the account
// is not already locked. The counter is left alone when a lock expires; only
// RecordSuccessfulLogin clears it.
type Repository interface {
	Create(ctx context.Context, in CreateAccountInput) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)

	// UpdatePassword replaces the hash. clearForceChange also clears the force-change flag.
	UpdatePassword(ctx context.Context, id, passwordHash string, clearForceChange bool, now time.Time) error

	RecordFailedLogin(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (FailureState, error)
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error
}

func prepareCreate(op string, in CreateAccountInput) (CreateAccountInput, error) {
	in.Email = NormalizeEmail(in.Email)
	if !ValidEmail(in.Email) {
		return in, invalid(op, "email")
	}
	if in.PasswordHash == "" {
		return in, invalid(op, "password_hash")
	}
	if in.Role == "" {
		in.Role = DefaultRole
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}

func checkThreshold(op string, threshold int, lockFor time.Duration) error {
	if threshold <= 0 || lockFor <= 0 {
		return invalid(op, "lockout_policy")
	}
	return nil
}
