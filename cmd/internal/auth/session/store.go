package session

import (
	"context"
	"time"
)

// Revocation reasons stored alongside revoked records.
const (
	ReasonRotated         = "rotated"
	ReasonReuseDetected   = "reuse_detected"
	ReasonLogout          = "logout"
	ReasonPasswordChanged = "password_changed"
	ReasonPasswordReset   = "password_reset"
	ReasonAdmin           = "admin"
)

// Meta describes the client presenting a token.
type Meta struct {
	UserAgent string
	IP        string
}

// Record mirrors a refresh_tokens row.
type Record struct {
	ID          string
	AccountID   string
	Fingerprint string
	FamilyID    string
	ExpiresAt   time.Time

	Revoked          bool
	RevokedAt        *time.Time
	RevocationReason string
	ReplacedByID     string

	UserAgent string
	IP        string
	CreatedAt time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r Record) Expired(now time.Time) bool { return !r.ExpiresAt.After(now) }

// Tx is the view of the store available inside one rotation transaction.
type Tx interface {
	// GetByFingerprintForUpdate loads a record and holds it until the
	// transaction ends. Missing records return ErrNotFound.
	GetByFingerprintForUpdate(ctx context.Context, fingerprint string) (Record, error)

	Insert(ctx context.Context, rec Record) error

	// MarkRotated revokes id with ReasonRotated and links its successor.
	MarkRotated(ctx context.Context, id, replacedByID string, now time.Time) error

	RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error)
}

// Store persists refresh records.
//
// InTx runs fn as a single atomic unit: every write made through the Tx is
// committed when fn returns nil and discarded otherwise. Backends report a
// conflicting concurrent update as ErrNotFound.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Insert(ctx context.Context, rec Record) error
	GetByID(ctx context.Context, id string) (Record, error)

	// Revoke operations return the number of records newly revoked. Already
	// revoked records keep their original reason.
	RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error)
	RevokeAllForAccount(ctx context.Context, accountID, reason string, now time.Time) (int64, error)

	// Purge deletes records that expired before cutoff.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}
