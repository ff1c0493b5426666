// Package ids provides identifier primitives for accounts and token records.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string (26 chars), sortable by creation time.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewFamilyID returns a random UUIDv4 that groups a refresh-token lineage.
func NewFamilyID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ValidFamilyID reports whether s parses as a UUID.
func ValidFamilyID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
