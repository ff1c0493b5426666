package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errDuplicateFingerprint = errors.New("session: duplicate fingerprint")

// MemoryStore keeps records in process memory. InTx serializes on a single
// mutex and applies buffered writes only when fn succeeds.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]*Record
	byFP map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*Record),
		byFP: make(map[string]string),
	}
}

func (s *MemoryStore) insertLocked(rec Record) error {
	if _, ok := s.byFP[rec.Fingerprint]; ok {
		return errDuplicateFingerprint
	}
	if _, ok := s.byID[rec.ID]; ok {
		return errDuplicateFingerprint
	}
	r := rec
	s.byID[rec.ID] = &r
	s.byFP[rec.Fingerprint] = rec.ID
	return nil
}

func revoke(r *Record, reason string, now time.Time) bool {
	if r.Revoked {
		return false
	}
	ts := now
	r.Revoked = true
	r.RevokedAt = &ts
	r.RevocationReason = reason
	return true
}

func (s *MemoryStore) revokeWhereLocked(match func(*Record) bool, reason string, now time.Time) int64 {
	var n int64
	for _, r := range s.byID {
		if match(r) && revoke(r, reason, now) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(rec)
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(r), nil
}

func (s *MemoryStore) RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeWhereLocked(func(r *Record) bool { return r.FamilyID == familyID }, reason, now), nil
}

func (s *MemoryStore) RevokeAllForAccount(ctx context.Context, accountID, reason string, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeWhereLocked(func(r *Record) bool { return r.AccountID == accountID }, reason, now), nil
}

func (s *MemoryStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.byID {
		if r.ExpiresAt.Before(cutoff) {
			delete(s.byFP, r.Fingerprint)
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, op := range tx.ops {
		if err := op(); err != nil {
			// Only reachable if fn inserted two records with one fingerprint.
			return err
		}
	}
	return nil
}

type memTx struct {
	s   *MemoryStore
	ops []func() error
}

func (t *memTx) GetByFingerprintForUpdate(ctx context.Context, fingerprint string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	id, ok := t.s.byFP[fingerprint]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(t.s.byID[id]), nil
}

func (t *memTx) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.s.byFP[rec.Fingerprint]; ok {
		return errDuplicateFingerprint
	}
	t.ops = append(t.ops, func() error { return t.s.insertLocked(rec) })
	return nil
}

func (t *memTx) MarkRotated(ctx context.Context, id, replacedByID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.s.byID[id]; !ok {
		return ErrNotFound
	}
	t.ops = append(t.ops, func() error {
		r := t.s.byID[id]
		revoke(r, ReasonRotated, now)
		r.ReplacedByID = replacedByID
		return nil
	})
	return nil
}

func (t *memTx) RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range t.s.byID {
		if r.FamilyID == familyID && !r.Revoked {
			n++
		}
	}
	t.ops = append(t.ops, func() error {
		t.s.revokeWhereLocked(func(r *Record) bool { return r.FamilyID == familyID }, reason, now)
		return nil
	})
	return n, nil
}

func copyRecord(r *Record) Record {
	out := *r
	if r.RevokedAt != nil {
		ts := *r.RevokedAt
		out.RevokedAt = &ts
	}
	return out
}
