package reset

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps reset records in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	byFP map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byFP: make(map[string]*Record)}
}

func (s *MemoryStore) countActiveLocked(accountID string, now time.Time) int {
	n := 0
	for _, r := range s.byFP {
		if r.AccountID == accountID && r.Active(now) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) InsertCapped(ctx context.Context, rec Record, maxActive int, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.countActiveLocked(rec.AccountID, now) >= maxActive {
		return ErrTooManyActive
	}
	r := rec
	s.byFP[rec.Fingerprint] = &r
	return nil
}

func (s *MemoryStore) Lookup(ctx context.Context, fingerprint string, now time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byFP[fingerprint]
	if !ok || !r.Active(now) {
		return Record{}, ErrInvalidOrExpired
	}
	return copyRecord(r), nil
}

func (s *MemoryStore) Consume(ctx context.Context, fingerprint string, now time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byFP[fingerprint]
	if !ok || !r.Active(now) {
		return Record{}, ErrInvalidOrExpired
	}
	ts := now
	r.Used = true
	r.UsedAt = &ts
	return copyRecord(r), nil
}

func (s *MemoryStore) CountActive(ctx context.Context, accountID string, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActiveLocked(accountID, now), nil
}

func (s *MemoryStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for fp, r := range s.byFP {
		if r.ExpiresAt.Before(cutoff) {
			delete(s.byFP, fp)
			n++
		}
	}
	return n, nil
}

func copyRecord(r *Record) Record {
	out := *r
	if r.UsedAt != nil {
		ts := *r.UsedAt
		out.UsedAt = &ts
	}
	return out
}
