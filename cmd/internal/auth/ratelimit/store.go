package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// BucketStore holds bucket state. Take must refill and consume atomically.
type BucketStore interface {
	Take(ctx context.Context, key string, p Policy, now time.Time) (bool, error)
}

// DefaultMaxKeys bounds MemoryStore.
const DefaultMaxKeys = 100_000

// MemoryStore keeps buckets in a bounded LRU. An evicted bucket starts over
// at full capacity, the same loss a restart causes.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *bucket]
}

// NewMemoryStore returns a store holding at most maxKeys buckets.
func NewMemoryStore(maxKeys int) (*MemoryStore, error) {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	c, err := lru.New[string, *bucket](maxKeys)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{cache: c}, nil
}

func (s *MemoryStore) Take(ctx context.Context, key string, p Policy, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.cache.Get(key)
	if !ok {
		b = newBucket(p, now)
		s.cache.Add(key, b)
	}
	return b.take(p, now), nil
}

// Len reports the number of live buckets.
func (s *MemoryStore) Len() int { return s.cache.Len() }
