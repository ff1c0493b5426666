package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Operation names a limited flow.
type Operation string

const (
	OpLogin Operation = "login"
	OpReset Operation = "reset"
)

// ErrUnknownOperation is returned for an operation without a policy.
var ErrUnknownOperation = errors.New("ratelimit: unknown operation")

// Policy describes one bucket shape.
type Policy struct {
	Capacity     int
	RefillTokens int
	Interval     time.Duration
}

// FullRefill returns a policy that refills to capacity once per interval.
func FullRefill(capacity int, interval time.Duration) Policy {
	return Policy{Capacity: capacity, RefillTokens: capacity, Interval: interval}
}

// DefaultPolicies: 5 logins per 15 minutes, 3 reset requests per hour.
func DefaultPolicies() map[Operation]Policy {
	return map[Operation]Policy{
		OpLogin: FullRefill(5, 15*time.Minute),
		OpReset: FullRefill(3, time.Hour),
	}
}

// Validate rejects non-positive sizes.
func (p Policy) Validate() error {
	if p.Capacity <= 0 || p.RefillTokens <= 0 || p.Interval <= 0 {
		return fmt.Errorf("ratelimit: invalid policy %+v", p)
	}
	return nil
}

// idleTTL is how long an untouched bucket takes to become full again;
// after that, forgetting it is indistinguishable from keeping it.
func (p Policy) idleTTL() time.Duration {
	periods := (p.Capacity + p.RefillTokens - 1) / p.RefillTokens
	return time.Duration(periods) * p.Interval
}

// bucket is the in-memory state of one key.
type bucket struct {
	tokens     int
	lastRefill time.Time
}

func newBucket(p Policy, now time.Time) *bucket {
	return &bucket{tokens: p.Capacity, lastRefill: now}
}

// take refills for every whole interval elapsed and then consumes one token.
func (b *bucket) take(p Policy, now time.Time) bool {
	if elapsed := now.Sub(b.lastRefill); elapsed >= p.Interval {
		periods := int64(elapsed / p.Interval)
		add := periods * int64(p.RefillTokens)
		if add > int64(p.Capacity) {
			add = int64(p.Capacity)
		}
		b.tokens = min(p.Capacity, b.tokens+int(add))
		b.lastRefill = b.lastRefill.Add(time.Duration(periods) * p.Interval)
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
