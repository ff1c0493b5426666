package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Limiter answers TryConsume for the configured operations.
type Limiter struct {
	store    BucketStore
	policies map[Operation]Policy
	now      func() time.Time
	metrics  *metrics
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithRegisterer registers decision counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(l *Limiter) {
		if reg != nil {
			l.metrics = newMetrics(reg)
		}
	}
}

// New builds a Limiter. Every policy is validated up front.
func New(store BucketStore, policies map[Operation]Policy, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("ratelimit: nil store")
	}
	if len(policies) == 0 {
		policies = DefaultPolicies()
	}
	cp := make(map[Operation]Policy, len(policies))
	for op, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cp[op] = p
	}
	l := &Limiter{store: store, policies: cp, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// NormalizeKey lower-cases and trims so case and whitespace variants share a bucket.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// TryConsume takes one token from the bucket for (op, key). A false result
// has no side effects beyond the bucket itself.
func (l *Limiter) TryConsume(ctx context.Context, op Operation, key string) (bool, error) {
	p, ok := l.policies[op]
	if !ok {
		return false, ErrUnknownOperation
	}
	allowed, err := l.store.Take(ctx, string(op)+":"+NormalizeKey(key), p, l.now())
	if err != nil {
		l.metrics.observe(op, "error")
		return false, err
	}
	if allowed {
		l.metrics.observe(op, "allowed")
	} else {
		l.metrics.observe(op, "denied")
	}
	return allowed, nil
}

type metrics struct {
	decisions *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sessiond_ratelimit_decisions_total",
			Help: "Rate limiter decisions by operation and outcome.",
		}, []string{"operation", "decision"}),
	}
	reg.MustRegister(m.decisions)
	return m
}

func (m *metrics) observe(op Operation, decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(op), decision).Inc()
}
