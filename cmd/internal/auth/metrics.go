package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	resets        *prometheus.CounterVec
	lockouts      prometheus.Counter
	verifySeconds prometheus.Histogram
}

// newMetrics returns nil when reg is nil; every method tolerates a nil receiver.
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiond",
			Subsystem: "auth",
			Name:      "login_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiond",
			Subsystem: "auth",
			Name:      "refresh_total",
			Help:      "Refresh attempts by outcome.",
		}, []string{"outcome"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiond",
			Subsystem: "auth",
			Name:      "password_reset_requests_total",
			Help:      "Password reset requests by internal outcome.",
		}, []string{"outcome"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sessiond",
			Subsystem: "auth",
			Name:      "lockouts_total",
			Help:      "Accounts transitioned into the locked state.",
		}),
		verifySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sessiond",
			Subsystem: "auth",
			Name:      "password_verify_seconds",
			Help:      "Password verification latency.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
	reg.MustRegister(m.logins, m.refreshes, m.resets, m.lockouts, m.verifySeconds)
	return m
}

func (m *metrics) login(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *metrics) refresh(outcome string) {
	if m != nil {
		m.refreshes.WithLabelValues(outcome).Inc()
	}
}

func (m *metrics) reset(outcome string) {
	if m != nil {
		m.resets.WithLabelValues(outcome).Inc()
	}
}

func (m *metrics) locked() {
	if m != nil {
		m.lockouts.Inc()
	}
}

func (m *metrics) verified(d time.Duration) {
	if m != nil {
		m.verifySeconds.Observe(d.Seconds())
	}
}
