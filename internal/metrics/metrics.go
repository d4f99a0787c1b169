// Package metrics exposes ledger counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coinflip"

// Ledger holds the wager and audit collectors.
type Ledger struct {
	wagers   *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
	drifted  prometheus.Gauge
}

// New creates the ledger collectors and registers them with reg.
func New(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		wagers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wagers_total",
			Help:      "settled wagers by outcome",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wager_failures_total",
			Help:      "rejected or failed wagers by reason",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wager_duration_seconds",
			Help:      "time to resolve a settled wager, lock wait included",
			Buckets:   prometheus.DefBuckets,
		}),
		drifted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_drifted_accounts",
			Help:      "accounts whose balance disagreed with their wager history in the last audit",
		}),
	}
	reg.MustRegister(m.wagers, m.failures, m.duration, m.drifted)
	return m
}

// ObserveWager counts a settled wager.
func (m *Ledger) ObserveWager(win bool, elapsed time.Duration) {
	outcome := "loss"
	if win {
		outcome = "win"
	}
	m.wagers.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveFailure counts a wager that was not applied.
func (m *Ledger) ObserveFailure(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}

// SetDriftedAccounts records the result of the last audit.
func (m *Ledger) SetDriftedAccounts(n int) {
	m.drifted.Set(float64(n))
}
