package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "galerasync"

// Metrics are the Prometheus collectors updated by a Reconciler.
type Metrics struct {
	Cycles          *prometheus.CounterVec
	Peers           prometheus.Gauge
	LastApplyTime   prometheus.Gauge
	ApplyFailStreak prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_cycles_total",
				Help:      "Number of reconciliation cycles, by result.",
			},
			[]string{"result"},
		),
		Peers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "applied_peers",
				Help:      "Number of peers in the last successfully applied membership.",
			},
		),
		LastApplyTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_apply_timestamp_seconds",
				Help:      "Unix time of the last successful membership update.",
			},
		),
		ApplyFailStreak: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "consecutive_apply_failures",
				Help:      "Number of membership updates that failed in a row.",
			},
		),
	}
	reg.MustRegister(m.Cycles, m.Peers, m.LastApplyTime, m.ApplyFailStreak)
	return m
}
