// Package metrics exposes the relay counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdnlcl_events_total",
		Help: "Relay events by type",
	}, []string{"type"})
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tmdnlcl_cycle_duration_seconds",
		Help:    "Duration of one account polling cycle",
		Buckets: prometheus.DefBuckets,
	})
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tmdnlcl_sweep_duration_seconds",
		Help:    "Duration of one sweep over all accounts",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})
	BusyWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tmdnlcl_busy_workers",
		Help: "Workers currently running a cycle",
	})
	Accounts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tmdnlcl_accounts",
		Help: "Accounts enqueued by the last sweep",
	})
)

func init() {
	prometheus.MustRegister(Events, CycleDuration, SweepDuration, BusyWorkers, Accounts)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records the duration of a cycle started at start.
func ObserveCycle(start time.Time) {
	CycleDuration.Observe(time.Since(start).Seconds())
}

func ObserveSweep(start time.Time) {
	SweepDuration.Observe(time.Since(start).Seconds())
}

// IncEvent adds n to the counter of an event type.
func IncEvent(typ string, n uint) {
	Events.WithLabelValues(typ).Add(float64(n))
}
