package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for registration and verification.
type Metrics struct {
	Registrations       *prometheus.CounterVec
	ConfirmationLatency prometheus.Histogram
	Lookups             *prometheus.CounterVec
	OrphanedRecords     prometheus.Counter
	ReconciledRecords   prometheus.Counter
}

// New creates and registers all collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_registrations_total",
			Help: "Registration workflows by final state and error kind",
		}, []string{"outcome"}),
		ConfirmationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "provenance_ledger_confirmation_seconds",
			Help:    "Time from ledger submission to observed confirmation",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		}),
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_lookups_total",
			Help: "Verification lookups by result",
		}, []string{"result"}),
		OrphanedRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "provenance_orphaned_ledger_records_total",
			Help: "Ledger confirmations whose mirror write failed",
		}),
		ReconciledRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "provenance_reconciled_records_total",
			Help: "Ledger registrations mirrored by the reconciler",
		}),
	}
}

func (m *Metrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveConfirmation(d time.Duration) {
	if m == nil {
		return
	}
	m.ConfirmationLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveLookup(result string) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncOrphaned() {
	if m == nil {
		return
	}
	m.OrphanedRecords.Inc()
}

func (m *Metrics) IncReconciled() {
	if m == nil {
		return
	}
	m.ReconciledRecords.Inc()
}
