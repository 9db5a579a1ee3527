package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcilerMetrics records payment reconciliation outcomes.
type ReconcilerMetrics struct {
	pollDuration  *prometheus.HistogramVec
	confirmations *prometheus.CounterVec
	expirations   *prometheus.CounterVec
	failures      *prometheus.CounterVec
	integrity     prometheus.Counter
}

// NewReconcilerMetrics registers the reconciler metrics on the provided registerer.
func NewReconcilerMetrics(reg prometheus.Registerer) *ReconcilerMetrics {
	if reg == nil {
		return &ReconcilerMetrics{}
	}
	pollDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_poll_duration_seconds",
		Help:    "Duration of a full gateway polling cycle in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirmations_total",
		Help: "Payment attempts confirmed, by gateway and source.",
	}, []string{"gateway", "source"})
	expirations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_expirations_total",
		Help: "Payment attempts expired after exhausting the polling budget.",
	}, []string{"gateway"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_failures_total",
		Help: "Payment attempts the gateway reported as failed.",
	}, []string{"gateway"})
	integrity := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_integrity_alerts_total",
		Help: "Confirmations whose amount disagreed with the order amount.",
	})
	reg.MustRegister(pollDuration, confirmations, expirations, failures, integrity)
	return &ReconcilerMetrics{
		pollDuration:  pollDuration,
		confirmations: confirmations,
		expirations:   expirations,
		failures:      failures,
		integrity:     integrity,
	}
}

// ObservePollDuration records how long a polling cycle took for the gateway.
func (m *ReconcilerMetrics) ObservePollDuration(gateway string, duration time.Duration) {
	if m == nil || m.pollDuration == nil {
		return
	}
	m.pollDuration.WithLabelValues(normalizeLabel(gateway)).Observe(duration.Seconds())
}

// IncConfirmation counts a confirmed attempt. Source is "poll" or "webhook".
func (m *ReconcilerMetrics) IncConfirmation(gateway, source string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(gateway), normalizeLabel(source)).Inc()
}

// IncExpiration counts an attempt expired by the polling budget.
func (m *ReconcilerMetrics) IncExpiration(gateway string) {
	if m == nil || m.expirations == nil {
		return
	}
	m.expirations.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncFailure counts an attempt the gateway reported failed.
func (m *ReconcilerMetrics) IncFailure(gateway string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncIntegrityAlert counts an amount-mismatch confirmation.
func (m *ReconcilerMetrics) IncIntegrityAlert() {
	if m == nil || m.integrity == nil {
		return
	}
	m.integrity.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
