package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMirrorMetrics counts how the ledger worker settled each delivery.
// Outcomes: mirrored, duplicate, skipped, dropped, retried.
type LedgerMirrorMetrics struct {
	messages *prometheus.CounterVec
}

func NewLedgerMirrorMetrics(reg prometheus.Registerer) *LedgerMirrorMetrics {
	if reg == nil {
		return nil
	}
	m := &LedgerMirrorMetrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger_mirror",
			Name:      "messages_total",
			Help:      "Shift event deliveries handled by the ledger mirror, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.messages)
	return m
}

func (m *LedgerMirrorMetrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(normalizeLabel(outcome)).Inc()
}
