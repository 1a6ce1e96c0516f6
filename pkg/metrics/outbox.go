package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the publisher draining outbox_events into Pub/Sub.
// A nil *OutboxMetrics records nothing.
type OutboxMetrics struct {
	published    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	deferred     prometheus.Counter
	lag          prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return nil
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox",
			Name: "published_total",
			Help: "Shift events published to Pub/Sub.",
		}, []string{"event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox",
			Name: "publish_failures_total",
			Help: "Publish attempts that will be retried.",
		}, []string{"event_type"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox",
			Name: "dead_lettered_total",
			Help: "Events parked in the DLQ.",
		}, []string{"reason"}),
		deferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox",
			Name: "deferred_total",
			Help: "Events held back because an earlier event for the same store failed in the batch.",
		}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "outbox",
			Name:    "publish_lag_seconds",
			Help:    "Time from outbox insert to successful publish.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 60, 300, 1800},
		}),
	}
	reg.MustRegister(m.published, m.failed, m.deadLettered, m.deferred, m.lag)
	return m
}

// ObservePublished counts a published event and how long it waited.
func (m *OutboxMetrics) ObservePublished(eventType string, createdAt time.Time) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
	if !createdAt.IsZero() {
		m.lag.Observe(time.Since(createdAt).Seconds())
	}
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncDeadLettered(reason string) {
	if m == nil {
		return
	}
	m.deadLettered.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *OutboxMetrics) IncDeferred() {
	if m == nil {
		return
	}
	m.deferred.Inc()
}
