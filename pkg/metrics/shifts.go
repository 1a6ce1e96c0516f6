package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Close outcomes, by the sign of the cash difference.
const (
	OutcomeBalanced = "balanced"
	OutcomeShortage = "shortage"
	OutcomeOverage  = "overage"
)

// ShiftMetrics counts shift lifecycle and drawer activity. A nil
// *ShiftMetrics is valid and records nothing.
type ShiftMetrics struct {
	opened        prometheus.Counter
	closed        *prometheus.CounterVec
	terminated    prometheus.Counter
	sales         *prometheus.CounterVec
	movements     *prometheus.CounterVec
	notifyFailed  *prometheus.CounterVec
	cashVariance  prometheus.Histogram
	duplicateSale prometheus.Counter
}

// NewShiftMetrics registers the shift metrics on the provided registerer.
func NewShiftMetrics(reg prometheus.Registerer) *ShiftMetrics {
	if reg == nil {
		return nil
	}
	m := &ShiftMetrics{
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shifts",
			Name: "opened_total",
			Help: "Shifts opened.",
		}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shifts",
			Name: "closed_total",
			Help: "Shifts closed by cashiers, by cash reconciliation outcome.",
		}, []string{"outcome"}),
		terminated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shifts",
			Name: "terminated_total",
			Help: "Shifts force-closed by an admin.",
		}),
		sales: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shifts",
			Name: "sales_recorded_total",
			Help: "Sales folded into shift totals, by payment method.",
		}, []string{"method"}),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shifts",
			Name: "cash_movements_total",
			Help: "Cash movements recorded, by direction.",
		}, []string{"type"}),
		notifyFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shifts",
			Name: "notification_failures_total",
			Help: "Shift notifications that could not be delivered.",
		}, []string{"kind"}),
		cashVariance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "shifts",
			Name:    "cash_variance_abs",
			Help:    "Absolute cash difference at close, in currency units.",
			Buckets: []float64{0, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		}),
		duplicateSale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shifts",
			Name: "duplicate_sales_total",
			Help: "Sales ignored because their sale id was already applied.",
		}),
	}
	reg.MustRegister(m.opened, m.closed, m.terminated, m.sales, m.movements, m.notifyFailed, m.cashVariance, m.duplicateSale)
	return m
}

func (m *ShiftMetrics) IncOpened() {
	if m == nil {
		return
	}
	m.opened.Inc()
}

// ObserveClosed records a cashier close and its cash difference.
func (m *ShiftMetrics) ObserveClosed(cashDifference decimal.Decimal) {
	if m == nil {
		return
	}
	m.closed.WithLabelValues(CloseOutcome(cashDifference)).Inc()
	variance, _ := cashDifference.Abs().Float64()
	m.cashVariance.Observe(variance)
}

func (m *ShiftMetrics) IncTerminated() {
	if m == nil {
		return
	}
	m.terminated.Inc()
}

func (m *ShiftMetrics) IncSale(method string) {
	if m == nil {
		return
	}
	m.sales.WithLabelValues(normalizeLabel(method)).Inc()
}

func (m *ShiftMetrics) IncDuplicateSale() {
	if m == nil {
		return
	}
	m.duplicateSale.Inc()
}

func (m *ShiftMetrics) IncMovement(kind string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *ShiftMetrics) IncNotificationFailure(kind string) {
	if m == nil {
		return
	}
	m.notifyFailed.WithLabelValues(normalizeLabel(kind)).Inc()
}

// CloseOutcome classifies a declared-minus-expected difference.
func CloseOutcome(diff decimal.Decimal) string {
	switch diff.Sign() {
	case -1:
		return OutcomeShortage
	case 1:
		return OutcomeOverage
	default:
		return OutcomeBalanced
	}
}
