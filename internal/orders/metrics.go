package orders

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Submitted        *prometheus.CounterVec
	Decisions        *prometheus.CounterVec
	FreezeFailures   prometheus.Counter
	ApprovalDuration prometheus.Histogram
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Submitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_submitted_total",
				Help: "Total orders accepted for review.",
			},
			[]string{"trade_type"},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_decisions_total",
				Help: "Total review decisions on orders.",
			},
			[]string{"action"},
		),
		FreezeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "order_freeze_failures_total",
				Help: "Submissions refused for insufficient funds or shares.",
			},
		),
		ApprovalDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_approval_duration_seconds",
				Help:    "Approval execution duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(m.Submitted, m.Decisions, m.FreezeFailures, m.ApprovalDuration)
	return m
}
