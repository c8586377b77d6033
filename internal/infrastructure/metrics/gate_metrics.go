package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
)

// GateMetrics contains Prometheus metrics for admission control. Principals are never
// used as labels.
type GateMetrics struct {
	decisions *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	degraded  *prometheus.CounterVec
	spend     *prometheus.CounterVec
}

// NewGateMetrics registers the collectors with reg. A nil reg uses the default registry.
func NewGateMetrics(reg prometheus.Registerer) *GateMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &GateMetrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_admission_decisions_total",
				Help: "Admission decisions by operation class and reason",
			},
			[]string{"operation_class", "reason"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quota_admission_duration_seconds",
				Help:    "Time spent deciding an admission",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation_class"},
		),
		degraded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_store_degradations_total",
				Help: "Shared store failures handled by a failure policy",
			},
			[]string{"component"},
		),
		spend: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_recorded_spend_usd_total",
				Help: "Realized cost committed to the ledger in USD",
			},
			[]string{"tier"},
		),
	}
}

func (m *GateMetrics) ObserveDecision(op quota.OperationClass, reason quota.Reason, elapsed time.Duration) {
	m.decisions.WithLabelValues(op.String(), string(reason)).Inc()
	m.latency.WithLabelValues(op.String()).Observe(elapsed.Seconds())
}

func (m *GateMetrics) IncDegraded(component string) {
	m.degraded.WithLabelValues(component).Inc()
}

func (m *GateMetrics) AddSpend(tier quota.Tier, amount float64) {
	if amount <= 0 {
		return
	}
	m.spend.WithLabelValues(tier.String()).Add(amount)
}
