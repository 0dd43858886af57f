package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DiscountMetrics tracks discount evaluations and the stores behind them.
type DiscountMetrics struct {
	Evaluations  *prometheus.CounterVec
	Candidates   *prometheus.CounterVec
	Duration     prometheus.Histogram
	CacheLookups *prometheus.CounterVec
	RateLimited  *prometheus.CounterVec
}

// NewDiscountMetrics registers the discount collectors. A nil registerer uses the default one.
func NewDiscountMetrics(namespace string, reg prometheus.Registerer) *DiscountMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &DiscountMetrics{
		Evaluations: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_evaluations_total",
			Help:      "Discount evaluations by outcome.",
		}, []string{"outcome"})),
		Candidates: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_candidates_total",
			Help:      "Discount candidates emitted by strategy.",
		}, []string{"strategy"})),
		Duration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discount_evaluation_duration_ms",
			Help:      "Discount evaluation latency in milliseconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		})),
		CacheLookups: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_definition_cache_total",
			Help:      "Stored definition cache lookups by result.",
		}, []string{"result"})),
		RateLimited: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"})),
	}
}

// ObserveEvaluation records one evaluation. Nil receivers are ignored.
func (m *DiscountMetrics) ObserveEvaluation(outcome string, candidates map[string]int, took time.Duration) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(outcome).Inc()
	for strategy, n := range candidates {
		if n > 0 {
			m.Candidates.WithLabelValues(strategy).Add(float64(n))
		}
	}
	m.Duration.Observe(DurationMillis(took))
}

// ObserveCache records a definition cache hit or miss.
func (m *DiscountMetrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveRateLimited counts a rejected request.
func (m *DiscountMetrics) ObserveRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}
