package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumehub",
			Subsystem: "generator",
			Name:      "generations_total",
			Help:      "LaTeX 生成调用总数，按 scope/outcome 细分。",
		},
		[]string{"scope", "outcome"},
	)

	generationFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumehub",
			Subsystem: "generator",
			Name:      "fallbacks_total",
			Help:      "增量生成失败后回退到全量生成的次数。",
		},
		[]string{"section"},
	)
)

// ObserveGeneration records one generation attempt.
func ObserveGeneration(scope, outcome string) {
	generationTotal.WithLabelValues(scope, outcome).Inc()
}

// ObserveGenerationFallback records an incremental-to-full fallback.
func ObserveGenerationFallback(section string) {
	generationFallbackTotal.WithLabelValues(section).Inc()
}
