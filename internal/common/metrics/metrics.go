// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationAdmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_admissions_total",
			Help: "Total number of generation submissions by outcome",
		},
		[]string{"outcome"},
	)

	GenerationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_transitions_total",
			Help: "Total number of lifecycle transitions by target status",
		},
		[]string{"to"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "generation_duration_seconds",
			Help: "Duration from admission to terminal status in seconds",
		},
		[]string{"status"},
	)

	ArtifactExports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_exports_total",
			Help: "Total number of artifact exports by format and cache outcome",
		},
		[]string{"format", "cache"},
	)

	GenerationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "generations_active",
			Help: "Number of generations currently pending or running",
		},
	)
)
