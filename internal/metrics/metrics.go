// Package metrics holds the Prometheus collectors for the assistant.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Conversation turns by recognized intent and outcome",
		},
		[]string{"intent", "status"},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assistant_turn_duration_seconds",
			Help:    "Time spent processing one conversation turn",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
	)

	CommerceCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_commerce_calls_total",
			Help: "Calls to the catalog and cart backend",
		},
		[]string{"operation", "outcome"},
	)

	StructureFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_structure_fallbacks_total",
			Help: "Structured replies that used the deterministic fallback",
		},
	)

	DuplicateUtterancesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_duplicate_utterances_total",
			Help: "Final transcripts dropped as near-duplicates of the previous one",
		},
	)
)

// ObserveCommerce records one backend call outcome
func ObserveCommerce(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	CommerceCallsTotal.WithLabelValues(operation, outcome).Inc()
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
