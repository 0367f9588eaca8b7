package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Graph metrics
	GraphNodeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aeo_graph_nodes_total",
			Help: "Number of nodes in the product graph",
		},
		[]string{"node_type"},
	)

	GraphEdgeCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aeo_graph_edges_total",
		Help: "Number of edges in the product graph",
	})

	// Relationship analysis metrics
	AnalysisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeo_relationship_analysis_total",
			Help: "Relationship analyses by outcome",
		},
		[]string{"outcome"},
	)

	JudgmentsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeo_judgments_dropped_total",
			Help: "Relationship judgments dropped by the normalizer",
		},
		[]string{"reason"},
	)

	JudgmentsClamped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aeo_judgments_clamped_total",
		Help: "Relationship judgments whose score was clamped into [0,1]",
	})

	BatchProducts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeo_batch_products_total",
			Help: "Products handled by batch relationship analysis",
		},
		[]string{"status"},
	)

	// Scoring metrics
	AEOScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aeo_score",
		Help:    "Distribution of computed AEO scores",
		Buckets: prometheus.LinearBuckets(10, 10, 10),
	})

	// Model metrics
	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aeo_model_call_duration_seconds",
			Help:    "Latency of language model calls",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"kind", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aeo_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
