package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracklens_runs_total",
			Help: "Total number of tracker runs by terminal status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracklens_run_duration_seconds",
			Help:    "Duration of tracker runs in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	AdapterItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracklens_adapter_items_total",
			Help: "Total candidate items returned per source adapter",
		},
		[]string{"source"},
	)

	AdapterFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracklens_adapter_failures_total",
			Help: "Total failed adapter calls per source",
		},
		[]string{"source"},
	)

	EnrichFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracklens_enrich_fallbacks_total",
			Help: "Total enrichment batches returned unenriched after a parse or transport failure",
		},
	)

	ResultsPersistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracklens_results_persisted_total",
			Help: "Total tracker results written to storage",
		},
	)
)
