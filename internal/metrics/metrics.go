package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, path, and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reworder_requests_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "path", "status"})

	// RewordDuration tracks generation latency per model and style.
	RewordDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reworder_reword_duration_seconds",
		Help:    "Time spent generating a rewording.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"model", "style"})

	// RewordsTotal counts finished generations by outcome (ok, error).
	RewordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reworder_rewords_total",
		Help: "Total rewording attempts that reached the engine.",
	}, []string{"model", "outcome"})

	// InputChars tracks the distribution of input sentence lengths.
	InputChars = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reworder_input_chars",
		Help:    "Number of characters in reword input text.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})

	// ModelLoadsTotal counts model loads by backend and outcome (ok, error).
	ModelLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reworder_model_loads_total",
		Help: "Total model load attempts.",
	}, []string{"backend", "outcome"})

	// ModelLoadDuration tracks time to acquire an engine per backend.
	ModelLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reworder_model_load_duration_seconds",
		Help:    "Time spent acquiring a model engine.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"backend"})

	// AdapterAvailable tracks whether each backend is reachable.
	AdapterAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reworder_adapter_available",
		Help: "Whether a generation backend is available (1) or not (0).",
	}, []string{"adapter"})

	// ActiveSessions is the number of sessions held in memory.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reworder_active_sessions",
		Help: "Number of live rewording sessions.",
	})
)
