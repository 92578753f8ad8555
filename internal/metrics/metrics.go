// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation cache
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pupmatch_rec_cache_lookups_total",
			Help: "Recommendation cache lookups by tier and result",
		},
		[]string{"tier", "result"}, // tier: local|shared|last_known, result: hit|miss|error
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pupmatch_rec_cache_invalidations_total",
			Help: "Recommendation cache invalidations by source",
		},
		[]string{"source"}, // local|broadcast
	)

	LocalCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pupmatch_rec_cache_local_entries",
			Help: "Entries currently held in the process-local tier",
		},
	)

	// Tier-2 circuit breaker
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pupmatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pupmatch_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"}, // success|failure|rejected
	)

	// Generation
	Generations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pupmatch_recommend_generations_total",
			Help: "Recommendation generations by outcome",
		},
		[]string{"outcome"}, // complete|partial|error
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pupmatch_recommend_generation_seconds",
			Help:    "Duration of a recommendation generation",
			Buckets: prometheus.DefBuckets,
		},
	)

	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pupmatch_recommend_fallbacks_total",
			Help: "Reads served from a degraded source",
		},
		[]string{"source"}, // last_known|empty
	)

	// Like/Pass/Match engine
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pupmatch_decisions_total",
			Help: "Recorded decisions by kind",
		},
		[]string{"kind"}, // like|pass|unlike|unmatch
	)

	MatchEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pupmatch_match_events_total",
			Help: "Match lifecycle events by type",
		},
		[]string{"type"},
	)

	NotifyErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pupmatch_notify_errors_total",
			Help: "Match events that could not be published",
		},
	)

	// Background refresh
	RefreshRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pupmatch_refresh_runs_total",
			Help: "Background refresh runs by outcome",
		},
		[]string{"outcome"}, // ok|error
	)

	RefreshUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pupmatch_refresh_users_total",
			Help: "Per-user refreshes by outcome",
		},
		[]string{"outcome"}, // ok|partial|skipped|error
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pupmatch_refresh_run_seconds",
			Help:    "Duration of a full refresh run",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)
)
