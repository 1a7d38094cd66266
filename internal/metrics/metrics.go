// Package metrics holds the Prometheus instruments exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mixer_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mixer_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Mix generation
	MixesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mixer_mixes_generated_total",
			Help: "Total number of generated mixes",
		},
		[]string{"source", "mood"},
	)

	MixItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mixer_mix_items",
			Help:    "Number of items in generated mixes",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	RankingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mixer_ranking_duration_seconds",
			Help:    "Time spent ranking a candidate pool",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	MixesExported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mixer_mixes_exported_total",
			Help: "Total number of mixes exported as playlists",
		},
		[]string{"target"},
	)

	// Catalog sync
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mixer_sync_duration_seconds",
			Help:    "Duration of catalog syncs in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"source"},
	)

	SyncItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mixer_sync_items",
			Help: "Number of items stored by the last successful sync",
		},
		[]string{"source"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mixer_sync_errors_total",
			Help: "Total number of failed catalog syncs",
		},
		[]string{"source"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mixer_sync_last_success_timestamp",
			Help: "Unix time of the last successful sync",
		},
		[]string{"source"},
	)

	// Genre enrichment
	GenreLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mixer_genre_lookups_total",
			Help: "Genre lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mixer_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mixer_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result (success, failure, rejected)",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mixer_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordMix records a generated mix.
func RecordMix(source, mood string, items int, rankTime time.Duration) {
	if mood == "" {
		mood = "none"
	}
	MixesGenerated.WithLabelValues(source, mood).Inc()
	MixItems.Observe(float64(items))
	RankingDuration.Observe(rankTime.Seconds())
}

// RecordSync records the outcome of a catalog sync.
func RecordSync(source string, duration time.Duration, items int, err error) {
	SyncDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		SyncErrors.WithLabelValues(source).Inc()
		return
	}
	SyncItems.WithLabelValues(source).Set(float64(items))
	SyncLastSuccess.WithLabelValues(source).Set(float64(time.Now().Unix()))
}
