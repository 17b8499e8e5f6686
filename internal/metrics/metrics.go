// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the tracker:
// - YouTube API call volume and quota spend
// - Queue depth and worker throughput
// - Poller health and cache efficiency
// - Home Assistant circuit breaker state

var (
	// YouTube API Metrics
	YouTubeAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "youtube_api_calls_total",
			Help: "Total YouTube Data API calls by method and outcome",
		},
		[]string{"method", "outcome"}, // outcome: "success", "failure"
	)

	YouTubeQuotaUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "youtube_quota_units_total",
			Help: "Quota units spent on successful YouTube API calls",
		},
		[]string{"method"},
	)

	QuotaBlocked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "youtube_quota_blocked",
			Help: "1 when the worker is blocked waiting for the daily quota reset",
		},
	)

	// Queue Metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Current queue items by status",
		},
		[]string{"status"}, // "pending", "processing", "completed", "failed"
	)

	QueueItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_items_processed_total",
			Help: "Queue items the worker finished, by type and outcome",
		},
		[]string{"type", "outcome"}, // type: "search", "rating"; outcome: "completed", "failed"
	)

	// Playback Metrics
	PlaysRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plays_recorded_total",
			Help: "Total play events recorded against resolved videos",
		},
	)

	RatingsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratings_applied_total",
			Help: "Ratings applied, split by whether a remote call was needed",
		},
		[]string{"source"}, // "remote", "local"
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by layer",
		},
		[]string{"cache"}, // "cooldown", "video", "search"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses by layer",
		},
		[]string{"cache"},
	)

	SearchCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_cache_entries",
			Help: "Current number of unexpired search cache rows",
		},
	)

	// Poller Metrics
	PollerCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poller_cycles_total",
			Help: "Poller cycles by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	PollerConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "poller_consecutive_failures",
			Help: "Consecutive Home Assistant poll failures",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// HTTP API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest observes one finished HTTP API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordYouTubeCall observes one YouTube API call outcome with its quota cost.
func RecordYouTubeCall(method string, success bool, quotaCost int) {
	outcome := "failure"
	if success {
		outcome = "success"
		YouTubeQuotaUnits.WithLabelValues(method).Add(float64(quotaCost))
	}
	YouTubeAPICalls.WithLabelValues(method, outcome).Inc()
}

// SetQueueDepth publishes the per-status queue depth gauges.
func SetQueueDepth(counts map[string]int) {
	for _, status := range []string{"pending", "processing", "completed", "failed"} {
		QueueDepth.WithLabelValues(status).Set(float64(counts[status]))
	}
}
