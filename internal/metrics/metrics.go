// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package metrics exposes Prometheus instrumentation for every pipeline
// stage: watchers, the ingestion queue, parsing, analysis dispatch,
// notification fan-out, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Watcher metrics
	WatcherLinesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_watcher_lines_read_total",
			Help: "Total number of log lines read per source",
		},
		[]string{"source"},
	)

	WatcherReadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_watcher_read_errors_total",
			Help: "Total number of source read errors",
		},
		[]string{"source"},
	)

	WatcherTruncations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_watcher_truncations_total",
			Help: "Total number of detected file truncations/rotations",
		},
		[]string{"source"},
	)

	WatcherDedupedLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_watcher_deduped_lines_total",
			Help: "Total number of lines suppressed by the rotation dedupe store",
		},
		[]string{"source"},
	)

	// Ingestion queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "argus_queue_depth",
			Help: "Current number of line batches buffered in the ingestion queue",
		},
	)

	QueueEnqueueBlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_queue_enqueue_blocked_total",
			Help: "Total number of enqueue calls that had to wait for space",
		},
	)

	// Parser metrics
	EventsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_events_parsed_total",
			Help: "Total number of parsed events per category",
		},
		[]string{"category"},
	)

	ParseFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_parse_fallbacks_total",
			Help: "Total number of lines that matched no structural pattern",
		},
	)

	ParseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_parse_batch_duration_seconds",
			Help:    "Duration of batch parse+persist operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Analysis metrics
	AnalysisCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_analysis_completed_total",
			Help: "Total number of analysis verdicts by origin",
		},
		[]string{"origin"}, // "ai", "fallback"
	)

	AnalysisRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_analysis_retries_total",
			Help: "Total number of external scoring call retries",
		},
	)

	AnalysisCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_analysis_call_duration_seconds",
			Help:    "Duration of external scoring calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "argus_analysis_breaker_state",
			Help: "Analysis circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Notification metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_notifications_sent_total",
			Help: "Total number of notifications delivered per channel",
		},
		[]string{"channel"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_notifications_failed_total",
			Help: "Total number of notifications that exhausted their retry",
		},
		[]string{"channel"},
	)

	SubscriberCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "argus_subscribers",
			Help: "Current number of connected push subscribers",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "argus_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// System metrics
	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "argus_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records one API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAnalysis records one completed verdict.
func RecordAnalysis(origin string, callDuration time.Duration) {
	AnalysisCompleted.WithLabelValues(origin).Inc()
	if callDuration > 0 {
		AnalysisCallDuration.Observe(callDuration.Seconds())
	}
}

// SetBreakerState publishes the circuit breaker state as a gauge.
func SetBreakerState(state string) {
	switch state {
	case "closed":
		BreakerState.Set(0)
	case "half-open":
		BreakerState.Set(1)
	case "open":
		BreakerState.Set(2)
	}
}
