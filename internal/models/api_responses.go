// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package models

import (
	"time"
)

// APIResponse is the standardized envelope used by every HTTP endpoint.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError describes a failed request. Retryable distinguishes transient
// persistence failures (caller should retry) from permanent ones such as
// validation errors or unknown IDs.
type APIError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// IngestResponse is returned by the ingestion entry point.
type IngestResponse struct {
	IngestionID string `json:"ingestion_id"`
	Status      string `json:"status"`
	Lines       int    `json:"lines"`
}

// EventPage is a paginated slice of events with their analysis results.
type EventPage struct {
	Events []EventWithAnalysis `json:"events"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// StatusSnapshot is the realtime status payload: per-source state plus
// live pipeline gauges.
type StatusSnapshot struct {
	Sources   []*LogSource   `json:"sources"`
	Pipeline  PipelineGauges `json:"pipeline"`
	Timestamp time.Time      `json:"timestamp"`
}

// PipelineGauges are the live gauges every stage feeds.
type PipelineGauges struct {
	QueueDepth           int     `json:"queue_depth"`
	QueueCapacity        int     `json:"queue_capacity"`
	EventsPerMinute      float64 `json:"events_per_minute"`
	EventsProcessed      uint64  `json:"events_processed"`
	ParseFallbacks       uint64  `json:"parse_fallbacks"`
	AnalysisFallbackRate float64 `json:"analysis_fallback_rate"`
	NotifyFailureRate    float64 `json:"notify_failure_rate"`
	Subscribers          int     `json:"subscribers"`
}

// HealthStatus is the derived health payload. Degraded is computed from
// thresholds over a recent window, never stored.
type HealthStatus struct {
	Status               string    `json:"status"`
	DatabaseConnected    bool      `json:"database_connected"`
	ActiveSources        int       `json:"active_sources"`
	ErrorSources         int       `json:"error_sources"`
	QueueDepth           int       `json:"queue_depth"`
	AnalysisFallbackRate float64   `json:"analysis_fallback_rate"`
	NotifyFailureRate    float64   `json:"notify_failure_rate"`
	Uptime               float64   `json:"uptime_seconds"`
	Timestamp            time.Time `json:"timestamp"`
}
