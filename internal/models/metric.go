// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package models

import (
	"time"

	"github.com/google/uuid"
)

// Metric type names recorded by pipeline stages. Free-form values are
// allowed for future stages; these are the ones the core emits.
const (
	MetricLinesRead        = "lines_read"
	MetricEventsParsed     = "events_parsed"
	MetricParseFallbacks   = "parse_fallbacks"
	MetricEventsAnalyzed   = "events_analyzed"
	MetricAnalysisFallback = "analysis_fallbacks"
	MetricQueueDepth       = "queue_depth"
	MetricNotifySent       = "notifications_sent"
	MetricNotifyFailed     = "notifications_failed"
)

// ProcessingMetric is one observability sample appended by a pipeline
// stage. Append-only; retention is handled by external cleanup.
type ProcessingMetric struct {
	ID         uuid.UUID         `json:"id"`
	SourceName string            `json:"source_name"`
	MetricType string            `json:"metric_type"`
	Value      float64           `json:"value"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewProcessingMetric constructs a sample stamped with the current time.
func NewProcessingMetric(sourceName, metricType string, value float64) *ProcessingMetric {
	return &ProcessingMetric{
		ID:         uuid.New(),
		SourceName: sourceName,
		MetricType: metricType,
		Value:      value,
		Timestamp:  time.Now().UTC(),
	}
}
