// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package models

import (
	"time"

	"github.com/google/uuid"
)

// RawLog is one ingested chunk of log text before parsing. Immutable,
// append-only: reprocessing a raw log produces new ParsedEvent rows, it
// never mutates the raw content.
type RawLog struct {
	ID         uuid.UUID `json:"id"`
	Content    string    `json:"content"`
	Source     string    `json:"source"`
	IngestedAt time.Time `json:"ingested_at"`
}

// NewRawLog constructs a RawLog with a fresh ID and the current time.
func NewRawLog(content, source string) *RawLog {
	return &RawLog{
		ID:         uuid.New(),
		Content:    content,
		Source:     source,
		IngestedAt: time.Now().UTC(),
	}
}

// ParsedEvent is one structured log line extracted from a RawLog.
// Many events may reference the same raw log. Immutable once created.
type ParsedEvent struct {
	ID        uuid.UUID `json:"id"`
	RawLogID  uuid.UUID `json:"raw_log_id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Category  Category  `json:"category"`
	ParsedAt  time.Time `json:"parsed_at"`

	// Sequence preserves the line order of the underlying raw log within a
	// single source. No ordering is guaranteed across sources.
	Sequence int64 `json:"sequence"`

	// Metadata carries parse flags such as "timestamp_inferred" when the
	// line had no parseable timestamp and ingestion time was used.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TimestampInferredKey flags that the event timestamp fell back to
// ingestion time because the line carried none.
const TimestampInferredKey = "timestamp_inferred"

// ParseFallbackKey flags that the line matched no structural pattern and
// was kept verbatim as the event message.
const ParseFallbackKey = "parse_fallback"

// FeedKey holds the name of the monitored feed a line came from when the
// parser promotes an extracted program or service name to Source.
const FeedKey = "feed"

// EventWithAnalysis pairs an event with its current analysis result, if
// any. Used by the event query interface.
type EventWithAnalysis struct {
	Event    *ParsedEvent    `json:"event"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
}

// LineBatch is the unit of handoff from a file watcher to the ingestion
// queue: the complete lines read in one poll cycle plus the offset the
// source cursor should advance to once the batch is accepted.
type LineBatch struct {
	SourceID   uuid.UUID
	SourceName string
	Lines      []string
	NewOffset  int64

	// Seq is a per-source monotonic batch number used downstream to
	// preserve intra-source ordering at persistence time.
	Seq int64
}
