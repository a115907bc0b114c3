// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity bounds for analysis results. Every verdict, AI or fallback,
// lands inside [SeverityMin, SeverityMax].
const (
	SeverityMin = 1
	SeverityMax = 10
)

// AnalysisResult is the severity verdict for one parsed event. Immutable;
// re-analysis produces a new record rather than mutating this one.
type AnalysisResult struct {
	ID              uuid.UUID      `json:"id"`
	EventID         uuid.UUID      `json:"event_id"`
	SeverityScore   int            `json:"severity_score"`
	Explanation     string         `json:"explanation"`
	Recommendations []string       `json:"recommendations"`
	AnalyzedAt      time.Time      `json:"analyzed_at"`
	Origin          AnalysisOrigin `json:"origin"`
}

// ClampSeverity forces a score into the valid [1,10] range. Applied at the
// boundary so a misbehaving external scorer can never produce an
// out-of-range verdict.
func ClampSeverity(score int) int {
	if score < SeverityMin {
		return SeverityMin
	}
	if score > SeverityMax {
		return SeverityMax
	}
	return score
}

// NewAnalysisResult constructs a result for an event, clamping the score.
func NewAnalysisResult(eventID uuid.UUID, score int, explanation string, recommendations []string, origin AnalysisOrigin) *AnalysisResult {
	return &AnalysisResult{
		ID:              uuid.New(),
		EventID:         eventID,
		SeverityScore:   ClampSeverity(score),
		Explanation:     explanation,
		Recommendations: recommendations,
		AnalyzedAt:      time.Now().UTC(),
		Origin:          origin,
	}
}
