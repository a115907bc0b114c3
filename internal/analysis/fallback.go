// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/argus-monitor/argus/internal/models"
)

// categoryBaseSeverity anchors each category before keyword modifiers.
var categoryBaseSeverity = map[models.Category]int{
	models.CategorySecurity:       6,
	models.CategoryAuthentication: 5,
	models.CategoryKernel:         5,
	models.CategoryNetwork:        4,
	models.CategorySystem:         3,
	models.CategoryApplication:    3,
	models.CategoryUnknown:        2,
}

// severityModifier bumps or drops the base score when its keyword
// appears in the message. Evaluated in order; every hit applies.
type severityModifier struct {
	keyword string
	delta   int
}

var severityModifiers = []severityModifier{
	{"panic", 4},
	{"critical", 3},
	{"breach", 3},
	{"exploit", 3},
	{"malware", 3},
	{"attack", 2},
	{"intrusion", 2},
	{"unauthorized", 2},
	{"fatal", 2},
	{"root", 2},
	{"failed password", 2},
	{"invalid user", 2},
	{"denied", 1},
	{"error", 1},
	{"failure", 1},
	{"warning", -1},
	{"debug", -2},
	{"info", -1},
}

// recommendationsByCategory carries the canned operator guidance the
// fallback attaches per category.
var recommendationsByCategory = map[models.Category][]string{
	models.CategoryAuthentication: {
		"Review authentication logs for repeated failures from the same origin",
		"Verify the affected account and consider forcing a credential rotation",
	},
	models.CategorySecurity: {
		"Investigate the denied or flagged activity for signs of intrusion",
		"Cross-check firewall and audit trails around the event timestamp",
	},
	models.CategoryKernel: {
		"Check system resource usage and kernel ring buffer for related errors",
	},
	models.CategoryNetwork: {
		"Verify connectivity and inspect traffic to the referenced endpoints",
	},
	models.CategorySystem: {
		"Confirm the affected service state and review recent unit changes",
	},
	models.CategoryApplication: {
		"Inspect application logs around the event for the failing operation",
	},
	models.CategoryUnknown: {
		"Review the raw line and extend parsing rules if this format recurs",
	},
}

// FallbackScorer is the deterministic rule-based scorer. It never fails:
// category sets a base severity, message keywords adjust it, and the
// result is clamped into the valid range.
type FallbackScorer struct{}

// NewFallbackScorer builds the rule-based scorer.
func NewFallbackScorer() *FallbackScorer {
	return &FallbackScorer{}
}

// Score produces a verdict marked origin=fallback. The error return is
// always nil; it exists to satisfy Scorer.
func (f *FallbackScorer) Score(_ context.Context, ev *models.ParsedEvent) (*models.AnalysisResult, error) {
	score := categoryBaseSeverity[ev.Category]
	if score == 0 {
		score = categoryBaseSeverity[models.CategoryUnknown]
	}

	lower := strings.ToLower(ev.Message)
	var hits []string
	for _, mod := range severityModifiers {
		if strings.Contains(lower, mod.keyword) {
			score += mod.delta
			hits = append(hits, mod.keyword)
		}
	}

	explanation := fmt.Sprintf("Rule-based assessment: %s event with base severity %d",
		ev.Category, categoryBaseSeverity[ev.Category])
	if len(hits) > 0 {
		explanation += fmt.Sprintf(", adjusted by keywords: %s", strings.Join(hits, ", "))
	}

	return models.NewAnalysisResult(ev.ID, score, explanation,
		recommendationsByCategory[ev.Category], models.OriginFallback), nil
}
