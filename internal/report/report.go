// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package report aggregates analyzed events over a bounded window into
// severity and category distributions. Output is plain data; rendering
// is a consumer concern.
package report

import (
	"context"
	"time"

	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/store"
)

// topEventLimit caps the highest-severity-events section.
const topEventLimit = 10

// Report is one aggregation over [WindowStart, WindowEnd].
type Report struct {
	GeneratedAt          time.Time                  `json:"generated_at"`
	WindowStart          time.Time                  `json:"window_start"`
	WindowEnd            time.Time                  `json:"window_end"`
	TotalAnalyzed        int                        `json:"total_analyzed"`
	SeverityDistribution []SeverityCount            `json:"severity_distribution"`
	CategoryDistribution []CategoryCount            `json:"category_distribution"`
	TopEvents            []models.EventWithAnalysis `json:"top_events"`
}

// SeverityCount is one severity bucket of the distribution.
type SeverityCount struct {
	Severity int `json:"severity"`
	Count    int `json:"count"`
}

// CategoryCount is one category bucket of the distribution.
type CategoryCount struct {
	Category models.Category `json:"category"`
	Count    int             `json:"count"`
}

// Generator builds reports from the store.
type Generator struct {
	store         *store.Store
	defaultWindow time.Duration
	maxWindow     time.Duration
}

// NewGenerator creates a generator. Zero windows fall back to 24h
// default and 7d maximum.
func NewGenerator(st *store.Store, defaultWindow, maxWindow time.Duration) *Generator {
	if defaultWindow <= 0 {
		defaultWindow = 24 * time.Hour
	}
	if maxWindow <= 0 {
		maxWindow = 7 * 24 * time.Hour
	}
	return &Generator{store: st, defaultWindow: defaultWindow, maxWindow: maxWindow}
}

// Generate aggregates the given window ending now. A non-positive window
// uses the default; anything beyond the maximum is clamped to it.
func (g *Generator) Generate(ctx context.Context, window time.Duration) (*Report, error) {
	if window <= 0 {
		window = g.defaultWindow
	}
	if window > g.maxWindow {
		window = g.maxWindow
	}

	now := time.Now().UTC()
	since := now.Add(-window)

	sevBuckets, err := g.store.AggregateSeverity(ctx, since, now)
	if err != nil {
		return nil, err
	}
	catBuckets, err := g.store.AggregateCategories(ctx, since, now)
	if err != nil {
		return nil, err
	}
	top, err := g.store.TopEvents(ctx, since, now, topEventLimit)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		GeneratedAt:          now,
		WindowStart:          since,
		WindowEnd:            now,
		SeverityDistribution: make([]SeverityCount, 0, len(sevBuckets)),
		CategoryDistribution: make([]CategoryCount, 0, len(catBuckets)),
		TopEvents:            top,
	}
	for _, b := range sevBuckets {
		rep.TotalAnalyzed += b.Count
		rep.SeverityDistribution = append(rep.SeverityDistribution, SeverityCount{Severity: b.Severity, Count: b.Count})
	}
	for _, b := range catBuckets {
		rep.CategoryDistribution = append(rep.CategoryDistribution, CategoryCount{Category: b.Category, Count: b.Count})
	}
	return rep, nil
}
