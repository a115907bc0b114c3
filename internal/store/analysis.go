// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/models"
)

// InsertAnalysis persists one severity verdict.
func (s *Store) InsertAnalysis(ctx context.Context, res *models.AnalysisResult) error {
	recs, err := json.Marshal(res.Recommendations)
	if err != nil {
		return fmt.Errorf("encoding recommendations: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_results (id, event_id, severity_score, explanation, recommendations, analyzed_at, origin)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.ID.String(), res.EventID.String(), res.SeverityScore,
		res.Explanation, string(recs), formatTime(res.AnalyzedAt), string(res.Origin),
	)
	if err != nil {
		return fmt.Errorf("inserting analysis result: %w", err)
	}
	return nil
}

// GetLatestAnalysis returns the most recent verdict for an event.
func (s *Store) GetLatestAnalysis(ctx context.Context, eventID uuid.UUID) (*models.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, event_id, severity_score, explanation, recommendations, analyzed_at, origin
		 FROM analysis_results WHERE event_id = ? ORDER BY analyzed_at DESC LIMIT 1`,
		eventID.String())

	var (
		res              models.AnalysisResult
		id, evID         string
		recs, analyzedAt string
		origin           string
	)
	err := row.Scan(&id, &evID, &res.SeverityScore, &res.Explanation, &recs, &analyzedAt, &origin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning analysis result: %w", err)
	}
	if res.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing analysis id: %w", err)
	}
	if res.EventID, err = uuid.Parse(evID); err != nil {
		return nil, fmt.Errorf("parsing event id: %w", err)
	}
	if res.AnalyzedAt, err = parseTime(analyzedAt); err != nil {
		return nil, fmt.Errorf("parsing analyzed_at: %w", err)
	}
	if recs != "" {
		if err := json.Unmarshal([]byte(recs), &res.Recommendations); err != nil {
			return nil, fmt.Errorf("decoding recommendations: %w", err)
		}
	}
	res.Origin = models.AnalysisOrigin(origin)
	return &res, nil
}

// SeverityBucket is one row of a severity distribution aggregate.
type SeverityBucket struct {
	Severity int
	Count    int
}

// CategoryBucket is one row of a category distribution aggregate.
type CategoryBucket struct {
	Category models.Category
	Count    int
}

// AggregateSeverity buckets verdicts by score inside [since, until].
func (s *Store) AggregateSeverity(ctx context.Context, since, until time.Time) ([]SeverityBucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT severity_score, COUNT(*) FROM analysis_results
		 WHERE analyzed_at >= ? AND analyzed_at <= ?
		 GROUP BY severity_score ORDER BY severity_score`,
		formatTime(since), formatTime(until))
	if err != nil {
		return nil, fmt.Errorf("aggregating severity: %w", err)
	}
	defer rows.Close()

	var buckets []SeverityBucket
	for rows.Next() {
		var b SeverityBucket
		if err := rows.Scan(&b.Severity, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// AggregateCategories buckets events by category inside [since, until].
func (s *Store) AggregateCategories(ctx context.Context, since, until time.Time) ([]CategoryBucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM parsed_events
		 WHERE parsed_at >= ? AND parsed_at <= ?
		 GROUP BY category ORDER BY COUNT(*) DESC`,
		formatTime(since), formatTime(until))
	if err != nil {
		return nil, fmt.Errorf("aggregating categories: %w", err)
	}
	defer rows.Close()

	var buckets []CategoryBucket
	for rows.Next() {
		var b CategoryBucket
		var cat string
		if err := rows.Scan(&cat, &b.Count); err != nil {
			return nil, err
		}
		b.Category = models.Category(cat)
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// TopEvents returns the highest-severity events inside [since, until].
func (s *Store) TopEvents(ctx context.Context, since, until time.Time, limit int) ([]models.EventWithAnalysis, error) {
	query := selectEventSQL + `
		WHERE a.analyzed_at >= ? AND a.analyzed_at <= ?
		ORDER BY a.severity_score DESC, e.timestamp DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, formatTime(since), formatTime(until))
	if err != nil {
		return nil, fmt.Errorf("querying top events: %w", err)
	}
	defer rows.Close()

	var events []models.EventWithAnalysis
	for rows.Next() {
		ev, err := scanEventWithAnalysis(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}
