// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/argus-monitor/argus/internal/models"
)

// InsertMetric appends one processing metric sample.
func (s *Store) InsertMetric(ctx context.Context, m *models.ProcessingMetric) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processing_metrics (id, source_name, metric_type, value, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID.String(), m.SourceName, m.MetricType, m.Value, formatTime(m.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting metric sample: %w", err)
	}
	return nil
}

// SumMetric totals a metric type over [since, until], optionally scoped
// to one source.
func (s *Store) SumMetric(ctx context.Context, metricType, sourceName string, since, until time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(value), 0) FROM processing_metrics
		WHERE metric_type = ? AND timestamp >= ? AND timestamp <= ?`
	args := []any{metricType, formatTime(since), formatTime(until)}
	if sourceName != "" {
		query += ` AND source_name = ?`
		args = append(args, sourceName)
	}

	var total float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("summing metric %s: %w", metricType, err)
	}
	return total, nil
}

// PruneMetrics deletes samples older than cutoff and returns how many
// rows were removed.
func (s *Store) PruneMetrics(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM processing_metrics WHERE timestamp < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning metrics: %w", err)
	}
	return res.RowsAffected()
}
