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

	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/models"
)

// InsertSource persists a new log source. The name must be unique.
func (s *Store) InsertSource(ctx context.Context, src *models.LogSource) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_sources (id, name, path, enabled, offset, size, status, last_monitored, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID.String(), src.Name, src.Path, boolToInt(src.Enabled),
		src.Offset, src.Size, string(src.Status),
		formatNullableTime(src.LastMonitored), src.ErrorMessage, formatTime(src.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting source %s: %w", src.Name, err)
	}
	return nil
}

// ListSources returns every source ordered by creation time.
func (s *Store) ListSources(ctx context.Context) ([]*models.LogSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, enabled, offset, size, status, last_monitored, error_message, created_at
		 FROM log_sources ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []*models.LogSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// GetSource fetches a source by ID.
func (s *Store) GetSource(ctx context.Context, id uuid.UUID) (*models.LogSource, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, enabled, offset, size, status, last_monitored, error_message, created_at
		 FROM log_sources WHERE id = ?`, id.String())
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return src, err
}

// UpdateSourceCursor persists the read cursor and monitoring state after a
// poll cycle. It writes offset, size, status, last_monitored, and
// error_message together so a crash never leaves them inconsistent.
func (s *Store) UpdateSourceCursor(ctx context.Context, src *models.LogSource) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE log_sources SET offset = ?, size = ?, status = ?, last_monitored = ?, error_message = ?
		 WHERE id = ?`,
		src.Offset, src.Size, string(src.Status),
		formatNullableTime(src.LastMonitored), src.ErrorMessage, src.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("updating source cursor %s: %w", src.Name, err)
	}
	return requireRow(res)
}

// SetSourceEnabled flips the enabled flag and records the matching status.
func (s *Store) SetSourceEnabled(ctx context.Context, id uuid.UUID, enabled bool, status models.SourceStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE log_sources SET enabled = ?, status = ? WHERE id = ?`,
		boolToInt(enabled), string(status), id.String(),
	)
	if err != nil {
		return fmt.Errorf("updating source enabled flag: %w", err)
	}
	return requireRow(res)
}

// CountSourcesByStatus returns how many sources are in each status.
func (s *Store) CountSourcesByStatus(ctx context.Context) (map[models.SourceStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM log_sources GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting sources: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.SourceStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.SourceStatus(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.LogSource, error) {
	var (
		src           models.LogSource
		id            string
		enabled       int
		status        string
		lastMonitored sql.NullString
		createdAt     string
	)
	err := row.Scan(&id, &src.Name, &src.Path, &enabled, &src.Offset, &src.Size,
		&status, &lastMonitored, &src.ErrorMessage, &createdAt)
	if err != nil {
		return nil, err
	}
	if src.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing source id: %w", err)
	}
	src.Enabled = enabled != 0
	src.Status = models.SourceStatus(status)
	if src.LastMonitored, err = parseNullableTime(lastMonitored); err != nil {
		return nil, fmt.Errorf("parsing last_monitored: %w", err)
	}
	if src.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &src, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
