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
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/models"
)

// InsertBatch persists a raw log together with every event parsed from it
// inside a single transaction. A crash mid-batch leaves neither an
// orphaned raw log nor events without their raw log.
func (s *Store) InsertBatch(ctx context.Context, raw *models.RawLog, events []*models.ParsedEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning batch transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO raw_logs (id, content, source, ingested_at) VALUES (?, ?, ?, ?)`,
		raw.ID.String(), raw.Content, raw.Source, formatTime(raw.IngestedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting raw log: %w", err)
	}

	if len(events) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO parsed_events (id, raw_log_id, timestamp, source, message, category, parsed_at, sequence, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing event insert: %w", err)
		}
		defer stmt.Close()

		for i, e := range events {
			meta, err := encodeMetadata(e.Metadata)
			if err != nil {
				return fmt.Errorf("encoding event metadata: %w", err)
			}
			_, err = stmt.ExecContext(ctx,
				e.ID.String(), e.RawLogID.String(), formatTime(e.Timestamp),
				e.Source, e.Message, string(e.Category), formatTime(e.ParsedAt),
				e.Sequence, meta,
			)
			if err != nil {
				return fmt.Errorf("inserting event %d: %w", i+1, err)
			}
		}
	}

	return tx.Commit()
}

// GetRawLog fetches one raw log by ID.
func (s *Store) GetRawLog(ctx context.Context, id uuid.UUID) (*models.RawLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, source, ingested_at FROM raw_logs WHERE id = ?`, id.String())

	var (
		raw        models.RawLog
		rawID      string
		ingestedAt string
	)
	err := row.Scan(&rawID, &raw.Content, &raw.Source, &ingestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning raw log: %w", err)
	}
	if raw.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parsing raw log id: %w", err)
	}
	if raw.IngestedAt, err = parseTime(ingestedAt); err != nil {
		return nil, fmt.Errorf("parsing ingested_at: %w", err)
	}
	return &raw, nil
}

// GetEvent fetches one event with its latest analysis result, if any.
func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*models.EventWithAnalysis, error) {
	row := s.db.QueryRowContext(ctx, selectEventSQL+` WHERE e.id = ?`, id.String())
	ev, err := scanEventWithAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

// EventFilter narrows and pages an event query. Zero values mean
// "no constraint".
type EventFilter struct {
	Source      string
	Category    models.Category
	MinSeverity int
	MaxSeverity int
	Since       time.Time
	Until       time.Time
	Search      string
	Limit       int
	Offset      int
	// SortBy picks the sort column: timestamp (default), severity,
	// source, or category. Unknown values fall back to timestamp.
	SortBy string
	// SortAsc orders ascending; default is descending (newest first).
	SortAsc bool
}

// sortColumns maps filter sort names to their SQL expressions.
var sortColumns = map[string]string{
	"timestamp": "e.timestamp",
	"severity":  "a.severity_score",
	"source":    "e.source",
	"category":  "e.category",
}

// selectEventSQL joins each event against its most recent analysis row.
const selectEventSQL = `
	SELECT e.id, e.raw_log_id, e.timestamp, e.source, e.message, e.category,
	       e.parsed_at, e.sequence, e.metadata,
	       a.id, a.severity_score, a.explanation, a.recommendations, a.analyzed_at, a.origin
	FROM parsed_events e
	LEFT JOIN analysis_results a ON a.event_id = e.id
	  AND a.analyzed_at = (SELECT MAX(a2.analyzed_at) FROM analysis_results a2 WHERE a2.event_id = e.id)`

// QueryEvents returns a filtered, paginated page of events with their
// analysis results, plus the total match count for pagination.
func (s *Store) QueryEvents(ctx context.Context, f EventFilter) (*models.EventPage, error) {
	var (
		conds []string
		args  []any
	)
	if f.Source != "" {
		conds = append(conds, "e.source = ?")
		args = append(args, f.Source)
	}
	if f.Category != "" {
		conds = append(conds, "e.category = ?")
		args = append(args, string(f.Category))
	}
	if f.MinSeverity > 0 {
		conds = append(conds, "a.severity_score >= ?")
		args = append(args, f.MinSeverity)
	}
	if f.MaxSeverity > 0 {
		conds = append(conds, "a.severity_score <= ?")
		args = append(args, f.MaxSeverity)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "e.timestamp >= ?")
		args = append(args, formatTime(f.Since))
	}
	if !f.Until.IsZero() {
		conds = append(conds, "e.timestamp <= ?")
		args = append(args, formatTime(f.Until))
	}
	if f.Search != "" {
		conds = append(conds, "e.message LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(f.Search)+"%")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM parsed_events e
		LEFT JOIN analysis_results a ON a.event_id = e.id
		  AND a.analyzed_at = (SELECT MAX(a2.analyzed_at) FROM analysis_results a2 WHERE a2.event_id = e.id)` + where
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "e.timestamp"
	}
	dir := "DESC"
	if f.SortAsc {
		dir = "ASC"
	}
	order := fmt.Sprintf(" ORDER BY %s %s, e.sequence %s", col, dir, dir)

	query := selectEventSQL + where + order
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := make([]models.EventWithAnalysis, 0)
	for rows.Next() {
		ev, err := scanEventWithAnalysis(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &models.EventPage{
		Events: events,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	}, nil
}

// EventsForRawLog returns the events previously parsed from a raw log,
// ordered by their line sequence. Used by the reprocess path.
func (s *Store) EventsForRawLog(ctx context.Context, rawLogID uuid.UUID) ([]*models.ParsedEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, raw_log_id, timestamp, source, message, category, parsed_at, sequence, metadata
		 FROM parsed_events WHERE raw_log_id = ? ORDER BY sequence`, rawLogID.String())
	if err != nil {
		return nil, fmt.Errorf("querying events for raw log: %w", err)
	}
	defer rows.Close()

	var events []*models.ParsedEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// InsertEvents persists events for an existing raw log in one
// transaction. Used by reprocessing, which appends a new generation of
// events without touching the raw content.
func (s *Store) InsertEvents(ctx context.Context, events []*models.ParsedEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO parsed_events (id, raw_log_id, timestamp, source, message, category, parsed_at, sequence, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing event insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range events {
		meta, err := encodeMetadata(e.Metadata)
		if err != nil {
			return fmt.Errorf("encoding event metadata: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			e.ID.String(), e.RawLogID.String(), formatTime(e.Timestamp),
			e.Source, e.Message, string(e.Category), formatTime(e.ParsedAt),
			e.Sequence, meta,
		)
		if err != nil {
			return fmt.Errorf("inserting event %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

func scanEvent(row rowScanner) (*models.ParsedEvent, error) {
	var (
		e                 models.ParsedEvent
		id, rawID         string
		ts, parsedAt      string
		category, rawMeta string
	)
	err := row.Scan(&id, &rawID, &ts, &e.Source, &e.Message, &category, &parsedAt, &e.Sequence, &rawMeta)
	if err != nil {
		return nil, err
	}
	return finishEvent(&e, id, rawID, ts, parsedAt, category, rawMeta)
}

func scanEventWithAnalysis(row rowScanner) (*models.EventWithAnalysis, error) {
	var (
		e                 models.ParsedEvent
		id, rawID         string
		ts, parsedAt      string
		category, rawMeta string

		aID, aExplanation, aRecs, aAnalyzedAt, aOrigin sql.NullString
		aScore                                         sql.NullInt64
	)
	err := row.Scan(&id, &rawID, &ts, &e.Source, &e.Message, &category, &parsedAt, &e.Sequence, &rawMeta,
		&aID, &aScore, &aExplanation, &aRecs, &aAnalyzedAt, &aOrigin)
	if err != nil {
		return nil, err
	}

	ev, err := finishEvent(&e, id, rawID, ts, parsedAt, category, rawMeta)
	if err != nil {
		return nil, err
	}

	out := &models.EventWithAnalysis{Event: ev}
	if aID.Valid {
		res := &models.AnalysisResult{
			SeverityScore: int(aScore.Int64),
			Explanation:   aExplanation.String,
			Origin:        models.AnalysisOrigin(aOrigin.String),
			EventID:       ev.ID,
		}
		if res.ID, err = uuid.Parse(aID.String); err != nil {
			return nil, fmt.Errorf("parsing analysis id: %w", err)
		}
		if res.AnalyzedAt, err = parseTime(aAnalyzedAt.String); err != nil {
			return nil, fmt.Errorf("parsing analyzed_at: %w", err)
		}
		if aRecs.String != "" {
			if err := json.Unmarshal([]byte(aRecs.String), &res.Recommendations); err != nil {
				return nil, fmt.Errorf("decoding recommendations: %w", err)
			}
		}
		out.Analysis = res
	}
	return out, nil
}

func finishEvent(e *models.ParsedEvent, id, rawID, ts, parsedAt, category, rawMeta string) (*models.ParsedEvent, error) {
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing event id: %w", err)
	}
	if e.RawLogID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parsing raw log id: %w", err)
	}
	if e.Timestamp, err = parseTime(ts); err != nil {
		return nil, fmt.Errorf("parsing event timestamp: %w", err)
	}
	if e.ParsedAt, err = parseTime(parsedAt); err != nil {
		return nil, fmt.Errorf("parsing parsed_at: %w", err)
	}
	e.Category = models.Category(category)
	if rawMeta != "" && rawMeta != "{}" {
		if err := json.Unmarshal([]byte(rawMeta), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decoding event metadata: %w", err)
		}
	}
	return e, nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
