// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package store is the SQLite persistence layer. All pipeline state that
// must survive a restart lives here: sources and their read cursors, raw
// logs, parsed events, analysis results, notification records, and
// processing metric samples.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/argus-monitor/argus/internal/logging"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// timeLayout is the canonical column format for timestamps. RFC3339Nano
// sorts lexicographically within a single UTC zone, which keeps ORDER BY
// on timestamp columns correct.
const timeLayout = time.RFC3339Nano

// Store wraps the SQLite connection and owns the schema.
type Store struct {
	path string
	db   *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. busyTimeout guards against SQLITE_BUSY under the
// write-heavy ingestion path.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// modernc.org/sqlite serializes writes internally; a single connection
	// avoids SQLITE_BUSY churn between the pipeline writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{path: path, db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logging.Info().Str("path", path).Msg("Database opened")
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) createSchema() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS log_sources (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			path TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			offset INTEGER NOT NULL DEFAULT 0,
			size INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'inactive',
			last_monitored TEXT,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS raw_logs (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			ingested_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS parsed_events (
			id TEXT PRIMARY KEY,
			raw_log_id TEXT NOT NULL REFERENCES raw_logs(id),
			timestamp TEXT NOT NULL,
			source TEXT NOT NULL,
			message TEXT NOT NULL,
			category TEXT NOT NULL,
			parsed_at TEXT NOT NULL,
			sequence INTEGER NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_results (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL REFERENCES parsed_events(id),
			severity_score INTEGER NOT NULL,
			explanation TEXT NOT NULL,
			recommendations TEXT NOT NULL DEFAULT '[]',
			analyzed_at TEXT NOT NULL,
			origin TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notification_records (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			sent_at TEXT,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS processing_metrics (
			id TEXT PRIMARY KEY,
			source_name TEXT NOT NULL,
			metric_type TEXT NOT NULL,
			value REAL NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON parsed_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_source ON parsed_events(source)`,
		`CREATE INDEX IF NOT EXISTS idx_events_category ON parsed_events(category)`,
		`CREATE INDEX IF NOT EXISTS idx_events_rawlog ON parsed_events(raw_log_id)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_event ON analysis_results(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_event ON notification_records(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_type_time ON processing_metrics(metric_type, timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

func formatNullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
