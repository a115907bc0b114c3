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

// InsertNotification persists a fresh delivery record.
func (s *Store) InsertNotification(ctx context.Context, rec *models.NotificationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_records (id, event_id, channel, status, attempts, sent_at, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.EventID.String(), rec.Channel, string(rec.Status),
		rec.Attempts, formatNullableTime(rec.SentAt), rec.ErrorMessage, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting notification record: %w", err)
	}
	return nil
}

// UpdateNotification persists the outcome of a delivery attempt.
func (s *Store) UpdateNotification(ctx context.Context, rec *models.NotificationRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notification_records SET status = ?, attempts = ?, sent_at = ?, error_message = ?
		 WHERE id = ?`,
		string(rec.Status), rec.Attempts, formatNullableTime(rec.SentAt),
		rec.ErrorMessage, rec.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("updating notification record: %w", err)
	}
	return requireRow(res)
}

// GetNotification fetches one delivery record by ID.
func (s *Store) GetNotification(ctx context.Context, id uuid.UUID) (*models.NotificationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, event_id, channel, status, attempts, sent_at, error_message, created_at
		 FROM notification_records WHERE id = ?`, id.String())
	rec, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// NotificationsForEvent returns every delivery record for an event,
// oldest first.
func (s *Store) NotificationsForEvent(ctx context.Context, eventID uuid.UUID) ([]*models.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, channel, status, attempts, sent_at, error_message, created_at
		 FROM notification_records WHERE event_id = ? ORDER BY created_at`, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var recs []*models.NotificationRecord
	for rows.Next() {
		rec, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanNotification(row rowScanner) (*models.NotificationRecord, error) {
	var (
		rec       models.NotificationRecord
		id, evID  string
		status    string
		sentAt    sql.NullString
		createdAt string
	)
	err := row.Scan(&id, &evID, &rec.Channel, &status, &rec.Attempts, &sentAt, &rec.ErrorMessage, &createdAt)
	if err != nil {
		return nil, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing notification id: %w", err)
	}
	if rec.EventID, err = uuid.Parse(evID); err != nil {
		return nil, fmt.Errorf("parsing event id: %w", err)
	}
	rec.Status = models.NotificationStatus(status)
	if rec.SentAt, err = parseNullableTime(sentAt); err != nil {
		return nil, fmt.Errorf("parsing sent_at: %w", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &rec, nil
}
