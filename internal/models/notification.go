// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationRecord is the audit trail for one delivery attempt to one
// subscriber channel. Terminal after at most one retry.
type NotificationRecord struct {
	ID           uuid.UUID          `json:"id"`
	EventID      uuid.UUID          `json:"event_id"`
	Channel      string             `json:"channel"`
	Status       NotificationStatus `json:"status"`
	Attempts     int                `json:"attempts"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// NewNotificationRecord constructs a pending record for an event/channel pair.
func NewNotificationRecord(eventID uuid.UUID, channel string) *NotificationRecord {
	return &NotificationRecord{
		ID:        uuid.New(),
		EventID:   eventID,
		Channel:   channel,
		Status:    NotificationPending,
		CreatedAt: time.Now().UTC(),
	}
}

// MarkSent transitions the record to its sent terminal state.
func (n *NotificationRecord) MarkSent() {
	now := time.Now().UTC()
	n.Status = NotificationSent
	n.SentAt = &now
}

// MarkFailed transitions the record to its failed terminal state.
func (n *NotificationRecord) MarkFailed(errMsg string) {
	n.Status = NotificationFailed
	n.ErrorMessage = errMsg
}
