// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package models

import (
	"time"

	"github.com/google/uuid"
)

// LogSource is a configured, independently-monitored log origin with its
// own read cursor. The offset never decreases except on an explicit
// truncation reset to zero.
//
// Only the source's own watcher mutates Offset and Size; status reads may
// happen concurrently, so mutation goes through the registry which holds
// the lock.
type LogSource struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	Path          string       `json:"path"`
	Enabled       bool         `json:"enabled"`
	Offset        int64        `json:"offset"`
	Size          int64        `json:"size"`
	Status        SourceStatus `json:"status"`
	LastMonitored *time.Time   `json:"last_monitored,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// NewLogSource constructs an inactive LogSource for the given file path.
func NewLogSource(name, path string) *LogSource {
	return &LogSource{
		ID:        uuid.New(),
		Name:      name,
		Path:      path,
		Enabled:   true,
		Status:    SourceInactive,
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a copy safe to hand to readers while the registry keeps
// mutating the original.
func (s *LogSource) Clone() *LogSource {
	c := *s
	if s.LastMonitored != nil {
		t := *s.LastMonitored
		c.LastMonitored = &t
	}
	return &c
}
