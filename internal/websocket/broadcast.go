// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package websocket

import (
	"context"
	"time"

	"github.com/argus-monitor/argus/internal/models"
)

// MetricsBroadcaster periodically pushes a pipeline gauge snapshot to
// every connected client.
type MetricsBroadcaster struct {
	hub      *Hub
	snapshot func() models.PipelineGauges
	interval time.Duration
}

// NewMetricsBroadcaster creates the broadcast loop. A zero interval
// defaults to 15s.
func NewMetricsBroadcaster(hub *Hub, snapshot func() models.PipelineGauges, interval time.Duration) *MetricsBroadcaster {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &MetricsBroadcaster{hub: hub, snapshot: snapshot, interval: interval}
}

// String names the broadcaster in supervisor logs.
func (b *MetricsBroadcaster) String() string {
	return "metrics-broadcaster"
}

// Serve runs until the context is cancelled. Implements suture.Service.
func (b *MetricsBroadcaster) Serve(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if b.hub.ClientCount() == 0 {
				continue
			}
			b.hub.BroadcastMetrics(b.snapshot())
		}
	}
}
