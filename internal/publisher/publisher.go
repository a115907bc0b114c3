// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package publisher fans analyzed events out to live subscribers and
// records every delivery attempt. Delivery is best-effort with exactly
// one retry per subscriber; after that the record is terminal and the
// event is never redelivered.
package publisher

import (
	"context"
	"time"

	"github.com/argus-monitor/argus/internal/health"
	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/metrics"
	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/store"
	"github.com/argus-monitor/argus/internal/websocket"
)

// maxAttempts is the initial attempt plus exactly one retry.
const maxAttempts = 2

// Subscriber is one delivery target. *websocket.Client satisfies this.
type Subscriber interface {
	ID() string
	Channel() string
	Deliver(ctx context.Context, msg websocket.Message) error
}

// SubscriberSource yields the current subscriber set at publish time so
// connects and disconnects between events need no coordination here.
type SubscriberSource func() []Subscriber

// HubSource adapts a websocket hub into a SubscriberSource.
func HubSource(hub *websocket.Hub) SubscriberSource {
	return func() []Subscriber {
		clients := hub.Clients()
		subs := make([]Subscriber, len(clients))
		for i, c := range clients {
			subs[i] = c
		}
		return subs
	}
}

// Publisher delivers analyzed events to subscribers.
type Publisher struct {
	store       *store.Store
	source      SubscriberSource
	monitor     *health.Monitor
	sendTimeout time.Duration
}

// New creates a publisher. monitor may be nil.
func New(st *store.Store, source SubscriberSource, monitor *health.Monitor, sendTimeout time.Duration) *Publisher {
	if sendTimeout <= 0 {
		sendTimeout = 2 * time.Second
	}
	return &Publisher{
		store:       st,
		source:      source,
		monitor:     monitor,
		sendTimeout: sendTimeout,
	}
}

// Publish delivers one analyzed event to every current subscriber. Each
// subscriber gets its own notification record; a failed attempt is
// retried once and then the record goes terminal. Errors from individual
// subscribers never abort the fan-out.
func (p *Publisher) Publish(ctx context.Context, ev *models.ParsedEvent, res *models.AnalysisResult) {
	subs := p.source()
	if len(subs) == 0 {
		return
	}

	msg := websocket.Message{
		Type: websocket.MessageTypeNewEvent,
		Data: &models.EventWithAnalysis{Event: ev, Analysis: res},
	}

	for _, sub := range subs {
		p.deliver(ctx, sub, ev, msg)
	}
}

// deliver runs the attempt/retry cycle for one subscriber and persists
// the resulting terminal record.
func (p *Publisher) deliver(ctx context.Context, sub Subscriber, ev *models.ParsedEvent, msg websocket.Message) {
	rec := models.NewNotificationRecord(ev.ID, sub.Channel())
	if err := p.store.InsertNotification(ctx, rec); err != nil {
		logging.Err(err).Str("event_id", ev.ID.String()).Msg("failed to persist notification record")
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		rec.Attempts++
		lastErr = p.attempt(ctx, sub, msg)
		if lastErr == nil {
			break
		}
		logging.Warn().
			Str("subscriber", sub.ID()).
			Str("event_id", ev.ID.String()).
			Int("attempt", rec.Attempts).
			Err(lastErr).
			Msg("notification delivery failed")
	}

	if lastErr == nil {
		rec.MarkSent()
		metrics.NotificationsSent.WithLabelValues(sub.Channel()).Inc()
	} else {
		rec.MarkFailed(lastErr.Error())
		metrics.NotificationsFailed.WithLabelValues(sub.Channel()).Inc()
	}
	if p.monitor != nil {
		p.monitor.RecordNotification(lastErr != nil)
	}

	if err := p.store.UpdateNotification(ctx, rec); err != nil {
		logging.Err(err).Str("event_id", ev.ID.String()).Msg("failed to update notification record")
	}
}

func (p *Publisher) attempt(ctx context.Context, sub Subscriber, msg websocket.Message) error {
	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()
	return sub.Deliver(sendCtx, msg)
}
