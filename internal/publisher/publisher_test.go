// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package publisher

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/health"
	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/store"
	"github.com/argus-monitor/argus/internal/websocket"
)

type fakeSubscriber struct {
	id       string
	failures int
	calls    int
	last     websocket.Message
}

func (f *fakeSubscriber) ID() string      { return f.id }
func (f *fakeSubscriber) Channel() string { return "websocket" }

func (f *fakeSubscriber) Deliver(_ context.Context, msg websocket.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("send buffer full")
	}
	f.last = msg
	return nil
}

func newTestPublisher(t *testing.T, subs ...*fakeSubscriber) (*Publisher, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "argus.db"), time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	source := func() []Subscriber {
		out := make([]Subscriber, len(subs))
		for i, s := range subs {
			out[i] = s
		}
		return out
	}
	return New(st, source, health.NewMonitor(health.Thresholds{}), 100*time.Millisecond), st
}

func testEvent() *models.ParsedEvent {
	return &models.ParsedEvent{
		ID:        uuid.New(),
		RawLogID:  uuid.New(),
		Timestamp: time.Now().UTC(),
		Source:    "auth",
		Message:   "Failed password for root",
		Category:  models.CategoryAuthentication,
		ParsedAt:  time.Now().UTC(),
	}
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	a := &fakeSubscriber{id: "ws-1"}
	b := &fakeSubscriber{id: "ws-2"}
	pub, st := newTestPublisher(t, a, b)

	ev := testEvent()
	res := models.NewAnalysisResult(ev.ID, 7, "brute force", nil, models.OriginAI)
	pub.Publish(context.Background(), ev, res)

	for _, sub := range []*fakeSubscriber{a, b} {
		if sub.calls != 1 {
			t.Errorf("subscriber %s calls = %d, want 1", sub.id, sub.calls)
		}
		if sub.last.Type != websocket.MessageTypeNewEvent {
			t.Errorf("message type = %q", sub.last.Type)
		}
	}

	recs, err := st.NotificationsForEvent(context.Background(), ev.ID)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec.Status != models.NotificationSent {
			t.Errorf("status = %q, want sent", rec.Status)
		}
		if rec.Attempts != 1 {
			t.Errorf("attempts = %d, want 1", rec.Attempts)
		}
		if rec.SentAt == nil {
			t.Error("sent_at not set")
		}
	}
}

func TestPublishRetriesOnceThenSucceeds(t *testing.T) {
	sub := &fakeSubscriber{id: "ws-1", failures: 1}
	pub, st := newTestPublisher(t, sub)

	ev := testEvent()
	pub.Publish(context.Background(), ev, nil)

	if sub.calls != 2 {
		t.Errorf("calls = %d, want 2", sub.calls)
	}
	recs, _ := st.NotificationsForEvent(context.Background(), ev.ID)
	if len(recs) != 1 || recs[0].Status != models.NotificationSent || recs[0].Attempts != 2 {
		t.Fatalf("unexpected record: %+v", recs)
	}
}

func TestPublishFailsTerminallyAfterOneRetry(t *testing.T) {
	sub := &fakeSubscriber{id: "ws-1", failures: 10}
	pub, st := newTestPublisher(t, sub)

	ev := testEvent()
	pub.Publish(context.Background(), ev, nil)

	if sub.calls != 2 {
		t.Errorf("calls = %d, want exactly 2 (one retry)", sub.calls)
	}
	recs, _ := st.NotificationsForEvent(context.Background(), ev.ID)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Status != models.NotificationFailed {
		t.Errorf("status = %q, want failed", rec.Status)
	}
	if rec.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", rec.Attempts)
	}
	if rec.ErrorMessage == "" {
		t.Error("error message not recorded")
	}
	if rec.SentAt != nil {
		t.Error("failed record must not carry sent_at")
	}
}

func TestPublishOneFailureDoesNotAbortFanOut(t *testing.T) {
	bad := &fakeSubscriber{id: "ws-1", failures: 10}
	good := &fakeSubscriber{id: "ws-2"}
	pub, st := newTestPublisher(t, bad, good)

	ev := testEvent()
	pub.Publish(context.Background(), ev, nil)

	if good.calls != 1 {
		t.Errorf("healthy subscriber calls = %d, want 1", good.calls)
	}
	recs, _ := st.NotificationsForEvent(context.Background(), ev.ID)
	var sent, failed int
	for _, rec := range recs {
		switch rec.Status {
		case models.NotificationSent:
			sent++
		case models.NotificationFailed:
			failed++
		}
	}
	if sent != 1 || failed != 1 {
		t.Errorf("sent=%d failed=%d, want 1/1", sent, failed)
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	pub, st := newTestPublisher(t)

	ev := testEvent()
	pub.Publish(context.Background(), ev, nil)

	recs, err := st.NotificationsForEvent(context.Background(), ev.ID)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records, want none without subscribers", len(recs))
	}
}

func TestPublishSendTimeout(t *testing.T) {
	hub := websocket.NewHub()
	client := websocket.NewClient(hub, nil, 0, 0)
	// Saturate the client buffer so delivery must wait for the timeout.
	full := websocket.Message{Type: websocket.MessageTypeMetrics}
	for {
		if err := client.Deliver(timeoutCtx(t, 5*time.Millisecond), full); err != nil {
			break
		}
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "argus.db"), time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pub := New(st, func() []Subscriber { return []Subscriber{client} }, nil, 30*time.Millisecond)
	ev := testEvent()

	start := time.Now()
	pub.Publish(context.Background(), ev, nil)
	elapsed := time.Since(start)

	recs, _ := st.NotificationsForEvent(context.Background(), ev.ID)
	if len(recs) != 1 || recs[0].Status != models.NotificationFailed {
		t.Fatalf("expected one failed record, got %+v", recs)
	}
	// Two bounded attempts: well under a second even though the buffer
	// never drains.
	if elapsed > time.Second {
		t.Errorf("publish took %v, attempts not bounded by send timeout", elapsed)
	}
}

func timeoutCtx(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}
