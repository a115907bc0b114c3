// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "argus_test.db"), time.Second)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSourceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := models.NewLogSource("auth", "/var/log/auth.log")
	if err := s.InsertSource(ctx, src); err != nil {
		t.Fatalf("inserting source: %v", err)
	}

	got, err := s.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("fetching source: %v", err)
	}
	if got.Name != "auth" || got.Path != "/var/log/auth.log" {
		t.Fatalf("unexpected source: %+v", got)
	}
	if got.Status != models.SourceInactive {
		t.Fatalf("expected inactive status, got %s", got.Status)
	}
	if !got.Enabled {
		t.Fatal("expected enabled")
	}

	// Cursor update persists offset, size, status, and last check.
	now := time.Now().UTC()
	got.Offset = 1024
	got.Size = 2048
	got.Status = models.SourceActive
	got.LastMonitored = &now
	if err := s.UpdateSourceCursor(ctx, got); err != nil {
		t.Fatalf("updating cursor: %v", err)
	}

	again, err := s.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("refetching source: %v", err)
	}
	if again.Offset != 1024 || again.Size != 2048 {
		t.Fatalf("cursor not persisted: offset=%d size=%d", again.Offset, again.Size)
	}
	if again.Status != models.SourceActive {
		t.Fatalf("status not persisted: %s", again.Status)
	}
	if again.LastMonitored == nil {
		t.Fatal("last_monitored not persisted")
	}
}

func TestSourceNameUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertSource(ctx, models.NewLogSource("syslog", "/var/log/syslog")); err != nil {
		t.Fatalf("inserting first source: %v", err)
	}
	if err := s.InsertSource(ctx, models.NewLogSource("syslog", "/other/path")); err == nil {
		t.Fatal("expected duplicate name to fail")
	}
}

func TestSetSourceEnabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := models.NewLogSource("app", "/var/log/app.log")
	if err := s.InsertSource(ctx, src); err != nil {
		t.Fatalf("inserting source: %v", err)
	}
	if err := s.SetSourceEnabled(ctx, src.ID, false, models.SourceDisabled); err != nil {
		t.Fatalf("disabling source: %v", err)
	}

	got, err := s.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("fetching source: %v", err)
	}
	if got.Enabled || got.Status != models.SourceDisabled {
		t.Fatalf("expected disabled, got enabled=%v status=%s", got.Enabled, got.Status)
	}

	if err := s.SetSourceEnabled(ctx, uuid.New(), false, models.SourceDisabled); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown source, got %v", err)
	}
}

func TestInsertBatchTransactional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	raw := models.NewRawLog("line one\nline two", "syslog")
	ev1 := &models.ParsedEvent{
		ID: uuid.New(), RawLogID: raw.ID, Timestamp: time.Now().UTC(),
		Source: "syslog", Message: "line one", Category: models.CategorySystem,
		ParsedAt: time.Now().UTC(), Sequence: 1,
	}
	ev2 := &models.ParsedEvent{
		ID: uuid.New(), RawLogID: raw.ID, Timestamp: time.Now().UTC(),
		Source: "syslog", Message: "line two", Category: models.CategoryUnknown,
		ParsedAt: time.Now().UTC(), Sequence: 2,
		Metadata: map[string]string{models.TimestampInferredKey: "true"},
	}

	if err := s.InsertBatch(ctx, raw, []*models.ParsedEvent{ev1, ev2}); err != nil {
		t.Fatalf("inserting batch: %v", err)
	}

	gotRaw, err := s.GetRawLog(ctx, raw.ID)
	if err != nil {
		t.Fatalf("fetching raw log: %v", err)
	}
	if gotRaw.Content != raw.Content {
		t.Fatalf("raw content mismatch: %q", gotRaw.Content)
	}

	events, err := s.EventsForRawLog(ctx, raw.ID)
	if err != nil {
		t.Fatalf("fetching events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Fatalf("events out of sequence order: %d, %d", events[0].Sequence, events[1].Sequence)
	}
	if events[1].Metadata[models.TimestampInferredKey] != "true" {
		t.Fatal("metadata not round-tripped")
	}
}

func TestQueryEventsFilterAndPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	raw := models.NewRawLog("bulk", "auth")
	var events []*models.ParsedEvent
	for i := 0; i < 5; i++ {
		cat := models.CategoryAuthentication
		if i%2 == 1 {
			cat = models.CategoryNetwork
		}
		events = append(events, &models.ParsedEvent{
			ID: uuid.New(), RawLogID: raw.ID,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Source:    "auth", Message: "failed password attempt",
			Category: cat, ParsedAt: base, Sequence: int64(i + 1),
		})
	}
	if err := s.InsertBatch(ctx, raw, events); err != nil {
		t.Fatalf("inserting batch: %v", err)
	}

	// Attach a severity verdict to one event.
	res := models.NewAnalysisResult(events[0].ID, 8, "brute force pattern", []string{"block source IP"}, models.OriginAI)
	if err := s.InsertAnalysis(ctx, res); err != nil {
		t.Fatalf("inserting analysis: %v", err)
	}

	page, err := s.QueryEvents(ctx, EventFilter{Category: models.CategoryAuthentication, Limit: 10})
	if err != nil {
		t.Fatalf("querying by category: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected 3 authentication events, got %d", page.Total)
	}

	page, err = s.QueryEvents(ctx, EventFilter{MinSeverity: 5, Limit: 10})
	if err != nil {
		t.Fatalf("querying by severity: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected 1 high-severity event, got %d", page.Total)
	}
	if page.Events[0].Analysis == nil || page.Events[0].Analysis.SeverityScore != 8 {
		t.Fatalf("expected attached analysis, got %+v", page.Events[0].Analysis)
	}

	// Default sort is newest first; pagination pages through it.
	page, err = s.QueryEvents(ctx, EventFilter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("querying first page: %v", err)
	}
	if page.Total != 5 || len(page.Events) != 2 {
		t.Fatalf("expected total 5 page 2, got total=%d len=%d", page.Total, len(page.Events))
	}
	if !page.Events[0].Event.Timestamp.After(page.Events[1].Event.Timestamp) {
		t.Fatal("expected newest-first ordering")
	}
}

func TestGetEventWithAnalysis(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	raw := models.NewRawLog("kernel: oom", "kern")
	ev := &models.ParsedEvent{
		ID: uuid.New(), RawLogID: raw.ID, Timestamp: time.Now().UTC(),
		Source: "kern", Message: "kernel: oom", Category: models.CategoryKernel,
		ParsedAt: time.Now().UTC(), Sequence: 1,
	}
	if err := s.InsertBatch(ctx, raw, []*models.ParsedEvent{ev}); err != nil {
		t.Fatalf("inserting batch: %v", err)
	}

	got, err := s.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("fetching event: %v", err)
	}
	if got.Analysis != nil {
		t.Fatal("expected no analysis yet")
	}

	res := models.NewAnalysisResult(ev.ID, 6, "memory pressure", nil, models.OriginFallback)
	if err := s.InsertAnalysis(ctx, res); err != nil {
		t.Fatalf("inserting analysis: %v", err)
	}

	got, err = s.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("refetching event: %v", err)
	}
	if got.Analysis == nil || got.Analysis.Origin != models.OriginFallback {
		t.Fatalf("expected fallback analysis, got %+v", got.Analysis)
	}

	if _, err := s.GetEvent(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotificationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := models.NewNotificationRecord(uuid.New(), "websocket")
	if err := s.InsertNotification(ctx, rec); err != nil {
		t.Fatalf("inserting notification: %v", err)
	}

	rec.Attempts = 2
	rec.MarkFailed("send timeout")
	if err := s.UpdateNotification(ctx, rec); err != nil {
		t.Fatalf("updating notification: %v", err)
	}

	got, err := s.GetNotification(ctx, rec.ID)
	if err != nil {
		t.Fatalf("fetching notification: %v", err)
	}
	if got.Status != models.NotificationFailed || got.Attempts != 2 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.ErrorMessage != "send timeout" {
		t.Fatalf("error message not persisted: %q", got.ErrorMessage)
	}
}

func TestMetricSumAndPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := models.NewProcessingMetric("auth", models.MetricLinesRead, 10)
	old.Timestamp = time.Now().UTC().Add(-2 * time.Hour)
	if err := s.InsertMetric(ctx, old); err != nil {
		t.Fatalf("inserting old metric: %v", err)
	}
	if err := s.InsertMetric(ctx, models.NewProcessingMetric("auth", models.MetricLinesRead, 5)); err != nil {
		t.Fatalf("inserting metric: %v", err)
	}

	total, err := s.SumMetric(ctx, models.MetricLinesRead, "auth",
		time.Now().UTC().Add(-3*time.Hour), time.Now().UTC())
	if err != nil {
		t.Fatalf("summing metrics: %v", err)
	}
	if total != 15 {
		t.Fatalf("expected sum 15, got %f", total)
	}

	pruned, err := s.PruneMetrics(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("pruning metrics: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned row, got %d", pruned)
	}
}

func TestAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	raw := models.NewRawLog("agg", "sec")
	now := time.Now().UTC()
	var events []*models.ParsedEvent
	for i := 0; i < 3; i++ {
		events = append(events, &models.ParsedEvent{
			ID: uuid.New(), RawLogID: raw.ID, Timestamp: now,
			Source: "sec", Message: "denied", Category: models.CategorySecurity,
			ParsedAt: now, Sequence: int64(i + 1),
		})
	}
	if err := s.InsertBatch(ctx, raw, events); err != nil {
		t.Fatalf("inserting batch: %v", err)
	}
	for i, e := range events {
		res := models.NewAnalysisResult(e.ID, 5+i, "x", nil, models.OriginAI)
		if err := s.InsertAnalysis(ctx, res); err != nil {
			t.Fatalf("inserting analysis: %v", err)
		}
	}

	since, until := now.Add(-time.Minute), now.Add(time.Minute)

	sev, err := s.AggregateSeverity(ctx, since, until)
	if err != nil {
		t.Fatalf("aggregating severity: %v", err)
	}
	if len(sev) != 3 {
		t.Fatalf("expected 3 severity buckets, got %d", len(sev))
	}

	cats, err := s.AggregateCategories(ctx, since, until)
	if err != nil {
		t.Fatalf("aggregating categories: %v", err)
	}
	if len(cats) != 1 || cats[0].Category != models.CategorySecurity || cats[0].Count != 3 {
		t.Fatalf("unexpected category buckets: %+v", cats)
	}

	top, err := s.TopEvents(ctx, since, until, 2)
	if err != nil {
		t.Fatalf("querying top events: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 top events, got %d", len(top))
	}
	if top[0].Analysis.SeverityScore < top[1].Analysis.SeverityScore {
		t.Fatal("expected severity-descending order")
	}
}
