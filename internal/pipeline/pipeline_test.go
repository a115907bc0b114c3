// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/analysis"
	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/queue"
	"github.com/argus-monitor/argus/internal/store"
)

type sinkRecorder struct {
	mu      sync.Mutex
	results []*models.AnalysisResult
	notify  chan struct{}
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{notify: make(chan struct{}, 64)}
}

func (r *sinkRecorder) sink(_ context.Context, _ *models.ParsedEvent, res *models.AnalysisResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *sinkRecorder) wait(t *testing.T, n int) []*models.AnalysisResult {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d analysis results", n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AnalysisResult(nil), r.results...)
}

type fixture struct {
	pipe  *Pipeline
	queue *queue.Queue
	store *store.Store
	sink  *sinkRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "argus.db"), time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	rec := newSinkRecorder()
	disp := analysis.NewDispatcher(analysis.Config{Workers: 2}, nil, rec.sink)
	q := queue.New(16)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = disp.Serve(ctx) }()

	pipe := New(q, st, disp, nil, 2)
	go func() { _ = pipe.Serve(ctx) }()

	t.Cleanup(cancel)
	return &fixture{pipe: pipe, queue: q, store: st, sink: rec}
}

func TestBatchFlowsToAnalyzedEvents(t *testing.T) {
	f := newFixture(t)

	batch := &models.LineBatch{
		SourceID:   uuid.New(),
		SourceName: "auth",
		Lines: []string{
			"Aug 30 10:00:00 web01 sshd[99]: Failed password for root",
			"Aug 30 10:00:01 web01 sshd[99]: Accepted password for deploy",
		},
		Seq: 0,
	}
	if err := f.queue.Enqueue(context.Background(), batch); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	results := f.sink.wait(t, 2)
	for _, res := range results {
		if res.Origin != models.OriginFallback {
			t.Errorf("origin = %q, want fallback without a scorer", res.Origin)
		}
	}

	// The parser promotes the syslog program to the event source.
	page, err := f.store.QueryEvents(context.Background(), store.EventFilter{Source: "sshd"})
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("persisted %d events, want 2", page.Total)
	}
	for _, ev := range page.Events {
		if ev.Event.Category != models.CategoryAuthentication {
			t.Errorf("category = %q, want authentication", ev.Event.Category)
		}
	}
}

func TestBatchSequencePreservesOrderAcrossBatches(t *testing.T) {
	f := newFixture(t)

	first := &models.LineBatch{
		SourceName: "app",
		Lines:      []string{"2026-08-30T10:00:00Z first"},
		Seq:        0,
	}
	second := &models.LineBatch{
		SourceName: "app",
		Lines:      []string{"2026-08-30T10:00:05Z second"},
		Seq:        1,
	}
	if err := f.queue.Enqueue(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if err := f.queue.Enqueue(context.Background(), second); err != nil {
		t.Fatal(err)
	}
	f.sink.wait(t, 2)

	page, err := f.store.QueryEvents(context.Background(), store.EventFilter{Source: "app", SortAsc: true})
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(page.Events) != 2 {
		t.Fatalf("got %d events", len(page.Events))
	}
	if a, b := page.Events[0].Event.Sequence, page.Events[1].Event.Sequence; a >= b {
		t.Errorf("sequences not increasing across batches: %d then %d", a, b)
	}
}

func TestIngestContent(t *testing.T) {
	f := newFixture(t)

	content := "line one\nline two\n\nline three"
	raw, events, err := f.pipe.IngestContent(context.Background(), "api-upload", content)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("parsed %d events, want 3 (blank skipped)", len(events))
	}

	stored, err := f.store.GetRawLog(context.Background(), raw.ID)
	if err != nil {
		t.Fatalf("get raw log: %v", err)
	}
	if stored.Content != content {
		t.Error("raw content not preserved verbatim")
	}
	f.sink.wait(t, 3)
}

func TestReprocessAppendsNewEvents(t *testing.T) {
	f := newFixture(t)

	raw, events, err := f.pipe.IngestContent(context.Background(), "auth", "Failed password for root\n")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	f.sink.wait(t, len(events))

	fresh, err := f.pipe.Reprocess(context.Background(), raw.ID)
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("reprocessed %d events, want 1", len(fresh))
	}
	if fresh[0].ID == events[0].ID {
		t.Error("reprocess must mint new event IDs")
	}

	all, err := f.store.EventsForRawLog(context.Background(), raw.ID)
	if err != nil {
		t.Fatalf("events for raw log: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("raw log has %d events, want original + reprocessed", len(all))
	}
}

func TestReprocessUnknownRawLog(t *testing.T) {
	f := newFixture(t)

	if _, err := f.pipe.Reprocess(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown raw log")
	}
}

func TestSplitLines(t *testing.T) {
	got := splitLines("a\n\n  \nb\nc\n")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}
