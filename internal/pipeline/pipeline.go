// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package pipeline consumes line batches from the ingestion queue,
// parses them into events, persists raw log and events in one
// transaction, and hands each event to the analysis dispatcher. It also
// serves the one-shot ingest and reprocess paths used by the HTTP API.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"

	"github.com/argus-monitor/argus/internal/analysis"
	"github.com/argus-monitor/argus/internal/health"
	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/metrics"
	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/parser"
	"github.com/argus-monitor/argus/internal/queue"
	"github.com/argus-monitor/argus/internal/store"
)

// batchSeqStride spaces per-batch event sequences so lines of batch N
// always sort before lines of batch N+1 within a source. Larger than any
// batch the watcher can emit.
const batchSeqStride = 1 << 20

// Pipeline is the parse/persist/dispatch stage between the ingestion
// queue and the analysis dispatcher.
type Pipeline struct {
	queue   *queue.Queue
	parser  *parser.Parser
	store   *store.Store
	disp    *analysis.Dispatcher
	monitor *health.Monitor
	workers int
}

// New creates a pipeline with the given parse worker count.
func New(q *queue.Queue, st *store.Store, disp *analysis.Dispatcher, monitor *health.Monitor, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		queue:   q,
		parser:  parser.New(),
		store:   st,
		disp:    disp,
		monitor: monitor,
		workers: workers,
	}
}

// String names the pipeline in supervisor logs.
func (p *Pipeline) String() string {
	return fmt.Sprintf("pipeline-%d-workers", p.workers)
}

// Serve runs the parse worker pool until the context is cancelled or the
// queue is closed and drained. Implements suture.Service.
func (p *Pipeline) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	// Queue closed: shutdown path, nothing left to consume.
	return suture.ErrDoNotRestart
}

func (p *Pipeline) worker(ctx context.Context) {
	for {
		batch, err := p.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		p.processBatch(ctx, batch)
	}
}

// processBatch turns one watcher batch into persisted, analyzed events.
// A batch that fails to persist is logged and dropped; the watcher has
// already advanced the source offset, so the failure is surfaced through
// logs and metrics rather than retried here.
func (p *Pipeline) processBatch(ctx context.Context, batch *models.LineBatch) {
	start := time.Now()

	raw := models.NewRawLog(strings.Join(batch.Lines, "\n"), batch.SourceName)
	events := p.parser.ParseLines(batch.Lines, batch.SourceName, raw.ID, raw.IngestedAt, batch.Seq*batchSeqStride)

	if err := p.store.InsertBatch(ctx, raw, events); err != nil {
		logging.Err(err).
			Str("source", batch.SourceName).
			Int("lines", len(batch.Lines)).
			Msg("failed to persist batch")
		return
	}

	p.recordParsed(events, batch.SourceName, time.Since(start))
	p.submitAll(ctx, events)
}

// IngestContent runs the one-shot ingest path for API-submitted log
// text: parse, persist transactionally, dispatch for analysis. The
// returned raw log identifies the ingestion for later reprocessing.
func (p *Pipeline) IngestContent(ctx context.Context, source, content string) (*models.RawLog, []*models.ParsedEvent, error) {
	start := time.Now()

	raw := models.NewRawLog(content, source)
	events := p.parser.ParseLines(splitLines(content), source, raw.ID, raw.IngestedAt, 0)

	if err := p.store.InsertBatch(ctx, raw, events); err != nil {
		return nil, nil, fmt.Errorf("persisting ingested content: %w", err)
	}

	p.recordParsed(events, source, time.Since(start))
	p.submitAll(ctx, events)
	return raw, events, nil
}

// Reprocess re-parses a stored raw log with the current parser and
// dispatches the fresh events for analysis. The original events are
// untouched; reprocessing only appends.
func (p *Pipeline) Reprocess(ctx context.Context, rawLogID uuid.UUID) ([]*models.ParsedEvent, error) {
	raw, err := p.store.GetRawLog(ctx, rawLogID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	events := p.parser.ParseLines(splitLines(raw.Content), raw.Source, raw.ID, raw.IngestedAt, 0)
	if err := p.store.InsertEvents(ctx, events); err != nil {
		return nil, fmt.Errorf("persisting reprocessed events: %w", err)
	}

	p.recordParsed(events, raw.Source, time.Since(start))
	p.submitAll(ctx, events)
	return events, nil
}

func (p *Pipeline) recordParsed(events []*models.ParsedEvent, source string, elapsed time.Duration) {
	metrics.ParseDuration.Observe(elapsed.Seconds())
	for _, ev := range events {
		metrics.EventsParsed.WithLabelValues(string(ev.Category)).Inc()
		if ev.Metadata[models.ParseFallbackKey] == "true" {
			metrics.ParseFallbacks.Inc()
			if p.monitor != nil {
				p.monitor.RecordParseFallback()
			}
		}
	}
	if p.monitor != nil {
		p.monitor.RecordEventsParsed(len(events))
	}

	sample := models.NewProcessingMetric(source, "events_parsed", float64(len(events)))
	if err := p.store.InsertMetric(context.Background(), sample); err != nil {
		logging.Err(err).Str("source", source).Msg("failed to record processing metric")
	}
}

func (p *Pipeline) submitAll(ctx context.Context, events []*models.ParsedEvent) {
	for _, ev := range events {
		if err := p.disp.Submit(ctx, ev); err != nil {
			logging.Err(err).
				Str("event_id", ev.ID.String()).
				Msg("failed to submit event for analysis")
			return
		}
	}
}

// splitLines breaks raw content into non-empty lines.
func splitLines(content string) []string {
	parts := strings.Split(content, "\n")
	lines := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			lines = append(lines, part)
		}
	}
	return lines
}
