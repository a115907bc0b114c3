// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package watcher runs one polling read loop per enabled log source.
// Each cycle reads from the source's persisted offset, splits complete
// lines, hands them to the ingestion queue, and only then advances the
// offset, so blocked or failed enqueues never lose already-read bytes.
package watcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/metrics"
	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/queue"
	"github.com/argus-monitor/argus/internal/registry"
)

// maxReadBytes caps how much one poll cycle reads, so a huge backlog is
// worked off in bounded batches instead of one giant allocation.
const maxReadBytes = 1 << 20

// Config tunes one watcher loop.
type Config struct {
	PollInterval       time.Duration
	PartialLineTimeout time.Duration
	MaxBatchLines      int
}

// Watcher tails a single source. It is the only writer of that source's
// offset; all mutation goes through the registry.
type Watcher struct {
	sourceID   uuid.UUID
	sourceName string
	reg        *registry.Registry
	q          *queue.Queue
	dedupe     *DedupeStore
	cfg        Config

	// Partial trailing line carried between cycles. The offset stays
	// before it until it completes or the flush timeout expires.
	pendingPartial string
	partialSince   time.Time

	// suppress is armed by a truncation reset and disarmed once the
	// re-read catches up with the file end.
	suppress bool
}

// New builds a watcher for one source. dedupe may be nil.
func New(src *models.LogSource, reg *registry.Registry, q *queue.Queue, dedupe *DedupeStore, cfg Config) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PartialLineTimeout <= 0 {
		cfg.PartialLineTimeout = 10 * time.Second
	}
	if cfg.MaxBatchLines <= 0 {
		cfg.MaxBatchLines = 1000
	}
	return &Watcher{
		sourceID:   src.ID,
		sourceName: src.Name,
		reg:        reg,
		q:          q,
		dedupe:     dedupe,
		cfg:        cfg,
	}
}

// String names the watcher in supervisor logs.
func (w *Watcher) String() string {
	return fmt.Sprintf("watcher-%s", w.sourceName)
}

// Serve polls until the context is cancelled. Implements suture.Service.
func (w *Watcher) Serve(ctx context.Context) error {
	logging.Info().
		Str("source", w.sourceName).
		Dur("poll_interval", w.cfg.PollInterval).
		Msg("Watcher started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("source", w.sourceName).Msg("Watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll runs one read cycle. Errors mark the source and are retried next
// cycle; nothing here is fatal to the loop.
func (w *Watcher) poll(ctx context.Context) {
	src, err := w.reg.Get(w.sourceID)
	if err != nil || !src.Enabled {
		return
	}

	fi, err := os.Stat(src.Path)
	if err != nil {
		w.fail(ctx, err)
		return
	}
	size := fi.Size()
	offset := src.Offset

	if size < offset {
		metrics.WatcherTruncations.WithLabelValues(w.sourceName).Inc()
		if err := w.reg.ResetOffset(ctx, w.sourceID, size); err != nil {
			w.fail(ctx, err)
			return
		}
		offset = 0
		w.pendingPartial = ""
		w.suppress = w.dedupe != nil
	}

	if size == offset {
		// Nothing new; refresh liveness so status reads stay current.
		if err := w.reg.AdvanceOffset(ctx, w.sourceID, offset, size); err != nil {
			w.fail(ctx, err)
		}
		return
	}

	lines, consumed, reachedEnd, err := w.readLines(src.Path, offset, size)
	if err != nil {
		w.fail(ctx, err)
		return
	}
	emit := lines
	if w.suppress {
		emit = w.filterSeen(lines)
		// The re-read window closes once this cycle caught up with the
		// end of the file.
		if reachedEnd && w.pendingPartial == "" {
			w.suppress = false
		}
	}

	if len(emit) > 0 {
		batch := &models.LineBatch{
			SourceID:   w.sourceID,
			SourceName: w.sourceName,
			Lines:      emit,
			NewOffset:  offset + consumed,
			Seq:        w.reg.NextBatchSeq(w.sourceID),
		}
		// Blocks under backpressure; the offset is untouched until the
		// queue accepts the batch.
		if err := w.q.Enqueue(ctx, batch); err != nil {
			logging.Err(err).Str("source", w.sourceName).Msg("Enqueue failed, keeping offset")
			return
		}
		metrics.WatcherLinesRead.WithLabelValues(w.sourceName).Add(float64(len(emit)))
	}

	if w.dedupe != nil {
		for _, line := range lines {
			if err := w.dedupe.Mark(w.sourceID, line); err != nil {
				logging.Err(err).Str("source", w.sourceName).Msg("Dedupe mark failed")
				break
			}
		}
	}

	if consumed > 0 || len(lines) > 0 {
		if err := w.reg.AdvanceOffset(ctx, w.sourceID, offset+consumed, size); err != nil {
			w.fail(ctx, err)
		}
	}
}

// readLines reads from offset toward size and splits complete lines. A
// trailing partial line is left in the file (consumed stops before it)
// until it completes or has been pending past the flush timeout, at
// which point it is emitted as a best-effort line.
func (w *Watcher) readLines(path string, offset, size int64) (lines []string, consumed int64, reachedEnd bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, false, err
	}
	defer f.Close()

	want := size - offset
	if want > maxReadBytes {
		want = maxReadBytes
	}
	data := make([]byte, want)
	n, err := f.ReadAt(data, offset)
	if err != nil && err != io.EOF {
		return nil, 0, false, fmt.Errorf("reading at offset %d: %w", offset, err)
	}
	data = data[:n]

	for len(lines) < w.cfg.MaxBatchLines {
		i := bytes.IndexByte(data[consumed:], '\n')
		if i < 0 {
			break
		}
		line := string(data[consumed : consumed+int64(i)])
		consumed += int64(i) + 1
		if line != "" {
			lines = append(lines, line)
		}
	}

	reachedEnd = offset+consumed >= size
	tail := data[consumed:]
	if len(lines) >= w.cfg.MaxBatchLines || len(tail) == 0 {
		w.pendingPartial = ""
		return lines, consumed, offset+int64(n) >= size && len(tail) == 0, nil
	}

	// Trailing bytes with no newline.
	partial := string(tail)
	if offset+int64(n) < size {
		// More data exists beyond this read window; the "partial" is just
		// a window boundary, not an incomplete line.
		w.pendingPartial = ""
		return lines, consumed, false, nil
	}

	switch {
	case partial != w.pendingPartial:
		w.pendingPartial = partial
		w.partialSince = time.Now()
	case time.Since(w.partialSince) >= w.cfg.PartialLineTimeout:
		// Flush the stalled partial as a best-effort line.
		lines = append(lines, partial)
		consumed += int64(len(tail))
		w.pendingPartial = ""
		reachedEnd = true
	}
	return lines, consumed, reachedEnd, nil
}

func (w *Watcher) filterSeen(lines []string) []string {
	kept := lines[:0:0]
	for _, line := range lines {
		if w.dedupe.Seen(w.sourceID, line) {
			metrics.WatcherDedupedLines.WithLabelValues(w.sourceName).Inc()
			continue
		}
		kept = append(kept, line)
	}
	if dropped := len(lines) - len(kept); dropped > 0 {
		logging.Debug().
			Str("source", w.sourceName).
			Int("suppressed", dropped).
			Msg("Suppressed re-read duplicates after rotation")
	}
	return kept
}

func (w *Watcher) fail(ctx context.Context, cause error) {
	metrics.WatcherReadErrors.WithLabelValues(w.sourceName).Inc()
	logging.Err(cause).Str("source", w.sourceName).Msg("Watcher poll failed")
	if err := w.reg.MarkError(ctx, w.sourceID, cause); err != nil {
		logging.Err(err).Str("source", w.sourceName).Msg("Failed to record source error")
	}
}
