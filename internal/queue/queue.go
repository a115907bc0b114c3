// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package queue is the bounded buffer between file watchers and the
// parsing workers. When it fills, enqueue blocks: backpressure holds the
// producer (and its source offset) in place rather than dropping lines.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/metrics"
	"github.com/argus-monitor/argus/internal/models"
)

// ErrClosed is returned once the queue has been shut down.
var ErrClosed = errors.New("queue: closed")

// Queue is a bounded FIFO of line batches. FIFO order per producer plus
// the per-source batch sequence gives downstream stages intra-source
// ordering.
type Queue struct {
	ch       chan *models.LineBatch
	capacity int

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a queue with the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{
		ch:       make(chan *models.LineBatch, capacity),
		capacity: capacity,
		closed:   make(chan struct{}),
	}
}

// Enqueue adds a batch, blocking while the queue is full. It returns the
// context error if the caller gives up, or ErrClosed after shutdown.
// Callers advance their source offset only after Enqueue returns nil.
func (q *Queue) Enqueue(ctx context.Context, batch *models.LineBatch) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- batch:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return nil
	default:
		// Full: fall through to the blocking wait so we can count it.
	}

	metrics.QueueEnqueueBlocked.Inc()
	logging.Debug().
		Str("source", batch.SourceName).
		Int("capacity", q.capacity).
		Msg("Ingestion queue full, producer blocked")

	select {
	case q.ch <- batch:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes the oldest batch, blocking while the queue is empty.
// After Close it keeps returning buffered batches until the queue is
// drained, then reports ErrClosed.
func (q *Queue) Dequeue(ctx context.Context) (*models.LineBatch, error) {
	select {
	case batch := <-q.ch:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return batch, nil
	default:
	}

	select {
	case batch := <-q.ch:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return batch, nil
	case <-q.closed:
		// Closed while waiting; drain anything that raced in.
		select {
		case batch := <-q.ch:
			metrics.QueueDepth.Set(float64(len(q.ch)))
			return batch, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Depth reports the current number of buffered batches.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Capacity reports the configured maximum depth.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Close stops accepting new batches. Buffered batches stay readable so
// consumers can drain during shutdown.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
		logging.Info().Int("depth", len(q.ch)).Msg("Ingestion queue closed")
	})
}

// DrainDeadline blocks until the queue empties or the grace period
// expires, for orderly shutdown. It returns the remaining depth.
func (q *Queue) DrainDeadline(grace time.Duration) int {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if len(q.ch) == 0 {
			return 0
		}
		time.Sleep(10 * time.Millisecond)
	}
	return len(q.ch)
}
