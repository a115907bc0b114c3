// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package registry is the authoritative in-memory view of monitored log
// sources. Watchers go through it for every cursor mutation so offset
// monotonicity holds even with concurrent status reads, and every
// mutation is written through to the store so cursors survive restarts.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/store"
)

var (
	// ErrSourceExists is returned when registering a duplicate name.
	ErrSourceExists = errors.New("registry: source name already registered")

	// ErrSourceNotFound is returned for lookups of unknown source IDs.
	ErrSourceNotFound = errors.New("registry: source not found")

	// ErrStaleOffset is returned when an offset advance would move the
	// cursor backwards. Truncation resets must go through ResetOffset.
	ErrStaleOffset = errors.New("registry: offset would move backwards")
)

// Registry guards all LogSource mutation behind one lock and writes every
// change through to persistence.
type Registry struct {
	mu       sync.RWMutex
	store    *store.Store
	byID     map[uuid.UUID]*models.LogSource
	byName   map[string]uuid.UUID
	batchSeq map[uuid.UUID]*int64
}

// New builds a registry hydrated from the store, so sources resume at
// their last persisted offset after a restart.
func New(ctx context.Context, st *store.Store) (*Registry, error) {
	r := &Registry{
		store:    st,
		byID:     make(map[uuid.UUID]*models.LogSource),
		byName:   make(map[string]uuid.UUID),
		batchSeq: make(map[uuid.UUID]*int64),
	}

	sources, err := st.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	for _, src := range sources {
		r.byID[src.ID] = src
		r.byName[src.Name] = src.ID
		var seq int64
		r.batchSeq[src.ID] = &seq
		logging.Debug().
			Str("source", src.Name).
			Int64("offset", src.Offset).
			Msg("Source restored from store")
	}
	return r, nil
}

// Register adds a new source and persists it. The name must be unique.
func (r *Registry) Register(ctx context.Context, name, path string) (*models.LogSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return nil, ErrSourceExists
	}

	src := models.NewLogSource(name, path)
	if err := r.store.InsertSource(ctx, src); err != nil {
		return nil, err
	}

	r.byID[src.ID] = src
	r.byName[name] = src.ID
	var seq int64
	r.batchSeq[src.ID] = &seq

	logging.Info().Str("source", name).Str("path", path).Msg("Source registered")
	return src.Clone(), nil
}

// EnsureRegistered registers a source if its name is new, otherwise
// returns the existing one. Used to seed configured sources at startup
// without clobbering persisted cursors.
func (r *Registry) EnsureRegistered(ctx context.Context, name, path string) (*models.LogSource, error) {
	r.mu.RLock()
	id, ok := r.byName[name]
	r.mu.RUnlock()
	if ok {
		return r.Get(id)
	}
	src, err := r.Register(ctx, name, path)
	if errors.Is(err, ErrSourceExists) {
		// Lost a race with a concurrent registration of the same name.
		r.mu.RLock()
		id := r.byName[name]
		r.mu.RUnlock()
		return r.Get(id)
	}
	return src, err
}

// Get returns a copy of the source with the given ID.
func (r *Registry) Get(id uuid.UUID) (*models.LogSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.byID[id]
	if !ok {
		return nil, ErrSourceNotFound
	}
	return src.Clone(), nil
}

// List returns copies of all sources in stable name order by creation.
func (r *Registry) List() []*models.LogSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.LogSource, 0, len(r.byID))
	for _, src := range r.byID {
		out = append(out, src.Clone())
	}
	sortSources(out)
	return out
}

// AdvanceOffset moves the cursor forward after a batch was accepted by
// the ingestion queue. The advance is rejected with ErrStaleOffset if it
// would move the cursor backwards; equal offsets are a no-op that still
// refreshes the monitoring state.
func (r *Registry) AdvanceOffset(ctx context.Context, id uuid.UUID, newOffset, fileSize int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.byID[id]
	if !ok {
		return ErrSourceNotFound
	}
	if newOffset < src.Offset {
		return fmt.Errorf("%w: have %d, got %d", ErrStaleOffset, src.Offset, newOffset)
	}

	now := time.Now().UTC()
	src.Offset = newOffset
	src.Size = fileSize
	src.Status = models.SourceActive
	src.LastMonitored = &now
	src.ErrorMessage = ""

	return r.store.UpdateSourceCursor(ctx, src)
}

// ResetOffset handles file truncation: the only legal backwards cursor
// move, and it always lands on zero.
func (r *Registry) ResetOffset(ctx context.Context, id uuid.UUID, fileSize int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.byID[id]
	if !ok {
		return ErrSourceNotFound
	}

	logging.Warn().
		Str("source", src.Name).
		Int64("old_offset", src.Offset).
		Int64("file_size", fileSize).
		Msg("File truncation detected, resetting offset")

	now := time.Now().UTC()
	src.Offset = 0
	src.Size = fileSize
	src.LastMonitored = &now

	return r.store.UpdateSourceCursor(ctx, src)
}

// MarkError records a failed poll cycle. The watcher keeps retrying; the
// status surfaces the failure to operators in the meantime.
func (r *Registry) MarkError(ctx context.Context, id uuid.UUID, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.byID[id]
	if !ok {
		return ErrSourceNotFound
	}

	now := time.Now().UTC()
	src.Status = models.SourceError
	src.ErrorMessage = cause.Error()
	src.LastMonitored = &now

	return r.store.UpdateSourceCursor(ctx, src)
}

// SetEnabled enables or disables monitoring. Disabling preserves the
// offset so a later enable resumes where monitoring stopped.
func (r *Registry) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*models.LogSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.byID[id]
	if !ok {
		return nil, ErrSourceNotFound
	}

	src.Enabled = enabled
	if enabled {
		src.Status = models.SourceInactive
		src.ErrorMessage = ""
	} else {
		src.Status = models.SourceDisabled
	}

	if err := r.store.SetSourceEnabled(ctx, id, enabled, src.Status); err != nil {
		return nil, err
	}
	logging.Info().Str("source", src.Name).Bool("enabled", enabled).Msg("Source toggled")
	return src.Clone(), nil
}

// NextBatchSeq returns the next per-source batch sequence number. The
// counter is process-local; persistence ordering only needs it to be
// monotonic within one run.
func (r *Registry) NextBatchSeq(id uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq, ok := r.batchSeq[id]
	if !ok {
		return 0
	}
	*seq++
	return *seq
}

// StatusCounts reports how many sources are active and how many are in
// error, for health derivation.
func (r *Registry) StatusCounts() (active, errored int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, src := range r.byID {
		switch src.Status {
		case models.SourceActive:
			active++
		case models.SourceError:
			errored++
		}
	}
	return active, errored
}

func sortSources(sources []*models.LogSource) {
	sort.Slice(sources, func(i, j int) bool {
		if !sources[i].CreatedAt.Equal(sources[j].CreatedAt) {
			return sources[i].CreatedAt.Before(sources[j].CreatedAt)
		}
		return sources[i].Name < sources[j].Name
	})
}
