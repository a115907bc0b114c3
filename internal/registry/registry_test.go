// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "registry_test.db"), time.Second)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	r, err := New(context.Background(), st)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return r, st
}

func TestRegisterAndList(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	src, err := r.Register(ctx, "auth", "/var/log/auth.log")
	if err != nil {
		t.Fatalf("registering source: %v", err)
	}
	if src.Status != models.SourceInactive {
		t.Fatalf("expected inactive, got %s", src.Status)
	}

	if _, err := r.Register(ctx, "auth", "/other/path"); !errors.Is(err, ErrSourceExists) {
		t.Fatalf("expected ErrSourceExists, got %v", err)
	}

	if got := r.List(); len(got) != 1 || got[0].Name != "auth" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestAdvanceOffsetMonotonic(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	src, err := r.Register(ctx, "syslog", "/var/log/syslog")
	if err != nil {
		t.Fatalf("registering source: %v", err)
	}

	if err := r.AdvanceOffset(ctx, src.ID, 100, 200); err != nil {
		t.Fatalf("advancing offset: %v", err)
	}

	got, err := r.Get(src.ID)
	if err != nil {
		t.Fatalf("fetching source: %v", err)
	}
	if got.Offset != 100 || got.Status != models.SourceActive {
		t.Fatalf("unexpected state after advance: offset=%d status=%s", got.Offset, got.Status)
	}
	if got.LastMonitored == nil {
		t.Fatal("expected last_monitored to be set")
	}

	// Backwards moves are rejected.
	if err := r.AdvanceOffset(ctx, src.ID, 50, 200); !errors.Is(err, ErrStaleOffset) {
		t.Fatalf("expected ErrStaleOffset, got %v", err)
	}

	// Equal offset is a no-op refresh, not an error.
	if err := r.AdvanceOffset(ctx, src.ID, 100, 200); err != nil {
		t.Fatalf("equal-offset advance failed: %v", err)
	}
}

func TestResetOffsetOnTruncation(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	src, err := r.Register(ctx, "app", "/var/log/app.log")
	if err != nil {
		t.Fatalf("registering source: %v", err)
	}
	if err := r.AdvanceOffset(ctx, src.ID, 5000, 5000); err != nil {
		t.Fatalf("advancing offset: %v", err)
	}

	if err := r.ResetOffset(ctx, src.ID, 120); err != nil {
		t.Fatalf("resetting offset: %v", err)
	}

	got, err := r.Get(src.ID)
	if err != nil {
		t.Fatalf("fetching source: %v", err)
	}
	if got.Offset != 0 {
		t.Fatalf("expected offset 0 after reset, got %d", got.Offset)
	}
	if got.Size != 120 {
		t.Fatalf("expected size 120, got %d", got.Size)
	}
}

func TestMarkErrorThenRecover(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	src, err := r.Register(ctx, "missing", "/nonexistent.log")
	if err != nil {
		t.Fatalf("registering source: %v", err)
	}

	if err := r.MarkError(ctx, src.ID, errors.New("open /nonexistent.log: no such file")); err != nil {
		t.Fatalf("marking error: %v", err)
	}

	got, _ := r.Get(src.ID)
	if got.Status != models.SourceError || got.ErrorMessage == "" {
		t.Fatalf("expected error state, got %+v", got)
	}

	// A successful cycle clears the error.
	if err := r.AdvanceOffset(ctx, src.ID, 10, 10); err != nil {
		t.Fatalf("advancing offset: %v", err)
	}
	got, _ = r.Get(src.ID)
	if got.Status != models.SourceActive || got.ErrorMessage != "" {
		t.Fatalf("expected recovery, got %+v", got)
	}
}

func TestSetEnabledPreservesOffset(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	src, err := r.Register(ctx, "toggle", "/var/log/toggle.log")
	if err != nil {
		t.Fatalf("registering source: %v", err)
	}
	if err := r.AdvanceOffset(ctx, src.ID, 300, 300); err != nil {
		t.Fatalf("advancing offset: %v", err)
	}

	got, err := r.SetEnabled(ctx, src.ID, false)
	if err != nil {
		t.Fatalf("disabling: %v", err)
	}
	if got.Status != models.SourceDisabled || got.Offset != 300 {
		t.Fatalf("expected disabled with preserved offset, got %+v", got)
	}

	got, err = r.SetEnabled(ctx, src.ID, true)
	if err != nil {
		t.Fatalf("re-enabling: %v", err)
	}
	if got.Status != models.SourceInactive || got.Offset != 300 {
		t.Fatalf("expected inactive with preserved offset, got %+v", got)
	}
}

func TestRestartRestoresCursor(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "restart_test.db")

	st, err := store.Open(dbPath, time.Second)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	r, err := New(context.Background(), st)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	src, err := r.Register(context.Background(), "persist", "/var/log/persist.log")
	if err != nil {
		t.Fatalf("registering source: %v", err)
	}
	if err := r.AdvanceOffset(context.Background(), src.ID, 777, 1000); err != nil {
		t.Fatalf("advancing offset: %v", err)
	}
	st.Close()

	st2, err := store.Open(dbPath, time.Second)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer st2.Close()
	r2, err := New(context.Background(), st2)
	if err != nil {
		t.Fatalf("rebuilding registry: %v", err)
	}

	got, err := r2.Get(src.ID)
	if err != nil {
		t.Fatalf("fetching restored source: %v", err)
	}
	if got.Offset != 777 {
		t.Fatalf("expected restored offset 777, got %d", got.Offset)
	}
}

func TestNextBatchSeqMonotonic(t *testing.T) {
	r, _ := newTestRegistry(t)

	src, err := r.Register(context.Background(), "seq", "/var/log/seq.log")
	if err != nil {
		t.Fatalf("registering source: %v", err)
	}

	prev := int64(0)
	for i := 0; i < 10; i++ {
		next := r.NextBatchSeq(src.ID)
		if next <= prev {
			t.Fatalf("sequence not monotonic: %d after %d", next, prev)
		}
		prev = next
	}
}
