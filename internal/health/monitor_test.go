// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package health

import (
	"testing"
	"time"

	"github.com/argus-monitor/argus/internal/models"
)

func TestMonitorHealthyByDefault(t *testing.T) {
	m := NewMonitor(Thresholds{
		QueueDepthRatio:   0.9,
		FallbackRate:      0.5,
		NotifyFailureRate: 0.5,
		Window:            time.Minute,
	})

	hs := m.Evaluate(true, 2, 0)
	if hs.Status != "healthy" {
		t.Fatalf("expected healthy, got %s", hs.Status)
	}
	if !hs.DatabaseConnected {
		t.Fatal("expected database_connected true")
	}
	if hs.ActiveSources != 2 {
		t.Fatalf("expected 2 active sources, got %d", hs.ActiveSources)
	}
}

func TestMonitorUnhealthyWithoutDatabase(t *testing.T) {
	m := NewMonitor(Thresholds{Window: time.Minute})
	hs := m.Evaluate(false, 0, 0)
	if hs.Status != "unhealthy" {
		t.Fatalf("expected unhealthy, got %s", hs.Status)
	}
}

func TestMonitorDegradedOnFallbackRate(t *testing.T) {
	m := NewMonitor(Thresholds{
		FallbackRate: 0.5,
		Window:       time.Minute,
	})

	// 3 fallback verdicts against 1 AI verdict: 75% fallback rate.
	m.RecordAnalysis(models.OriginFallback)
	m.RecordAnalysis(models.OriginFallback)
	m.RecordAnalysis(models.OriginFallback)
	m.RecordAnalysis(models.OriginAI)

	hs := m.Evaluate(true, 1, 0)
	if hs.Status != "degraded" {
		t.Fatalf("expected degraded, got %s", hs.Status)
	}
	if hs.AnalysisFallbackRate != 0.75 {
		t.Fatalf("expected fallback rate 0.75, got %f", hs.AnalysisFallbackRate)
	}
}

func TestMonitorDegradedOnQueueDepth(t *testing.T) {
	m := NewMonitor(Thresholds{
		QueueDepthRatio: 0.8,
		Window:          time.Minute,
	})
	m.SetQueueProbe(func() (int, int) { return 240, 256 })

	hs := m.Evaluate(true, 1, 0)
	if hs.Status != "degraded" {
		t.Fatalf("expected degraded at 240/256 depth, got %s", hs.Status)
	}
}

func TestMonitorDegradedOnNotifyFailures(t *testing.T) {
	m := NewMonitor(Thresholds{
		NotifyFailureRate: 0.25,
		Window:            time.Minute,
	})

	m.RecordNotification(false)
	m.RecordNotification(false)
	m.RecordNotification(true)

	hs := m.Evaluate(true, 1, 0)
	if hs.Status != "degraded" {
		t.Fatalf("expected degraded, got %s", hs.Status)
	}
}

func TestGaugesCountersAndProbes(t *testing.T) {
	m := NewMonitor(Thresholds{Window: time.Minute})
	m.SetQueueProbe(func() (int, int) { return 3, 256 })
	m.SetSubscriberProbe(func() int { return 7 })

	m.RecordEventsParsed(10)
	m.RecordEventsParsed(5)
	m.RecordParseFallback()

	g := m.Gauges()
	if g.EventsProcessed != 15 {
		t.Fatalf("expected 15 events processed, got %d", g.EventsProcessed)
	}
	if g.ParseFallbacks != 1 {
		t.Fatalf("expected 1 parse fallback, got %d", g.ParseFallbacks)
	}
	if g.QueueDepth != 3 || g.QueueCapacity != 256 {
		t.Fatalf("unexpected queue gauges: %d/%d", g.QueueDepth, g.QueueCapacity)
	}
	if g.Subscribers != 7 {
		t.Fatalf("expected 7 subscribers, got %d", g.Subscribers)
	}
	if g.EventsPerMinute != 15 {
		t.Fatalf("expected 15 events/minute over 1m window, got %f", g.EventsPerMinute)
	}
}

func TestRateWindowPrunesOldSamples(t *testing.T) {
	w := newRateWindow(50 * time.Millisecond)
	w.add(10)
	time.Sleep(70 * time.Millisecond)
	if got := w.sum(); got != 0 {
		t.Fatalf("expected pruned window sum 0, got %d", got)
	}
}
