// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package health derives the service health state from live pipeline
// counters. Degraded status is computed on demand from thresholds over
// a rolling window and is never persisted.
package health

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/argus-monitor/argus/internal/models"
)

// Thresholds controls when the monitor reports degraded.
type Thresholds struct {
	// QueueDepthRatio degrades when depth/capacity meets or exceeds it.
	QueueDepthRatio float64
	// FallbackRate degrades when the analysis fallback share over the
	// window meets or exceeds it.
	FallbackRate float64
	// NotifyFailureRate degrades when the notification failure share
	// over the window meets or exceeds it.
	NotifyFailureRate float64
	// Window is the rolling observation window for the rates above.
	Window time.Duration
}

// Monitor aggregates counters fed by every pipeline stage.
type Monitor struct {
	thresholds Thresholds
	startedAt  time.Time

	eventsProcessed atomic.Uint64
	parseFallbacks  atomic.Uint64

	events       *rateWindow
	analysisAI   *rateWindow
	analysisFall *rateWindow
	notifySent   *rateWindow
	notifyFailed *rateWindow

	mu          sync.RWMutex
	queueProbe  func() (depth, capacity int)
	subscribers func() int
}

// NewMonitor constructs a monitor with the given thresholds.
func NewMonitor(t Thresholds) *Monitor {
	if t.Window <= 0 {
		t.Window = 5 * time.Minute
	}
	return &Monitor{
		thresholds:   t,
		startedAt:    time.Now(),
		events:       newRateWindow(t.Window),
		analysisAI:   newRateWindow(t.Window),
		analysisFall: newRateWindow(t.Window),
		notifySent:   newRateWindow(t.Window),
		notifyFailed: newRateWindow(t.Window),
	}
}

// SetQueueProbe registers the ingestion queue depth/capacity probe.
func (m *Monitor) SetQueueProbe(probe func() (int, int)) {
	m.mu.Lock()
	m.queueProbe = probe
	m.mu.Unlock()
}

// SetSubscriberProbe registers the websocket subscriber count probe.
func (m *Monitor) SetSubscriberProbe(probe func() int) {
	m.mu.Lock()
	m.subscribers = probe
	m.mu.Unlock()
}

// RecordEventsParsed records n parsed events.
func (m *Monitor) RecordEventsParsed(n int) {
	m.eventsProcessed.Add(uint64(n))
	m.events.add(n)
}

// RecordParseFallback records one line that matched no structural pattern.
func (m *Monitor) RecordParseFallback() {
	m.parseFallbacks.Add(1)
}

// RecordAnalysis records one completed verdict by origin.
func (m *Monitor) RecordAnalysis(origin models.AnalysisOrigin) {
	if origin == models.OriginFallback {
		m.analysisFall.add(1)
	} else {
		m.analysisAI.add(1)
	}
}

// RecordNotification records one delivery attempt outcome.
func (m *Monitor) RecordNotification(failed bool) {
	if failed {
		m.notifyFailed.add(1)
	} else {
		m.notifySent.add(1)
	}
}

// Uptime reports time since the monitor was created.
func (m *Monitor) Uptime() time.Duration {
	return time.Since(m.startedAt)
}

// Gauges returns the live pipeline gauges for status endpoints and the
// periodic websocket metrics broadcast.
func (m *Monitor) Gauges() models.PipelineGauges {
	m.mu.RLock()
	queueProbe := m.queueProbe
	subProbe := m.subscribers
	m.mu.RUnlock()

	g := models.PipelineGauges{
		EventsProcessed:      m.eventsProcessed.Load(),
		ParseFallbacks:       m.parseFallbacks.Load(),
		EventsPerMinute:      m.events.perMinute(),
		AnalysisFallbackRate: m.fallbackRate(),
		NotifyFailureRate:    m.notifyFailureRate(),
	}
	if queueProbe != nil {
		g.QueueDepth, g.QueueCapacity = queueProbe()
	}
	if subProbe != nil {
		g.Subscribers = subProbe()
	}
	return g
}

// Evaluate derives the health status. Database connectivity and source
// counts come from the caller since they live outside the pipeline.
func (m *Monitor) Evaluate(dbConnected bool, activeSources, errorSources int) models.HealthStatus {
	g := m.Gauges()

	status := "healthy"
	if !dbConnected {
		status = "unhealthy"
	} else if m.degraded(g) {
		status = "degraded"
	}

	return models.HealthStatus{
		Status:               status,
		DatabaseConnected:    dbConnected,
		ActiveSources:        activeSources,
		ErrorSources:         errorSources,
		QueueDepth:           g.QueueDepth,
		AnalysisFallbackRate: g.AnalysisFallbackRate,
		NotifyFailureRate:    g.NotifyFailureRate,
		Uptime:               m.Uptime().Seconds(),
		Timestamp:            time.Now().UTC(),
	}
}

func (m *Monitor) degraded(g models.PipelineGauges) bool {
	if g.QueueCapacity > 0 && m.thresholds.QueueDepthRatio > 0 {
		ratio := float64(g.QueueDepth) / float64(g.QueueCapacity)
		if ratio >= m.thresholds.QueueDepthRatio {
			return true
		}
	}
	if m.thresholds.FallbackRate > 0 && g.AnalysisFallbackRate >= m.thresholds.FallbackRate {
		return true
	}
	if m.thresholds.NotifyFailureRate > 0 && g.NotifyFailureRate >= m.thresholds.NotifyFailureRate {
		return true
	}
	return false
}

func (m *Monitor) fallbackRate() float64 {
	ai := m.analysisAI.sum()
	fb := m.analysisFall.sum()
	total := ai + fb
	if total == 0 {
		return 0
	}
	return float64(fb) / float64(total)
}

func (m *Monitor) notifyFailureRate() float64 {
	sent := m.notifySent.sum()
	failed := m.notifyFailed.sum()
	total := sent + failed
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total)
}

// rateWindow counts events over a rolling window using coarse buckets.
// Bucket granularity is window/60, so reported rates lag by at most one
// bucket width.
type rateWindow struct {
	mu      sync.Mutex
	window  time.Duration
	samples []rateSample
}

type rateSample struct {
	at time.Time
	n  int
}

func newRateWindow(window time.Duration) *rateWindow {
	return &rateWindow{window: window}
}

func (w *rateWindow) add(n int) {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now)
	granule := w.window / 60
	if last := len(w.samples) - 1; last >= 0 && now.Sub(w.samples[last].at) < granule {
		w.samples[last].n += n
		return
	}
	w.samples = append(w.samples, rateSample{at: now, n: n})
}

func (w *rateWindow) sum() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(time.Now())
	total := 0
	for _, s := range w.samples {
		total += s.n
	}
	return total
}

// perMinute reports the rate normalized to events per minute.
func (w *rateWindow) perMinute() float64 {
	total := w.sum()
	minutes := w.window.Minutes()
	if minutes <= 0 {
		return 0
	}
	return float64(total) / minutes
}

func (w *rateWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for ; i < len(w.samples); i++ {
		if w.samples[i].at.After(cutoff) {
			break
		}
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}
