// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/argus-monitor/argus/internal/analysis"
	"github.com/argus-monitor/argus/internal/config"
	"github.com/argus-monitor/argus/internal/health"
	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/pipeline"
	"github.com/argus-monitor/argus/internal/queue"
	"github.com/argus-monitor/argus/internal/registry"
	"github.com/argus-monitor/argus/internal/report"
	"github.com/argus-monitor/argus/internal/store"
	"github.com/argus-monitor/argus/internal/websocket"
)

type testServer struct {
	srv   *Server
	http  *httptest.Server
	store *store.Store
	hub   *websocket.Hub
	sink  chan *models.AnalysisResult
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "argus.db"), time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg, err := registry.New(ctx, st)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	sink := make(chan *models.AnalysisResult, 64)
	disp := analysis.NewDispatcher(analysis.Config{Workers: 1}, nil,
		func(_ context.Context, _ *models.ParsedEvent, res *models.AnalysisResult) {
			if err := st.InsertAnalysis(context.Background(), res); err == nil {
				sink <- res
			}
		})
	go func() { _ = disp.Serve(ctx) }()

	q := queue.New(8)
	pipe := pipeline.New(q, st, disp, nil, 1)

	hub := websocket.NewHub()
	go func() { _ = hub.Serve(ctx) }()

	monitor := health.NewMonitor(health.Thresholds{})

	srv := NewServer(
		config.ServerConfig{Host: "127.0.0.1", Port: 0},
		config.APIConfig{DefaultPageSize: 50, MaxPageSize: 200},
		config.NotifyConfig{PingInterval: 30 * time.Second, PongTimeout: 5 * time.Second},
		Deps{
			Store:    st,
			Registry: reg,
			Pipeline: pipe,
			Hub:      hub,
			Monitor:  monitor,
			Reports:  report.NewGenerator(st, time.Hour, 24*time.Hour),
		},
	)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testServer{srv: srv, http: ts, store: st, hub: hub, sink: sink}
}

func (ts *testServer) postJSON(t *testing.T, path string, body interface{}) (*http.Response, models.APIResponse) {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(ts.http.URL+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	return resp, decodeEnvelope(t, resp)
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, models.APIResponse) {
	t.Helper()
	resp, err := http.Get(ts.http.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	return resp, decodeEnvelope(t, resp)
}

func decodeEnvelope(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var env models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

// reencode round-trips the untyped Data field into a concrete type.
func reencode(t *testing.T, data interface{}, dst interface{}) {
	t.Helper()
	buf, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if err := json.Unmarshal(buf, dst); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
}

func (ts *testServer) ingestAndWait(t *testing.T, source, content string, events int) models.IngestResponse {
	t.Helper()
	resp, env := ts.postJSON(t, "/api/v1/logs", IngestRequest{Content: content, Source: source})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("ingest status = %d", resp.StatusCode)
	}
	var ing models.IngestResponse
	reencode(t, env.Data, &ing)

	deadline := time.After(5 * time.Second)
	for i := 0; i < events; i++ {
		select {
		case <-ts.sink:
		case <-deadline:
			t.Fatalf("timed out waiting for %d analyses", events)
		}
	}
	return ing
}

func TestIngestEndpoint(t *testing.T) {
	ts := newTestServer(t)

	ing := ts.ingestAndWait(t, "auth", "Failed password for root\nAccepted password for deploy", 2)
	if ing.Lines != 2 {
		t.Errorf("lines = %d, want 2", ing.Lines)
	}
	if ing.IngestionID == "" {
		t.Error("missing ingestion id")
	}

	resp, env := ts.get(t, "/api/v1/events?source=auth&order=asc")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events status = %d", resp.StatusCode)
	}
	var page models.EventPage
	reencode(t, env.Data, &page)
	if page.Total != 2 {
		t.Fatalf("total = %d, want 2", page.Total)
	}
	for _, ev := range page.Events {
		if ev.Analysis == nil {
			t.Error("event missing analysis")
		} else if ev.Analysis.Origin != models.OriginFallback {
			t.Errorf("origin = %q", ev.Analysis.Origin)
		}
	}
}

func TestIngestValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, env := ts.postJSON(t, "/api/v1/logs", IngestRequest{Content: "no source"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error = %+v", env.Error)
	}
	if env.Error.Retryable {
		t.Error("validation errors must not be retryable")
	}
}

func TestGetEventNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, env := ts.get(t, "/api/v1/events/6b1f1f3e-1111-4222-8333-444455556666")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if env.Error.Code != ErrCodeNotFound {
		t.Errorf("code = %q", env.Error.Code)
	}
}

func TestEventFilterValidation(t *testing.T) {
	ts := newTestServer(t)

	for _, q := range []string{
		"category=bogus",
		"min_severity=0",
		"max_severity=11",
		"start=not-a-time",
		"sort_by=message",
		"order=sideways",
	} {
		resp, _ := ts.get(t, "/api/v1/events?"+q)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestSourceLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp, env := ts.postJSON(t, "/api/v1/sources", CreateSourceRequest{Name: "auth", Path: "/var/log/auth.log"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var src models.LogSource
	reencode(t, env.Data, &src)

	resp, _ = ts.postJSON(t, "/api/v1/sources", CreateSourceRequest{Name: "auth", Path: "/elsewhere"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", resp.StatusCode)
	}

	resp, env = ts.postJSON(t, fmt.Sprintf("/api/v1/sources/%s/disable", src.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable status = %d", resp.StatusCode)
	}
	reencode(t, env.Data, &src)
	if src.Enabled {
		t.Error("source still enabled after disable")
	}

	resp, _ = ts.postJSON(t, "/api/v1/sources/6b1f1f3e-1111-4222-8333-444455556666/enable", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown source status = %d, want 404", resp.StatusCode)
	}

	resp, env = ts.get(t, "/api/v1/sources")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var sources []models.LogSource
	reencode(t, env.Data, &sources)
	if len(sources) != 1 {
		t.Errorf("listed %d sources, want 1", len(sources))
	}
}

func TestStatusAndHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.ingestAndWait(t, "auth", "one line", 1)

	resp, env := ts.get(t, "/api/v1/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var snap models.StatusSnapshot
	reencode(t, env.Data, &snap)

	resp, env = ts.get(t, "/api/v1/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", resp.StatusCode)
	}
	var hs models.HealthStatus
	reencode(t, env.Data, &hs)
	if hs.Status != "healthy" {
		t.Errorf("health status = %q", hs.Status)
	}
	if !hs.DatabaseConnected {
		t.Error("database reported disconnected")
	}

	resp, _ = ts.get(t, "/api/v1/health/live")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("live = %d", resp.StatusCode)
	}
	resp, _ = ts.get(t, "/api/v1/health/ready")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d", resp.StatusCode)
	}
}

func TestReprocessEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ing := ts.ingestAndWait(t, "auth", "Failed password for root", 1)

	resp, env := ts.postJSON(t, "/api/v1/logs/"+ing.IngestionID+"/reprocess", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("reprocess status = %d", resp.StatusCode)
	}
	var out models.IngestResponse
	reencode(t, env.Data, &out)
	if out.Lines != 1 {
		t.Errorf("reprocessed lines = %d", out.Lines)
	}

	resp, _ = ts.postJSON(t, "/api/v1/logs/6b1f1f3e-1111-4222-8333-444455556666/reprocess", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown raw log = %d, want 404", resp.StatusCode)
	}
}

func TestGenerateReportEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.ingestAndWait(t, "auth", "Failed password for root", 1)

	resp, env := ts.postJSON(t, "/api/v1/reports/generate", GenerateReportRequest{WindowMinutes: 60})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report status = %d", resp.StatusCode)
	}
	var rep report.Report
	reencode(t, env.Data, &rep)
	if rep.TotalAnalyzed != 1 {
		t.Errorf("total analyzed = %d, want 1", rep.TotalAnalyzed)
	}
}

func TestWebSocketPush(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/api/v1/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for the hub to register the client before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for ts.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ts.hub.BroadcastMetrics(models.PipelineGauges{QueueDepth: 1})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg websocket.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != websocket.MessageTypeMetrics {
		t.Errorf("message type = %q", msg.Type)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.http.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}
