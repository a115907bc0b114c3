// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package api

import (
	"net/http"
	"time"

	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/websocket"
)

// Status returns the realtime snapshot: every source with its cursor and
// status, plus live pipeline gauges.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.StatusSnapshot{
		Sources:   s.registry.List(),
		Pipeline:  s.monitor.Gauges(),
		Timestamp: time.Now().UTC(),
	})
}

// Health returns derived health. Degraded and unhealthy states surface
// in the payload; the endpoint itself only fails when it cannot respond.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.evaluateHealth(r))
}

// HealthLive is the liveness probe: the process is up and serving.
func (s *Server) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe: 503 until the store answers.
func (s *Server) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "store not ready", true)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) evaluateHealth(r *http.Request) models.HealthStatus {
	dbOK := s.store.Ping(r.Context()) == nil
	active, errored := s.registry.StatusCounts()
	return s.monitor.Evaluate(dbOK, active, errored)
}

// GenerateReportRequest is the body of POST /api/v1/reports/generate.
// WindowMinutes of 0 uses the configured default.
type GenerateReportRequest struct {
	WindowMinutes int `json:"window_minutes" validate:"min=0"`
}

// GenerateReport aggregates analyzed events over the requested window.
func (s *Server) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req GenerateReportRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", false)
			return
		}
	}
	if req.WindowMinutes < 0 {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "window_minutes must be >= 0", false)
		return
	}

	rep, err := s.reports.Generate(r.Context(), time.Duration(req.WindowMinutes)*time.Minute)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "generating report", false)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// WebSocket upgrades the connection and registers it with the hub.
func (s *Server) WebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "websocket unavailable", false)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(s.hub, conn, s.notifyCfg.PingInterval, s.notifyCfg.PongTimeout)
	s.hub.Register <- client
	client.Start()
}
