// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/registry"
)

// CreateSourceRequest is the body of POST /api/v1/sources.
type CreateSourceRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Path string `json:"path" validate:"required"`
}

// ListSources returns all registered sources with their cursors.
func (s *Server) ListSources(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.registry.List())
}

// CreateSource registers a new monitored source and, when the server is
// wired for it, starts its watcher immediately.
func (s *Server) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req CreateSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", false)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "name and path are required", false)
		return
	}

	src, err := s.registry.Register(r.Context(), req.Name, req.Path)
	if errors.Is(err, registry.ErrSourceExists) {
		respondError(w, http.StatusConflict, ErrCodeConflict, "source name already registered", false)
		return
	}
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"persistence unavailable, retry later", true)
		return
	}

	if s.startWatcher != nil {
		s.startWatcher(src)
	}
	respondJSON(w, http.StatusCreated, src)
}

// EnableSource resumes monitoring a source from its saved offset.
func (s *Server) EnableSource(w http.ResponseWriter, r *http.Request) {
	s.setSourceEnabled(w, r, true)
}

// DisableSource pauses monitoring; the offset is preserved so enabling
// later resumes where it stopped.
func (s *Server) DisableSource(w http.ResponseWriter, r *http.Request) {
	s.setSourceEnabled(w, r, false)
}

func (s *Server) setSourceEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid source id", false)
		return
	}

	src, err := s.registry.SetEnabled(r.Context(), id, enabled)
	if errors.Is(err, registry.ErrSourceNotFound) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "source not found", false)
		return
	}
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"persistence unavailable, retry later", true)
		return
	}
	respondJSON(w, http.StatusOK, src)
}
