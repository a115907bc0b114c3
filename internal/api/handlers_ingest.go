// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/store"
)

// maxUploadBytes caps one multipart log upload.
const maxUploadBytes = 32 << 20

// IngestRequest is the body of POST /api/v1/logs.
type IngestRequest struct {
	Content string `json:"content" validate:"required"`
	Source  string `json:"source" validate:"required,max=255"`
}

// IngestLog accepts raw log text and runs it through the one-shot
// parse/persist/analyze path. Persistence failures are 503 with
// retryable set so the caller knows to resubmit.
func (s *Server) IngestLog(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", false)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "content and source are required", false)
		return
	}

	s.ingest(w, r, req.Source, req.Content)
}

// UploadLog accepts a multipart file upload with the same semantics as
// IngestLog. Form fields: "file" (required), "source" (defaults to the
// uploaded filename).
func (s *Server) UploadLog(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid multipart form", false)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "missing file field", false)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "reading upload", false)
		return
	}

	source := r.FormValue("source")
	if source == "" {
		source = header.Filename
	}
	if source == "" {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, "source is required", false)
		return
	}

	s.ingest(w, r, source, string(content))
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request, source, content string) {
	raw, events, err := s.pipe.IngestContent(r.Context(), source, content)
	if err != nil {
		logging.Err(err).Str("source", source).Msg("ingest failed")
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"persistence unavailable, retry later", true)
		return
	}

	respondJSON(w, http.StatusAccepted, models.IngestResponse{
		IngestionID: raw.ID.String(),
		Status:      "accepted",
		Lines:       len(events),
	})
}

// ReprocessLog re-parses and re-analyzes a stored raw log, appending new
// event rows. The original events are preserved.
func (s *Server) ReprocessLog(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid raw log id", false)
		return
	}

	events, err := s.pipe.Reprocess(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "raw log not found", false)
		return
	}
	if err != nil {
		logging.Err(err).Str("raw_log_id", id.String()).Msg("reprocess failed")
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"persistence unavailable, retry later", true)
		return
	}

	respondJSON(w, http.StatusAccepted, models.IngestResponse{
		IngestionID: id.String(),
		Status:      "reprocessed",
		Lines:       len(events),
	})
}
