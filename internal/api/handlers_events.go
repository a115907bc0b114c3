// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/store"
)

// ListEvents returns a filtered, paginated event page. Query params:
// source, category, min_severity, max_severity, start, end (RFC3339),
// search, limit, offset, sort_by (timestamp|severity|source|category),
// order (asc|desc).
func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseEventFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), false)
		return
	}

	page, err := s.store.QueryEvents(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "querying events", false)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GetEvent returns one event with its latest analysis.
func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid event id", false)
		return
	}

	ev, err := s.store.GetEvent(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "event not found", false)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "loading event", false)
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

func (s *Server) parseEventFilter(r *http.Request) (store.EventFilter, error) {
	q := r.URL.Query()
	f := store.EventFilter{
		Source: q.Get("source"),
		Search: q.Get("search"),
		SortBy: q.Get("sort_by"),
		Limit:  s.apiCfg.DefaultPageSize,
	}

	if v := q.Get("category"); v != "" {
		cat := models.Category(v)
		if !cat.Valid() {
			return f, errInvalidParam("category", v)
		}
		f.Category = cat
	}
	if v := q.Get("min_severity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < models.SeverityMin || n > models.SeverityMax {
			return f, errInvalidParam("min_severity", v)
		}
		f.MinSeverity = n
	}
	if v := q.Get("max_severity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < models.SeverityMin || n > models.SeverityMax {
			return f, errInvalidParam("max_severity", v)
		}
		f.MaxSeverity = n
	}
	if v := q.Get("start"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errInvalidParam("start", v)
		}
		f.Since = ts
	}
	if v := q.Get("end"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errInvalidParam("end", v)
		}
		f.Until = ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, errInvalidParam("limit", v)
		}
		if n > s.apiCfg.MaxPageSize {
			n = s.apiCfg.MaxPageSize
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errInvalidParam("offset", v)
		}
		f.Offset = n
	}
	if v := q.Get("sort_by"); v != "" {
		switch v {
		case "timestamp", "severity", "source", "category":
		default:
			return f, errInvalidParam("sort_by", v)
		}
	}
	switch q.Get("order") {
	case "", "desc":
	case "asc":
		f.SortAsc = true
	default:
		return f, errInvalidParam("order", q.Get("order"))
	}
	return f, nil
}

type paramError struct {
	name, value string
}

func (e paramError) Error() string {
	return "invalid " + e.name + ": " + e.value
}

func errInvalidParam(name, value string) error {
	return paramError{name: name, value: value}
}
