// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package api provides the HTTP surface of the server: ingest, query,
// source management, status/health, reports, websocket upgrade, and
// Prometheus metrics, routed with chi.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/models"
)

// Error codes returned in APIError.Code.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// respondJSON writes a success envelope with the given payload.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	resp := models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	}
	writeEnvelope(w, status, &resp)
}

// respondError writes an error envelope. retryable marks transient
// failures the caller should retry, such as persistence being
// temporarily unavailable.
func respondError(w http.ResponseWriter, status int, code, message string, retryable bool) {
	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
	writeEnvelope(w, status, &resp)
}

func writeEnvelope(w http.ResponseWriter, status int, resp *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Err(err).Msg("failed to encode response")
	}
}

// decodeJSON parses a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
