// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/phishsync/internal/ingest"
	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/models"
)

// Handler serves the operator endpoints.
type Handler struct {
	deps        Deps
	pingTimeout time.Duration
}

// APIResponse is the envelope for every JSON body.
type APIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// HealthStatus is the /healthz payload.
type HealthStatus struct {
	Database bool `json:"database"`
}

// StatusReport is the /status payload.
type StatusReport struct {
	LastRun         *ingest.RunSummary    `json:"last_run,omitempty"`
	Totals          *ingest.TenantSummary `json:"totals,omitempty"`
	Records         map[string]int64      `json:"records,omitempty"`
	ActiveCooldowns int                   `json:"active_cooldowns"`
	Breaker         string                `json:"breaker,omitempty"`
}

// Health pings the record store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.pingTimeout)
	defer cancel()

	if h.deps.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Record store not configured", nil)
		return
	}
	if err := h.deps.Store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Record store is not reachable", err)
		return
	}

	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data:   HealthStatus{Database: true},
	})
}

// Status reports the latest pass and the stored row counts. Before the
// first pass finishes there is no last_run. A failed count is logged and
// left out rather than failing the report.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	report := StatusReport{}

	if h.deps.Status != nil {
		if summary, ok := h.deps.Status.LastSummary(); ok {
			totals := summary.Totals()
			report.LastRun = &summary
			report.Totals = &totals
		}
	}
	if h.deps.Records != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.pingTimeout)
		counts, err := h.deps.Records.RecordCounts(ctx)
		cancel()
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to count stored records")
		} else {
			report.Records = counts
		}
	}
	if h.deps.Cooldowns != nil {
		report.ActiveCooldowns = h.deps.Cooldowns.Len()
	}
	if h.deps.BreakerState != nil {
		report.Breaker = h.deps.BreakerState()
	}

	respondJSON(w, http.StatusOK, &APIResponse{Status: "success", Data: report})
}

// IngestionErrors lists the CSV rows of one scenario that could not be parsed.
func (h *Handler) IngestionErrors(w http.ResponseWriter, r *http.Request) {
	if h.deps.Records == nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Record store not configured", nil)
		return
	}

	scenarioID := chi.URLParam(r, "scenarioID")
	records, err := h.deps.Records.ListIngestionErrors(r.Context(), scenarioID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to list ingestion errors", err)
		return
	}
	if records == nil {
		records = []models.IngestionError{}
	}

	respondJSON(w, http.StatusOK, &APIResponse{Status: "success", Data: records})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, `{"status":"error","error":{"code":"ENCODING_ERROR","message":"Failed to encode response"}}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug().Err(err).Msg("Failed to write response")
	}
}

// respondError logs err but only sends message and code to the client.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Warn().Err(err).Str("code", code).Int("status", status).Msg(message)
	}
	respondJSON(w, status, &APIResponse{
		Status: "error",
		Error:  &APIError{Code: code, Message: message},
	})
}
