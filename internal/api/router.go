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
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/phishsync/internal/config"
	"github.com/tomtom215/phishsync/internal/ingest"
	"github.com/tomtom215/phishsync/internal/models"
)

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSource exposes the outcome of the latest ingestion pass.
type StatusSource interface {
	LastSummary() (ingest.RunSummary, bool)
}

// RecordStats exposes what the record store holds.
type RecordStats interface {
	RecordCounts(ctx context.Context) (map[string]int64, error)
	ListIngestionErrors(ctx context.Context, scenarioID string) ([]models.IngestionError, error)
}

// Deps are the collaborators the handlers read from. Records, Cooldowns
// and BreakerState are optional.
type Deps struct {
	Store        Pinger
	Status       StatusSource
	Records      RecordStats
	Cooldowns    *ingest.Cooldowns
	BreakerState func() string
}

// NewRouter builds the operator router.
func NewRouter(cfg *config.ServerConfig, deps Deps) http.Handler {
	h := &Handler{deps: deps, pingTimeout: 5 * time.Second}

	r := chi.NewRouter()
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(PrometheusMetrics)

	r.Get("/healthz", h.Health)
	r.Get("/status", h.Status)
	r.Get("/scenarios/{scenarioID}/ingestion-errors", h.IngestionErrors)

	r.Group(func(r chi.Router) {
		if cfg != nil && cfg.MetricsRateLimit > 0 {
			r.Use(httprate.Limit(
				cfg.MetricsRateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests", nil)
				}),
			))
		}
		r.Handle("/metrics", promhttp.Handler())
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})

	return r
}
