// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/phishsync/internal/ingest"
	"github.com/tomtom215/phishsync/internal/logging"
)

// Runner performs one ingestion pass. Satisfied by *ingest.Orchestrator.
type Runner interface {
	Run(ctx context.Context) (ingest.RunSummary, error)
}

// IngestService runs ingestion passes on a fixed interval.
type IngestService struct {
	runner   Runner
	interval time.Duration
	name     string
}

// NewIngestService creates a service running runner every interval.
// A non-positive interval is treated as one hour.
func NewIngestService(runner Runner, interval time.Duration) *IngestService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &IngestService{
		runner:   runner,
		interval: interval,
		name:     "ingest",
	}
}

// Serve implements suture.Service. It returns only when ctx is canceled.
func (s *IngestService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *IngestService) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := s.runner.Run(logging.ContextWithNewCorrelationID(ctx))
	if err != nil && ctx.Err() == nil {
		logging.Error().
			Err(err).
			Str("correlation_id", summary.CorrelationID).
			Dur("next_in", s.interval).
			Msg("Ingestion pass failed, retrying on next interval")
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *IngestService) String() string {
	return s.name
}
