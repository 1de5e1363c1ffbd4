// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package ingest

import (
	"context"

	"github.com/tomtom215/phishsync/internal/models"
	"github.com/tomtom215/phishsync/internal/phishapi"
)

// SettingsStore reads and writes the key/value settings table.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// RecordStore persists CSV-derived rows. Batch inserts are transactional
// and return an error wrapping models.ErrDuplicateKey when any row
// conflicts with a stored natural key.
type RecordStore interface {
	TimelineKeys(ctx context.Context, scenarioID string) (map[models.TimelineKey]struct{}, error)
	ScenarioDataKeys(ctx context.Context, scenarioID string) (map[models.ScenarioDataKey]struct{}, error)
	InsertTimelineBatch(ctx context.Context, entries []models.TimelineEntry) error
	InsertTimelineEntry(ctx context.Context, e *models.TimelineEntry) error
	InsertScenarioDataBatch(ctx context.Context, rows []models.ScenarioData) error
	InsertScenarioDataRow(ctx context.Context, d *models.ScenarioData) error
	RecordIngestionErrors(ctx context.Context, records []models.IngestionError) error
}

// Store is everything a run needs from the record store. Both the DuckDB
// and the PostgreSQL stores implement it.
type Store interface {
	SettingsStore
	RecordStore

	ListCompanies(ctx context.Context) ([]models.Company, error)
	// GetScenario returns nil, nil when the scenario does not exist.
	GetScenario(ctx context.Context, id string) (*models.Scenario, error)
	UpsertScenario(ctx context.Context, s *models.Scenario) error
	FindScenarios(ctx context.Context, filter models.ScenarioFilter) ([]models.Scenario, error)
}

// Seeder creates tenants and initial settings.
type Seeder interface {
	SettingsStore
	EnsureCompany(ctx context.Context, c *models.Company) (created bool, err error)
}

// API is the upstream transport for one tenant.
type API interface {
	ListScenarios(ctx context.Context, params *phishapi.Params) phishapi.Result[[]models.Scenario]
	FetchCSV(ctx context.Context, locator string, params *phishapi.Params) phishapi.Result[string]
}

// APIFactory builds the transport for a tenant.
type APIFactory func(baseURL, apiKey string) API
