// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/phishsync/internal/config"
	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/metrics"
	"github.com/tomtom215/phishsync/internal/models"
	"github.com/tomtom215/phishsync/internal/phishapi"
)

// maxDiscoveryPages stops paginated discovery against an API that never
// returns a short page.
const maxDiscoveryPages = 1000

// Scenario results reported to metrics.
const (
	scenarioDownloaded = "downloaded"
	scenarioScheduled  = "scheduled"
	scenarioComplete   = "already_downloaded"
	scenarioFailed     = "failed"
	scenarioDeferred   = "deferred"
)

// Run error types reported to metrics.
const (
	runErrConfig    = "config"
	runErrStore     = "store"
	runErrCursor    = "cursor"
	runErrCancelled = "cancelled"
)

// Options configures an Orchestrator. Zero Clock and Cooldowns are replaced
// by RealClock and a fresh tracker.
type Options struct {
	Ingest    config.IngestConfig
	PerPage   int
	Clock     Clock
	Cooldowns *Cooldowns
}

// Orchestrator drives ingestion runs. Runs are serialized; tenants and
// scenarios are processed one at a time.
type Orchestrator struct {
	store     Store
	newAPI    APIFactory
	opts      Options
	clock     Clock
	cooldowns *Cooldowns
	backoff   *Backoff

	runMu sync.Mutex // one run at a time

	mu      sync.RWMutex
	last    RunSummary
	hasLast bool
}

// NewOrchestrator creates an orchestrator over store, building one
// transport per tenant with newAPI.
func NewOrchestrator(store Store, newAPI APIFactory, opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Cooldowns == nil {
		opts.Cooldowns = NewCooldowns(opts.Clock)
	}
	buffer := opts.Ingest.CooldownBuffer
	if buffer <= 0 {
		buffer = DefaultCooldownBuffer
	}

	return &Orchestrator{
		store:     store,
		newAPI:    newAPI,
		opts:      opts,
		clock:     opts.Clock,
		cooldowns: opts.Cooldowns,
		backoff: &Backoff{
			MaxAttempts:    opts.Ingest.MaxAttempts,
			CooldownBuffer: buffer,
			Clock:          opts.Clock,
			Cooldowns:      opts.Cooldowns,
		},
	}
}

// Cooldowns returns the tracker shared by every run of o.
func (o *Orchestrator) Cooldowns() *Cooldowns {
	return o.cooldowns
}

// LastSummary returns the summary of the most recent run.
func (o *Orchestrator) LastSummary() (RunSummary, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last, o.hasLast
}

// Run performs one ingestion pass over every tenant.
//
// Only configuration failures (ErrMissingSettings, ErrInvalidCursor), a
// failure to list tenants, a failure to store the new cursor, and context
// cancellation are returned as errors. Tenant and scenario failures are
// logged and reported in the summary. The cursor is written once, after all
// tenants, and only when the run was not cancelled.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	runLogger := logging.LoggerFromContext(ctx).With().Str("component", "ingest").Logger()
	ctx = logging.ContextWithLogger(ctx, runLogger)

	summary := RunSummary{
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		StartedAt:     o.clock.Now().UTC(),
		Tenants:       []TenantSummary{},
	}

	errType, err := o.run(ctx, &summary)

	summary.FinishedAt = o.clock.Now().UTC()
	if err != nil {
		summary.Err = err.Error()
	}
	metrics.RecordRun(summary.FinishedAt.Sub(summary.StartedAt), errType)

	o.mu.Lock()
	o.last, o.hasLast = summary, true
	o.mu.Unlock()

	totals := summary.Totals()
	event := logging.Ctx(ctx).Info()
	if err != nil {
		event = logging.Ctx(ctx).Error().Err(err)
	}
	event.
		Int("tenants", len(summary.Tenants)).
		Int("downloaded", totals.Downloaded).
		Int("failed", totals.Failed).
		Int("deferred", totals.Deferred).
		Int("rows_inserted", totals.RowsInserted).
		Int("rows_skipped", totals.RowsSkipped).
		Dur("duration", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("Ingestion run finished")

	return summary, err
}

func (o *Orchestrator) run(ctx context.Context, summary *RunSummary) (string, error) {
	settings := NewSettings(o.store)

	baseURL, err := settings.APIBaseURL(ctx)
	if err != nil {
		return runErrConfig, err
	}
	cursor, err := settings.LastRunCursor(ctx)
	if err != nil {
		return runErrConfig, err
	}
	summary.Cursor = cursor

	batchSize := settings.BatchSize(ctx, o.opts.Ingest.BatchSize)
	reconciler := NewReconciler(o.store, batchSize, o.clock)

	companies, err := o.store.ListCompanies(ctx)
	if err != nil {
		return runErrStore, fmt.Errorf("failed to list companies: %w", err)
	}
	models.SortCompanies(companies)

	logging.Ctx(ctx).Info().
		Int("tenants", len(companies)).
		Time("cursor", cursor).
		Int("batch_size", batchSize).
		Msg("Ingestion run started")

	for i := range companies {
		if ctx.Err() != nil {
			break
		}
		c := &companies[i]
		summary.Tenants = append(summary.Tenants, o.processTenant(ctx, c, baseURL, cursor, reconciler))

		if err := settings.SetLastGroup(ctx, c.GroupName); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("tenant", c.Name).Msg("Failed to record LastGroup")
		}
	}

	if err := ctx.Err(); err != nil {
		return runErrCancelled, fmt.Errorf("run interrupted, cursor not advanced: %w", err)
	}

	next := summary.StartedAt
	if err := settings.SetLastRunCursor(ctx, next); err != nil {
		return runErrCursor, fmt.Errorf("failed to store cursor: %w", err)
	}
	summary.NextCursor = &next
	return "", nil
}

func (o *Orchestrator) processTenant(ctx context.Context, c *models.Company, baseURL string, cursor time.Time, reconciler *Reconciler) TenantSummary {
	ctx = logging.ContextWithTenant(ctx, c.Name)
	ts := TenantSummary{Tenant: c.Name, CompanyID: c.ID}

	if remaining, blocked := o.cooldowns.IsBlocked(c.Name); blocked {
		logging.Ctx(ctx).Info().Dur("remaining", remaining).Msg("Tenant cooling down, waiting before processing")
		if err := o.clock.Sleep(ctx, remaining); err != nil {
			ts.Error = err.Error()
			return ts
		}
		ts.Waited = remaining
		metrics.RecordThrottleWait(remaining)
		o.cooldowns.Clear(c.Name)
	}

	api := o.newAPI(baseURL, c.APIKey)

	scenarios, err := o.discover(ctx, api, c, cursor, &ts)
	if err != nil {
		var throttled *phishapi.ThrottledError
		ts.Throttled = errors.As(err, &throttled)
		ts.Error = err.Error()
		logging.Ctx(ctx).Error().Err(err).Bool("throttled", ts.Throttled).Msg("Scenario discovery failed, skipping tenant")
		return ts
	}
	if o.opts.Ingest.ResumePending {
		scenarios = o.appendPending(ctx, c, scenarios, &ts)
	}

	o.download(ctx, api, c, scenarios, reconciler, &ts)

	logging.Ctx(ctx).Info().
		Int("discovered", ts.Discovered).
		Int("resumed", ts.Resumed).
		Int("downloaded", ts.Downloaded).
		Int("skipped", ts.Skipped).
		Int("failed", ts.Failed).
		Int("deferred", ts.Deferred).
		Msg("Tenant processed")
	return ts
}

// discover lists the scenarios started after cursor, following pages when
// paging is enabled, and upserts each one.
func (o *Orchestrator) discover(ctx context.Context, api API, c *models.Company, cursor time.Time, ts *TenantSummary) ([]models.Scenario, error) {
	perPage := o.opts.PerPage
	seen := make(map[string]struct{})
	var discovered []models.Scenario

	for page := 1; page <= maxDiscoveryPages; page++ {
		params := phishapi.NewParams().StartedAfter(cursor)
		if perPage > 0 {
			params.Page(page).PerPage(perPage)
		}

		listed, err := CallWithBackoff(ctx, o.backoff, c.Name, func(ctx context.Context) phishapi.Result[[]models.Scenario] {
			return api.ListScenarios(ctx, params)
		})
		if err != nil {
			return discovered, fmt.Errorf("failed to list scenarios: %w", err)
		}

		for i := range listed {
			s := listed[i]
			if _, dup := seen[s.ID]; dup {
				continue
			}
			if err := o.recordScenario(ctx, c, &s); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("scenario_id", s.ID).Msg("Skipping scenario that could not be recorded")
				ts.Failed++
				metrics.RecordScenario(scenarioFailed)
				continue
			}
			seen[s.ID] = struct{}{}
			discovered = append(discovered, s)
		}

		if perPage <= 0 || len(listed) < perPage {
			break
		}
	}

	ts.Discovered = len(discovered)
	return discovered, nil
}

// recordScenario validates s, binds it to c and upserts it, keeping the
// stored FullyDownloaded flag.
func (o *Orchestrator) recordScenario(ctx context.Context, c *models.Company, s *models.Scenario) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	s.CompanyID = c.ID

	stored, err := o.store.GetScenario(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("failed to load stored scenario: %w", err)
	}
	s.FullyDownloaded = stored != nil && stored.FullyDownloaded

	if err := o.store.UpsertScenario(ctx, s); err != nil {
		return fmt.Errorf("failed to upsert scenario: %w", err)
	}
	return nil
}

// appendPending adds the tenant's stored scenarios that are not fully
// downloaded and were not discovered this run.
func (o *Orchestrator) appendPending(ctx context.Context, c *models.Company, scenarios []models.Scenario, ts *TenantSummary) []models.Scenario {
	pending := false
	stored, err := o.store.FindScenarios(ctx, models.ScenarioFilter{CompanyID: c.ID, FullyDownloaded: &pending})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to load pending scenarios")
		return scenarios
	}

	seen := make(map[string]struct{}, len(scenarios))
	for i := range scenarios {
		seen[scenarios[i].ID] = struct{}{}
	}
	for i := range stored {
		if _, ok := seen[stored[i].ID]; ok {
			continue
		}
		seen[stored[i].ID] = struct{}{}
		scenarios = append(scenarios, stored[i])
		ts.Resumed++
	}
	return scenarios
}

func (o *Orchestrator) download(ctx context.Context, api API, c *models.Company, scenarios []models.Scenario, reconciler *Reconciler, ts *TenantSummary) {
	for i := range scenarios {
		s := &scenarios[i]
		if ctx.Err() != nil {
			ts.Deferred += len(scenarios) - i
			return
		}

		switch {
		case s.Scheduled():
			ts.Skipped++
			metrics.RecordScenario(scenarioScheduled)
			continue
		case s.FullyDownloaded:
			ts.Skipped++
			metrics.RecordScenario(scenarioComplete)
			continue
		}

		sctx := logging.ContextWithScenario(ctx, s.ID)
		err := o.downloadScenario(sctx, api, c, s, reconciler, ts)

		var throttled *phishapi.ThrottledError
		switch {
		case err == nil:
			ts.Downloaded++
			metrics.RecordScenario(scenarioDownloaded)
			logging.Ctx(sctx).Info().Str("title", s.Title).Msg("Scenario fully downloaded")
		case errors.As(err, &throttled):
			ts.Throttled = true
			ts.Error = err.Error()
			ts.Deferred += len(scenarios) - i
			metrics.RecordScenario(scenarioDeferred)
			logging.Ctx(sctx).Warn().Err(err).Int("deferred", len(scenarios)-i).Msg("Tenant throttled, deferring remaining scenarios")
			return
		case ctx.Err() != nil:
			ts.Deferred += len(scenarios) - i
			return
		default:
			ts.Failed++
			metrics.RecordScenario(scenarioFailed)
			logging.Ctx(sctx).Error().Err(err).Msg("Scenario download failed")
		}
	}
}

// downloadScenario ingests the datasets of s whose locators are present and
// marks s fully downloaded when all of them succeeded.
func (o *Orchestrator) downloadScenario(ctx context.Context, api API, c *models.Company, s *models.Scenario, reconciler *Reconciler, ts *TenantSummary) error {
	if s.ActivityTimelineURL != "" {
		if _, err := o.ingestCSV(ctx, api, c, s, s.ActivityTimelineURL, models.KindTimeline, reconciler, ts); err != nil {
			return err
		}
	}

	if s.FullCSVURL != "" {
		res, err := o.ingestCSV(ctx, api, c, s, s.FullCSVURL, models.KindFullData, reconciler, ts)
		if err != nil {
			return err
		}
		if err := o.selfThrottle(ctx, res.Parsed); err != nil {
			return err
		}
	}

	s.FullyDownloaded = true
	if err := o.store.UpsertScenario(ctx, s); err != nil {
		s.FullyDownloaded = false
		return fmt.Errorf("failed to mark scenario downloaded: %w", err)
	}
	return nil
}

func (o *Orchestrator) ingestCSV(ctx context.Context, api API, c *models.Company, s *models.Scenario, locator, kind string, reconciler *Reconciler, ts *TenantSummary) (ReconcileResult, error) {
	raw, err := CallWithBackoff(ctx, o.backoff, c.Name, func(ctx context.Context) phishapi.Result[string] {
		return api.FetchCSV(ctx, locator, nil)
	})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("failed to fetch %s: %w", kind, err)
	}

	res, err := reconciler.Reconcile(ctx, raw, s.ID, kind)
	ts.addRows(res)
	if err != nil {
		return res, fmt.Errorf("failed to reconcile %s: %w", kind, err)
	}
	return res, nil
}

// selfThrottle pauses after a full data download for
// max(SelfThrottleMin, rows*SelfThrottlePerRow) to stay under the API's
// unadvertised rate budget.
func (o *Orchestrator) selfThrottle(ctx context.Context, rows int) error {
	pause := max(o.opts.Ingest.SelfThrottleMin, time.Duration(rows)*o.opts.Ingest.SelfThrottlePerRow)
	if pause <= 0 {
		return nil
	}
	logging.Ctx(ctx).Debug().Int("rows", rows).Dur("pause", pause).Msg("Self-throttling after full data download")
	metrics.RecordThrottleWait(pause)
	return o.clock.Sleep(ctx, pause)
}
