// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

// Package main is the entry point for PhishSync.
//
// PhishSync pulls phishing simulation results for every configured tenant
// from the upstream simulation API and stores them, deduplicated, in DuckDB
// or PostgreSQL. Each pass only discovers scenarios started after the
// previous pass, so it is safe to run on a schedule.
//
// # Modes
//
// With ingest.interval unset (the default) the process runs one pass and
// exits non-zero when the pass fails. With an interval it becomes a daemon:
// the ingestion loop and the optional operator HTTP server run under a
// suture supervisor tree until SIGINT or SIGTERM.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 (highest priority wins):
//   - Environment variables (INGEST_INTERVAL, POSTGRES_URL, LOG_LEVEL, ...)
//   - Config file (config.yaml or CONFIG_PATH)
//   - Built-in defaults
//
// # Example Usage
//
// One pass against a local DuckDB file:
//
//	export SEED_API_URL=https://sim.example.com/api/v2
//	export DUCKDB_PATH=./phishsync.duckdb
//	./phishsync
//
// Hourly daemon against PostgreSQL with metrics:
//
//	export DATABASE_DRIVER=postgres
//	export POSTGRES_URL=postgres://ingest:secret@db:5432/phishsync
//	export INGEST_INTERVAL=1h
//	export HTTP_ENABLED=true
//	./phishsync
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tomtom215/phishsync/internal/api"
	"github.com/tomtom215/phishsync/internal/config"
	"github.com/tomtom215/phishsync/internal/ingest"
	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/phishapi"
	"github.com/tomtom215/phishsync/internal/supervisor"
	"github.com/tomtom215/phishsync/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("PhishSync exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logging.Init(logCfg)

	logging.Info().
		Str("driver", cfg.Database.Driver).
		Int("tenants_configured", len(cfg.Tenants)).
		Bool("daemon", cfg.Daemon()).
		Msg("Starting PhishSync")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing record store")
		}
	}()

	if err := ingest.Seed(ctx, store, cfg); err != nil {
		return fmt.Errorf("seed record store: %w", err)
	}

	breaker := phishapi.NewBreaker("phishapi", &cfg.API)
	orchestrator := ingest.NewOrchestrator(store, newAPIFactory(&cfg.API, breaker), ingest.Options{
		Ingest:  cfg.Ingest,
		PerPage: cfg.API.PerPage,
	})

	if !cfg.Daemon() {
		summary, err := orchestrator.Run(ctx)
		totals := summary.Totals()
		logging.Info().
			Int("scenarios_downloaded", totals.Downloaded).
			Int("scenarios_failed", totals.Failed).
			Int("scenarios_deferred", totals.Deferred).
			Int("rows_inserted", totals.RowsInserted).
			Msg("Single pass complete")
		return err
	}

	return runDaemon(ctx, cfg, store, orchestrator, breaker)
}

func runDaemon(ctx context.Context, cfg *config.Config, store backingStore, orchestrator *ingest.Orchestrator, breaker *phishapi.Breaker) error {
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddIngestService(services.NewIngestService(orchestrator, cfg.Ingest.Interval))
	logging.Info().Dur("interval", cfg.Ingest.Interval).Msg("Ingest service added")

	if cfg.Server.Enabled {
		router := api.NewRouter(&cfg.Server, api.Deps{
			Store:        store,
			Status:       orchestrator,
			Records:      store,
			Cooldowns:    orchestrator.Cooldowns(),
			BreakerState: breaker.State,
		})
		server := &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler:           router,
			ReadHeaderTimeout: cfg.Server.Timeout,
			ReadTimeout:       cfg.Server.Timeout,
			WriteTimeout:      cfg.Server.Timeout,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout))
		logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")
	}

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown requested, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("PhishSync stopped gracefully")
	return nil
}
