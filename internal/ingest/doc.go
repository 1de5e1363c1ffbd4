// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

/*
Package ingest runs the incremental, rate-limited ingestion of phishing
simulation results.

Key Components:

  - Orchestrator: per-tenant, per-scenario state machine for one run
  - Backoff / CallWithBackoff: bounded retry on throttled transport results
  - Cooldowns: per-tenant "do not call before" deadlines, in memory only
  - Reconciler: CSV parsing, natural-key dedupe and batched inserts with a
    row-at-a-time fallback
  - Settings / Seed: typed access to the settings table

A run proceeds tenant by tenant in ascending name order:

 1. Select: a tenant still cooling down is waited for once, then cleared
 2. Discover: scenarios started after the cursor are listed and upserted,
    keeping the stored FullyDownloaded flag
 3. Download: timeline and full data CSVs are fetched and reconciled; the
    scenario is marked downloaded only when every step succeeded
 4. Isolate: throttling defers the rest of the tenant, any other failure
    only skips the scenario or tenant at hand
 5. Complete: the cursor is advanced to the run start time, exactly once

Every wait (cooldown, retry, self-throttle) goes through the Clock interface
so tests run without sleeping.

Usage Example:

	orch := ingest.NewOrchestrator(store, newAPI, ingest.Options{
	    Ingest:  cfg.Ingest,
	    PerPage: cfg.API.PerPage,
	})
	summary, err := orch.Run(ctx)
*/
package ingest
