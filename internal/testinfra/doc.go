// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

// Package testinfra provides container-backed infrastructure for
// integration tests. Everything here is behind the integration build tag:
//
//	go test -tags integration ./...
//
// # PostgreSQL
//
//	pg, err := testinfra.NewPostgresContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, pg)
//
//	store, err := postgres.New(ctx, &config.DatabaseConfig{PostgresURL: pg.URL})
//
// Tests should call SkipIfNoDocker first so they skip cleanly on hosts
// without a Docker daemon.
package testinfra
