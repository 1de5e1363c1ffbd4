// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

/*
Package services provides suture.Service wrappers for PhishSync components.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Available Services:

IngestService:
  - Runs one ingestion pass immediately, then one per interval
  - A failed pass is logged and retried on the next tick; it never crashes
    the service, so a missing setting can be fixed without a restart
  - Passes never overlap; a slow pass delays the next tick

HTTPServerService:
  - Wraps *http.Server with graceful shutdown
  - http.ErrServerClosed is treated as a clean stop
*/
package services
