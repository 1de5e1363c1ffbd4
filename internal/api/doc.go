// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

/*
Package api serves the small operator HTTP surface that runs next to the
ingestion loop in daemon mode.

Endpoints:

	GET /healthz   store liveness, 200 or 503
	GET /status    summary of the most recent ingestion pass
	GET /metrics   Prometheus exposition, optionally rate limited per IP

Request IDs double as logging correlation IDs, and every route is
instrumented by its pattern. There is no authentication: bind the server to
a private interface.
*/
package api
