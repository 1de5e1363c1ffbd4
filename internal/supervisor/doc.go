// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

/*
Package supervisor runs the PhishSync daemon under a suture v4 supervisor tree.

In daemon mode (ingest.interval > 0) the long-running pieces of the process
are supervised services with automatic restart and graceful shutdown:

	RootSupervisor ("phishsync")
	├── IngestSupervisor ("ingest-layer")
	│   └── IngestService (one ingestion pass per interval)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (/metrics, /healthz, /status, if server.enabled)

The layers restart independently: a crashing HTTP server never interrupts an
ingestion pass, and the operator endpoints stay up while ingestion backs off.

Supervisor events are logged through sutureslog into the zerolog logger via
logging.NewSlogLogger.

Usage Example:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddIngestService(services.NewIngestService(orch, cfg.Ingest.Interval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}
*/
package supervisor
