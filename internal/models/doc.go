// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

/*
Package models defines the records PhishSync moves from the phishing
simulation API into the record store.

Entities:
  - Company: a tenant with its own API key
  - Scenario: one simulation campaign, upserted on every run
  - TimelineEntry: one behavioral event row from the activity timeline CSV
  - ScenarioData: one per-recipient outcome row from the full results CSV
  - IngestionError: a row that could not be parsed

Timeline and ScenarioData rows are write-once. Their natural keys
(TimelineKey, ScenarioDataKey) are what deduplication compares, so every
timestamp in a key is normalized to UTC RFC3339Nano regardless of whether it
came from a CSV cell or a database column.

CSV rows are mapped by header name through ParseTimelineRow and
ParseScenarioDataRow, which return *ParseError for malformed cells.
*/
package models
