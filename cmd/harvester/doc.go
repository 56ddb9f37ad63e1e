// Package main hosts the PCD harvester entrypoint.
//
// Architecture overview:
//   - Source: internal/source fetches the region listing, each station's profile page and its CSV export
//     through the Colly-based fetcher. Legacy ISO-8859-1 bytes are repaired to UTF-8 before parsing.
//   - Ingest: internal/ingest parses the export, resolves its headers onto the canonical fields
//     (internal/schema), coerces values and replaces the station's readings in one transaction guarded by a
//     per-station advisory lock. Raw exports can be archived (memory/local/GCS) and a Pub/Sub message is
//     published after each replace when a topic is configured.
//   - Orchestration: internal/harvest walks the registry in ascending station id, one station at a time,
//     with internal/pacing spacing the requests. Each run is recorded in the harvest_runs ledger.
//   - Configuration & plumbing: Viper (plus an optional .env) populates config; zap provides structured
//     logging; Prometheus metrics are exported at /metrics in serve mode.
//
// Modes:
//   - harvester -config config.yaml runs one harvest cycle and exits non-zero when the run aborts.
//   - harvester -config config.yaml -serve starts the ops server; POST /v1/runs starts a cycle.
//
// Quick checklist:
//   - Configure HARVESTER_DB_DSN (or harvest.dry_run=true for in-memory stores), HARVESTER_SOURCE_REGION,
//     HARVESTER_HARVEST_DELAY_SECONDS, and optionally the archive (HARVESTER_ARCHIVE_*) and Pub/Sub
//     (HARVESTER_PUBSUB_*) settings.
//   - SIGINT/SIGTERM stops the loop between stations; the run is closed out in the ledger.
package main
