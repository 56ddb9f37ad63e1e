// Package api hosts the ops HTTP server for the harvester. Notable routes:
//   - GET /healthz and /readyz for probes; readyz pings Postgres.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs starts a harvest run; 409 while one is active.
//   - GET /v1/runs and /v1/runs/{run_id} read the run ledger.
//   - GET /v1/stations lists stored stations with reading counts.
package api
