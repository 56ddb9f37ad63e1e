package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	runid "github.com/JakeFAU/pcd-harvester/internal/id/uuid"
	"github.com/JakeFAU/pcd-harvester/internal/station"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
	ledgerTimeout   = 3 * time.Second
)

// RunHandler exposes read-only views of the run ledger and the station table.
type RunHandler struct {
	runs     station.RunStore
	stations StationReader
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRunHandler wires the stores and logger.
func NewRunHandler(runs station.RunStore, stations StationReader, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		runs:     runs,
		stations: stations,
		timeout:  ledgerTimeout,
		logger:   logger,
	}
}

// ListRuns handles GET /v1/runs?limit=. It returns {"runs": [...]} newest
// first, 400 for an invalid limit, 503 when the ledger is missing, or 500 if
// the store call fails.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run ledger unavailable")
		return
	}
	limit, err := parseLimit(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	runs, err := h.runs.ListRuns(ctx, limit)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []station.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// GetRun handles GET /v1/runs/{run_id}. It returns {"run": {...}}, 400 for a
// malformed id, or 404 when the ledger has no such run.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run ledger unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.runs.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, station.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("get run failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

// ListStations handles GET /v1/stations. Each station carries its current
// reading count.
func (h *RunHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	if h.stations == nil {
		writeError(w, http.StatusServiceUnavailable, "station store unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stations, err := h.stations.ListStations(ctx)
	if err != nil {
		h.logger.Error("list stations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list stations")
		return
	}
	out := make([]stationDTO, 0, len(stations))
	for _, st := range stations {
		count, err := h.stations.CountReadings(ctx, st.ID)
		if err != nil {
			h.logger.Error("count readings failed", zap.Int("station_id", st.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to count readings")
			return
		}
		out = append(out, stationDTO{Station: st, Readings: count})
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": out})
}

func parseRunID(r *http.Request) (string, error) {
	runID := chi.URLParam(r, "run_id")
	if runID == "" {
		return "", errors.New("run_id is required")
	}
	if !runid.Valid(runID) {
		return "", errors.New("invalid run_id")
	}
	return runID, nil
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	return min(val, maxLimit), nil
}

type stationDTO struct {
	station.Station
	Readings int `json:"readings"`
}
