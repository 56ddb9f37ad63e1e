package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pcd-harvester/internal/station"
	"github.com/JakeFAU/pcd-harvester/internal/storage/memory"
)

const testRunID = "0192a3b4-5c6d-7e8f-9a0b-1c2d3e4f5a6b"

func TestRunHandlerListRuns(t *testing.T) {
	t.Parallel()

	runs := memory.NewRunStore()
	start := time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)
	for i, id := range []string{"older", testRunID} {
		require.NoError(t, runs.StartRun(context.Background(), station.Run{
			ID:        id,
			Region:    "RN",
			StartedAt: start.Add(time.Duration(i) * time.Hour),
			Status:    station.RunRunning,
		}))
	}
	srv := newTestServer(Deps{Runs: runs})

	rec := serve(t, srv, http.MethodGet, "/v1/runs?limit=1")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []station.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	require.Equal(t, testRunID, body.Runs[0].ID)
}

func TestRunHandlerListRunsInvalidLimit(t *testing.T) {
	t.Parallel()

	for _, limit := range []string{"-1", "0", "abc"} {
		rec := serve(t, newTestServer(Deps{}), http.MethodGet, "/v1/runs?limit="+limit)
		require.Equal(t, http.StatusBadRequest, rec.Code, limit)
	}
}

func TestRunHandlerGetRun(t *testing.T) {
	t.Parallel()

	runs := memory.NewRunStore()
	require.NoError(t, runs.StartRun(context.Background(), station.Run{
		ID:        testRunID,
		Region:    "RN",
		StartedAt: time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC),
		Status:    station.RunRunning,
	}))
	srv := newTestServer(Deps{Runs: runs})

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "found", path: "/v1/runs/" + testRunID, want: http.StatusOK},
		{name: "malformed id", path: "/v1/runs/not-a-uuid", want: http.StatusBadRequest},
		{name: "unknown id", path: "/v1/runs/0192a3b4-5c6d-7e8f-9a0b-000000000000", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, srv, http.MethodGet, tt.path)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRunHandlerStoreFailure(t *testing.T) {
	t.Parallel()

	srv := newTestServer(Deps{Runs: failingRuns{}})

	rec := serve(t, srv, http.MethodGet, "/v1/runs")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(t, srv, http.MethodGet, "/v1/runs/"+testRunID)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunHandlerListStations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stations := memory.NewStationStore()
	require.NoError(t, stations.UpsertStation(ctx, station.Station{ID: 32510, Name: "Natal", City: "Natal"}))
	require.NoError(t, stations.UpsertStation(ctx, station.Station{ID: 31910, Name: "Caico", City: "Caico"}))
	require.NoError(t, stations.ReplaceReadings(ctx, 32510, []station.Reading{{StationID: 32510}, {StationID: 32510}}))
	srv := newTestServer(Deps{Stations: stations})

	rec := serve(t, srv, http.MethodGet, "/v1/stations")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Stations []struct {
			ID       int `json:"station_id"`
			Readings int `json:"readings"`
		} `json:"stations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Stations, 2)
	require.Equal(t, 31910, body.Stations[0].ID)
	require.Equal(t, 0, body.Stations[0].Readings)
	require.Equal(t, 2, body.Stations[1].Readings)
}

type failingRuns struct{}

func (failingRuns) StartRun(context.Context, station.Run) error { return errors.New("boom") }

func (failingRuns) FinishRun(context.Context, string, time.Time, station.RunStatus, station.RunCounters, *string) error {
	return errors.New("boom")
}

func (failingRuns) GetRun(context.Context, string) (station.Run, error) {
	return station.Run{}, errors.New("boom")
}

func (failingRuns) ListRuns(context.Context, int) ([]station.Run, error) {
	return nil, errors.New("boom")
}
