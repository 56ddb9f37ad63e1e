package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pcd-harvester/internal/hash/sha256"
	pubmemory "github.com/JakeFAU/pcd-harvester/internal/publisher/memory"
	"github.com/JakeFAU/pcd-harvester/internal/source"
	"github.com/JakeFAU/pcd-harvester/internal/station"
	"github.com/JakeFAU/pcd-harvester/internal/storage/memory"
)

const (
	stationID = 32451
	goodCSV   = "DataHora_GMT_Sensor1,TempAr_Media_C,UmiRel\n" +
		"2024-01-01 00:00:00,21.5,80\n" +
		"2024-01-01 01:00:00,21.0,\n" +
		"2024-01-01 02:00:00,abc,82\n"
)

type fakeExporter struct {
	bodies map[int]string
	err    error
}

func (f *fakeExporter) FetchExport(_ context.Context, id int) (source.Export, error) {
	if f.err != nil {
		return source.Export{}, f.err
	}
	body, ok := f.bodies[id]
	if !ok {
		return source.Export{}, fmt.Errorf("%w: export returned status 404", source.ErrUnavailable)
	}
	return source.Export{URL: fmt.Sprintf("http://pcd.test/dadosCSV.php?id=%d", id), Body: []byte(body)}, nil
}

// failingStore rejects every replace, as a rolled-back transaction would.
type failingStore struct {
	*memory.StationStore
	err error
}

func (s *failingStore) ReplaceReadings(context.Context, int, []station.Reading) error {
	return s.err
}

func seededStore(t *testing.T) *memory.StationStore {
	t.Helper()
	store := memory.NewStationStore()
	require.NoError(t, store.UpsertStation(context.Background(), station.Station{ID: stationID, Name: "Natal", City: "Natal"}))
	return store
}

func newImporter(t *testing.T, exports Exporter, store station.Store) *Importer {
	t.Helper()
	im, err := New(exports, store, nil, nil, nil, nil, Config{}, nil)
	require.NoError(t, err)
	return im
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	store := memory.NewStationStore()
	_, err := New(nil, store, nil, nil, nil, nil, Config{}, nil)
	require.Error(t, err)
	_, err = New(&fakeExporter{}, nil, nil, nil, nil, nil, Config{}, nil)
	require.Error(t, err)
	_, err = New(&fakeExporter{}, store, memory.NewBlobStore(), nil, nil, nil, Config{}, nil)
	require.Error(t, err)
}

func TestImportReplacesReadings(t *testing.T) {
	t.Parallel()

	store := seededStore(t)
	im := newImporter(t, &fakeExporter{bodies: map[int]string{stationID: goodCSV}}, store)

	result, err := im.Import(context.Background(), stationID, "run-1")
	require.NoError(t, err)
	require.Equal(t, OutcomeImported, result.Outcome)
	require.Equal(t, 3, result.Rows)
	require.Equal(t, 2, result.Stored)
	require.Equal(t, 1, result.Rejected)
	require.Equal(t, station.ColAirTemp, result.RowErrors[0].Column)
	require.Contains(t, result.Unmatched, station.ColBattery)

	readings, err := store.ListReadings(context.Background(), stationID)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *readings[0].Timestamp)
	require.Equal(t, 21.5, *readings[0].AirTemp)
	require.Equal(t, 80.0, *readings[0].RelHumidity)
	require.Nil(t, readings[1].RelHumidity)
	require.Nil(t, readings[0].Battery)
}

func TestImportIsIdempotent(t *testing.T) {
	t.Parallel()

	store := seededStore(t)
	im := newImporter(t, &fakeExporter{bodies: map[int]string{stationID: goodCSV}}, store)
	ctx := context.Background()

	_, err := im.Import(ctx, stationID, "run-1")
	require.NoError(t, err)
	first, err := store.ListReadings(ctx, stationID)
	require.NoError(t, err)

	_, err = im.Import(ctx, stationID, "run-2")
	require.NoError(t, err)
	second, err := store.ListReadings(ctx, stationID)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestImportKeepsReadingsWhenNothingUsable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		outcome Outcome
	}{
		{name: "empty", body: "", outcome: OutcomeDegenerate},
		{name: "single column", body: "DataHora\n2024-01-01 00:00:00\n", outcome: OutcomeDegenerate},
		{name: "header only", body: "DataHora,TempAr\n", outcome: OutcomeDegenerate},
		{name: "all rows rejected", body: "DataHora,TempAr\nyesterday,20\n2024-01-01 00:00:00,warm\n", outcome: OutcomeRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := seededStore(t)
			prior := []station.Reading{{StationID: stationID}, {StationID: stationID}}
			require.NoError(t, store.ReplaceReadings(ctx, stationID, prior))

			im := newImporter(t, &fakeExporter{bodies: map[int]string{stationID: tt.body}}, store)
			result, err := im.Import(ctx, stationID, "run-1")
			require.NoError(t, err)
			require.Equal(t, tt.outcome, result.Outcome)

			count, err := store.CountReadings(ctx, stationID)
			require.NoError(t, err)
			require.Equal(t, 2, count)
		})
	}
}

func TestImportUnavailableExport(t *testing.T) {
	t.Parallel()

	store := seededStore(t)
	im := newImporter(t, &fakeExporter{}, store)

	result, err := im.Import(context.Background(), stationID, "run-1")
	require.NoError(t, err)
	require.Equal(t, OutcomeUnavailable, result.Outcome)
}

func TestImportRequiresStoredStation(t *testing.T) {
	t.Parallel()

	im := newImporter(t, &fakeExporter{bodies: map[int]string{stationID: goodCSV}}, memory.NewStationStore())
	_, err := im.Import(context.Background(), stationID, "run-1")
	require.ErrorIs(t, err, ErrNoStation)
}

func TestImportFailedReplaceKeepsPriorReadings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := seededStore(t)
	prior := []station.Reading{{StationID: stationID}}
	require.NoError(t, base.ReplaceReadings(ctx, stationID, prior))

	boom := errors.New("copy failed")
	store := &failingStore{StationStore: base, err: boom}
	im := newImporter(t, &fakeExporter{bodies: map[int]string{stationID: goodCSV}}, store)

	result, err := im.Import(ctx, stationID, "run-1")
	require.ErrorIs(t, err, boom)
	require.Equal(t, OutcomeFailed, result.Outcome)

	readings, err := base.ListReadings(ctx, stationID)
	require.NoError(t, err)
	require.Equal(t, prior, readings)
}

func TestImportCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	im := newImporter(t, &fakeExporter{err: context.Canceled}, seededStore(t))

	_, err := im.Import(ctx, stationID, "run-1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestImportArchivesAndPublishes(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	pub := pubmemory.New()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	im, err := New(
		&fakeExporter{bodies: map[int]string{stationID: goodCSV}},
		seededStore(t),
		blobs,
		sha256.New(),
		pub,
		clock,
		Config{ArchivePrefix: "/pcd/", Topic: "readings-replaced"},
		nil,
	)
	require.NoError(t, err)

	result, err := im.Import(context.Background(), stationID, "run-9")
	require.NoError(t, err)

	digest, err := sha256.New().Hash([]byte(goodCSV))
	require.NoError(t, err)
	path := fmt.Sprintf("pcd/exports/%d/%s.csv", stationID, digest)
	require.Equal(t, []string{path}, blobs.Paths())
	require.Equal(t, "memory://"+path, result.ArchiveURI)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "readings-replaced", msgs[0].Topic)

	var event ReplacedEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &event))
	require.Equal(t, ReplacedEvent{
		StationID:  stationID,
		RunID:      "run-9",
		Readings:   2,
		Rejected:   1,
		ArchiveURI: result.ArchiveURI,
		ReplacedAt: clock.Now(),
	}, event)
}

func TestImportLogsAmbiguousColumns(t *testing.T) {
	t.Parallel()

	store := seededStore(t)
	body := "DataHora,VelVento_ms,VelVentoMax_ms\n2024-01-01 00:00:00,3.1,7.9\n"
	im := newImporter(t, &fakeExporter{bodies: map[int]string{stationID: body}}, store)

	result, err := im.Import(context.Background(), stationID, "run-1")
	require.NoError(t, err)
	require.Contains(t, result.Ambiguous, station.ColWindSpeed)

	readings, err := store.ListReadings(context.Background(), stationID)
	require.NoError(t, err)
	require.Equal(t, 3.1, *readings[0].WindSpeed)
	require.Equal(t, 7.9, *readings[0].WindSpeedMax)
}
