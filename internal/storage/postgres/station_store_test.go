package postgres

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pcd-harvester/internal/station"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func newMockStore(t *testing.T) (*StationStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewStationStore(mock)
	require.NoError(t, err)
	return store, mock
}

func TestNewStationStoreRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewStationStore(nil)
	require.Error(t, err)
}

func TestUpsertStation(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	st := station.Station{
		ID:        32451,
		Name:      "Natal",
		City:      "Natal",
		Owner:     strPtr("INPE"),
		Latitude:  strPtr("-5.84"),
		Longitude: strPtr("-35.21"),
		State:     strPtr("RN"),
	}
	mock.ExpectExec("INSERT INTO stations").
		WithArgs(st.ID, st.Name, st.City, st.Owner, st.Latitude, st.Longitude, st.State).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertStation(context.Background(), st))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStation(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	rows := pgxmock.NewRows([]string{"station_id", "station_name", "city", "owner", "latitude", "longitude", "uf"}).
		AddRow(7, "Caico", "Caicó", strPtr("EMPARN"), strPtr("-6.46"), strPtr("-37.09"), strPtr("RN"))
	mock.ExpectQuery("SELECT station_id, station_name").WithArgs(7).WillReturnRows(rows)

	got, err := store.GetStation(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 7, got.ID)
	require.Equal(t, "Caicó", got.City)
	require.Equal(t, "EMPARN", *got.Owner)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStationNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT station_id, station_name").WithArgs(9).WillReturnError(pgx.ErrNoRows)

	_, err := store.GetStation(context.Background(), 9)
	require.ErrorIs(t, err, station.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceReadingsCommits(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	readings := []station.Reading{
		{Timestamp: &ts, TimeOfDay: &station.TimeOfDay{}, AirTemp: floatPtr(21.5)},
		{Timestamp: &ts, AirTemp: floatPtr(21.0)},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1, $2);")).
		WithArgs(readingLockNamespace, int32(7)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM station_readings").
		WithArgs(7).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCopyFrom(pgx.Identifier{"station_readings"}, CopyColumns).WillReturnResult(2)
	mock.ExpectCommit()

	require.NoError(t, store.ReplaceReadings(context.Background(), 7, readings))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceReadingsRejectsOutOfRangeID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   int
	}{
		{name: "above int32", id: math.MaxInt32 + 1},
		{name: "aliases a small id", id: 1<<32 + 7},
		{name: "below int32", id: math.MinInt32 - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, mock := newMockStore(t)

			err := store.ReplaceReadings(context.Background(), tt.id, []station.Reading{{AirTemp: floatPtr(1)}})
			require.ErrorIs(t, err, ErrStationIDRange)
			// Nothing reaches the database, so no lock is shared with another station.
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReplaceReadingsRollsBackOnCopyFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	boom := errors.New("value out of range")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1, $2);")).
		WithArgs(readingLockNamespace, int32(7)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM station_readings").
		WithArgs(7).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCopyFrom(pgx.Identifier{"station_readings"}, CopyColumns).WillReturnError(boom)
	mock.ExpectRollback()

	err := store.ReplaceReadings(context.Background(), 7, []station.Reading{{AirTemp: floatPtr(1)}})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceReadingsRollsBackOnShortCopy(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1, $2);")).
		WithArgs(readingLockNamespace, int32(7)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM station_readings").
		WithArgs(7).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"station_readings"}, CopyColumns).WillReturnResult(1)
	mock.ExpectRollback()

	err := store.ReplaceReadings(context.Background(), 7, []station.Reading{{}, {}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountReadings(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM station_readings")).
		WithArgs(7).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))

	n, err := store.CountReadings(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadingRowOrder(t *testing.T) {
	t.Parallel()

	tod := station.TimeOfDay{Hour: 1, Minute: 2, Second: 3}
	row := readingRow(7, station.Reading{TimeOfDay: &tod, WindSpeedMax: floatPtr(9)})
	require.Len(t, row, len(CopyColumns))
	require.Equal(t, 7, row[0])
	require.Equal(t, floatPtr(9), row[len(row)-1])

	hora := toPGTime(&tod)
	require.True(t, hora.Valid)
	require.Equal(t, &tod, fromPGTime(hora))
	require.False(t, toPGTime(nil).Valid)
	require.Nil(t, fromPGTime(toPGTime(nil)))
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS stations")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, EnsureSchema(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}
