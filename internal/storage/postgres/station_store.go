package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JakeFAU/pcd-harvester/internal/station"
)

// readingLockNamespace is the first key of the per-station advisory lock
// taken while a station's readings are replaced.
const readingLockNamespace int32 = 0x50434431

// ErrStationIDRange is returned for ids that do not fit the INTEGER station_id
// column, which is also the second advisory lock key.
var ErrStationIDRange = errors.New("station id out of range")

var readingsTable = pgx.Identifier{"station_readings"}

// CopyColumns is the column list used to bulk load station_readings.
var CopyColumns = append([]string{"station_id"}, station.ReadingColumns...)

// StationStore persists stations and readings in Postgres.
type StationStore struct {
	db querier
}

// NewStationStore constructs a StationStore over a pool (or pgxmock in tests).
func NewStationStore(db querier) (*StationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &StationStore{db: db}, nil
}

// UpsertStation inserts the station or updates it in place.
func (s *StationStore) UpsertStation(ctx context.Context, st station.Station) error {
	query := `
		INSERT INTO stations (station_id, station_name, city, owner, latitude, longitude, uf)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (station_id) DO UPDATE
		SET station_name = EXCLUDED.station_name,
			city = EXCLUDED.city,
			owner = EXCLUDED.owner,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			uf = EXCLUDED.uf;
	`
	_, err := s.db.Exec(ctx, query, st.ID, st.Name, st.City, st.Owner, st.Latitude, st.Longitude, st.State)
	if err != nil {
		return fmt.Errorf("upsert station %d: %w", st.ID, err)
	}
	return nil
}

// GetStation retrieves a station by id.
func (s *StationStore) GetStation(ctx context.Context, id int) (station.Station, error) {
	query := `
		SELECT station_id, station_name, city, owner, latitude, longitude, uf
		FROM stations
		WHERE station_id = $1;
	`
	var st station.Station
	err := s.db.QueryRow(ctx, query, id).Scan(
		&st.ID,
		&st.Name,
		&st.City,
		&st.Owner,
		&st.Latitude,
		&st.Longitude,
		&st.State,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return station.Station{}, station.ErrNotFound
		}
		return station.Station{}, fmt.Errorf("get station %d: %w", id, err)
	}
	return st, nil
}

// ListStations retrieves every station ordered by id.
func (s *StationStore) ListStations(ctx context.Context) ([]station.Station, error) {
	query := `
		SELECT station_id, station_name, city, owner, latitude, longitude, uf
		FROM stations
		ORDER BY station_id;
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	defer rows.Close()

	var out []station.Station
	for rows.Next() {
		var st station.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.City, &st.Owner, &st.Latitude, &st.Longitude, &st.State); err != nil {
			return nil, fmt.Errorf("scan station row: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stations: %w", err)
	}
	return out, nil
}

// ReplaceReadings deletes the station's readings and bulk loads the new set
// in one transaction. A per-station advisory lock serializes concurrent
// replaces of the same station; any failure rolls the whole swap back.
func (s *StationStore) ReplaceReadings(ctx context.Context, stationID int, readings []station.Reading) (err error) {
	lockKey, err := stationLockKey(stationID)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1, $2);", readingLockNamespace, lockKey); err != nil {
		return fmt.Errorf("lock station %d: %w", stationID, err)
	}
	if _, err = tx.Exec(ctx, "DELETE FROM station_readings WHERE station_id = $1;", stationID); err != nil {
		return fmt.Errorf("delete readings: %w", err)
	}
	if len(readings) > 0 {
		var n int64
		n, err = tx.CopyFrom(ctx, readingsTable, CopyColumns, pgx.CopyFromSlice(len(readings), func(i int) ([]any, error) {
			return readingRow(stationID, readings[i]), nil
		}))
		if err != nil {
			return fmt.Errorf("copy readings: %w", err)
		}
		if n != int64(len(readings)) {
			err = fmt.Errorf("copy readings: wrote %d of %d rows", n, len(readings))
			return err
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// ListReadings retrieves a station's readings in insert order.
func (s *StationStore) ListReadings(ctx context.Context, stationID int) ([]station.Reading, error) {
	query := `
		SELECT station_id, data_hora_gmt, hora, bateria_volts, cont_agua_solo_100_m3,
			cont_agua_solo_200_m3, cont_agua_solo_400_m3, corr_p_sol_logico,
			dir_vel_vento_max_onv, dir_vento_onv, niv_mare_m, niv_regua_m, pluvio_mm,
			pressao_atm_mb, rad_sol_acum_mjm2, rad_sol_glob_wm2, temp_ar_c, temp_max_c,
			temp_min_c, temp_int_c, temp_solo_100_c, temp_solo_200_c, temp_solo_400_c,
			umid_int_pct, umi_rel_pct, vel_vento_ms, vel_vento_10m_ms, vel_vento_max_ms
		FROM station_readings
		WHERE station_id = $1
		ORDER BY id;
	`
	rows, err := s.db.Query(ctx, query, stationID)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var out []station.Reading
	for rows.Next() {
		var (
			r    station.Reading
			hora pgtype.Time
		)
		err := rows.Scan(
			&r.StationID, &r.Timestamp, &hora, &r.Battery, &r.SoilWater100,
			&r.SoilWater200, &r.SoilWater400, &r.SolarCurrent,
			&r.WindDirMax, &r.WindDir, &r.TideLevel, &r.GaugeLevel, &r.Precipitation,
			&r.Pressure, &r.SolarRadAccum, &r.SolarRadGlobal, &r.AirTemp, &r.MaxTemp,
			&r.MinTemp, &r.InternalTemp, &r.SoilTemp100, &r.SoilTemp200, &r.SoilTemp400,
			&r.InternalHumidity, &r.RelHumidity, &r.WindSpeed, &r.WindSpeed10m, &r.WindSpeedMax,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reading row: %w", err)
		}
		r.TimeOfDay = fromPGTime(hora)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return out, nil
}

// CountReadings returns the number of stored readings for a station.
func (s *StationStore) CountReadings(ctx context.Context, stationID int) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, "SELECT count(*) FROM station_readings WHERE station_id = $1;", stationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

// readingRow lays out a reading in CopyColumns order.
func readingRow(stationID int, r station.Reading) []any {
	return []any{
		stationID, r.Timestamp, toPGTime(r.TimeOfDay), r.Battery, r.SoilWater100,
		r.SoilWater200, r.SoilWater400, r.SolarCurrent,
		r.WindDirMax, r.WindDir, r.TideLevel, r.GaugeLevel, r.Precipitation,
		r.Pressure, r.SolarRadAccum, r.SolarRadGlobal, r.AirTemp, r.MaxTemp,
		r.MinTemp, r.InternalTemp, r.SoilTemp100, r.SoilTemp200, r.SoilTemp400,
		r.InternalHumidity, r.RelHumidity, r.WindSpeed, r.WindSpeed10m, r.WindSpeedMax,
	}
}

func toPGTime(t *station.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func fromPGTime(t pgtype.Time) *station.TimeOfDay {
	if !t.Valid {
		return nil
	}
	secs := t.Microseconds / 1_000_000
	return &station.TimeOfDay{
		Hour:   int(secs / 3600),
		Minute: int(secs % 3600 / 60),
		Second: int(secs % 60),
	}
}

func stationLockKey(stationID int) (int32, error) {
	if stationID < math.MinInt32 || stationID > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d", ErrStationIDRange, stationID)
	}
	return int32(stationID), nil
}
