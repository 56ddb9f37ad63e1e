package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/pcd-harvester/internal/station"
)

// RunStore implements station.RunStore on the harvest_runs table.
type RunStore struct {
	db querier
}

// NewRunStore constructs a RunStore.
func NewRunStore(db querier) (*RunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{db: db}, nil
}

// StartRun inserts a run in running status.
func (s *RunStore) StartRun(ctx context.Context, run station.Run) error {
	query := `
		INSERT INTO harvest_runs (id, region, started_at, status)
		VALUES ($1, $2, $3, $4);
	`
	_, err := s.db.Exec(ctx, query, run.ID, run.Region, run.StartedAt, string(station.RunRunning))
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun marks a run as completed with a status, counters and optional error message.
func (s *RunStore) FinishRun(
	ctx context.Context,
	id string,
	finishedAt time.Time,
	status station.RunStatus,
	counters station.RunCounters,
	errMsg *string,
) error {
	query := `
		UPDATE harvest_runs
		SET finished_at = $1, status = $2, stations_seen = $3, profiles_found = $4,
			imported = $5, skipped = $6, failed = $7, readings_stored = $8,
			rows_rejected = $9, error_message = $10
		WHERE id = $11;
	`
	tag, err := s.db.Exec(ctx, query,
		finishedAt,
		string(status),
		counters.StationsSeen,
		counters.ProfilesFound,
		counters.Imported,
		counters.Skipped,
		counters.Failed,
		counters.ReadingsStored,
		counters.RowsRejected,
		errMsg,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return station.ErrRunNotFound
	}
	return nil
}

const runColumns = `id::text, region, started_at, finished_at, status, stations_seen, profiles_found,
			imported, skipped, failed, readings_stored, rows_rejected, error_message`

// GetRun retrieves a single run by its ID.
func (s *RunStore) GetRun(ctx context.Context, id string) (station.Run, error) {
	query := `SELECT ` + runColumns + `
		FROM harvest_runs
		WHERE id = $1;
	`
	run, err := scanRun(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return station.Run{}, station.ErrRunNotFound
		}
		return station.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]station.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + runColumns + `
		FROM harvest_runs
		ORDER BY started_at DESC
		LIMIT $1;
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []station.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (station.Run, error) {
	var (
		run    station.Run
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.Region,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.Counters.StationsSeen,
		&run.Counters.ProfilesFound,
		&run.Counters.Imported,
		&run.Counters.Skipped,
		&run.Counters.Failed,
		&run.Counters.ReadingsStored,
		&run.Counters.RowsRejected,
		&run.ErrorMessage,
	)
	if err != nil {
		return station.Run{}, err
	}
	run.Status = station.RunStatus(status)
	return run, nil
}
