package station

import (
	"context"
	"io"
	"time"
)

// Store persists stations and their readings.
type Store interface {
	// UpsertStation inserts the station or updates it in place by id.
	UpsertStation(ctx context.Context, s Station) error
	// GetStation returns ErrNotFound when the id is unknown.
	GetStation(ctx context.Context, id int) (Station, error)
	// ReplaceReadings atomically swaps the full reading set of one station.
	// On error the previously stored readings remain untouched.
	ReplaceReadings(ctx context.Context, stationID int, readings []Reading) error
	ListStations(ctx context.Context) ([]Station, error)
	ListReadings(ctx context.Context, stationID int) ([]Reading, error)
	CountReadings(ctx context.Context, stationID int) (int, error)
}

// RunStore persists the harvest run ledger.
type RunStore interface {
	StartRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, id string, finishedAt time.Time, status RunStatus, counters RunCounters, errMsg *string) error
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes replacement events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for archived payloads.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
