package station

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound signals that the requested station does not exist in the store.
	ErrNotFound = errors.New("station not found")
	// ErrRunNotFound signals that the requested harvest run does not exist.
	ErrRunNotFound = errors.New("run not found")
)

// RegistryEntry is the listing-page metadata for one station.
type RegistryEntry struct {
	Name string `json:"name"`
	City string `json:"city"`
}

// Registry maps station ids to their listing metadata. It is built once per
// run and passed explicitly to the components that need it.
type Registry map[int]RegistryEntry

// Station is the persisted station entity, keyed by the id assigned by the source site.
type Station struct {
	ID        int     `json:"station_id"`
	Name      string  `json:"station_name"`
	City      string  `json:"city"`
	Owner     *string `json:"owner"`
	Latitude  *string `json:"latitude"`
	Longitude *string `json:"longitude"`
	State     *string `json:"uf"`
}

// TimeOfDay is the separately reported clock time of a reading.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses an HH:MM:SS clock value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(time.TimeOnly, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute + time.Duration(t.Second)*time.Second
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// RunStatus is the lifecycle state of a harvest run.
type RunStatus string

// Harvest run statuses persisted in harvest_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunError   RunStatus = "error"
)

// RunCounters aggregates per-station outcomes for a harvest run.
type RunCounters struct {
	StationsSeen   int `json:"stations_seen"`
	ProfilesFound  int `json:"profiles_found"`
	Imported       int `json:"imported"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
	ReadingsStored int `json:"readings_stored"`
	RowsRejected   int `json:"rows_rejected"`
}

// Run records one harvest cycle.
type Run struct {
	ID           string      `json:"id"`
	Region       string      `json:"region"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
	Status       RunStatus   `json:"status"`
	Counters     RunCounters `json:"counters"`
	ErrorMessage *string     `json:"error_message,omitempty"`
}
