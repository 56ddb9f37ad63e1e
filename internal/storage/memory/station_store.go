package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/pcd-harvester/internal/station"
)

// StationStore keeps stations and readings in memory. It backs dry runs and tests.
type StationStore struct {
	mu       sync.RWMutex
	stations map[int]station.Station
	readings map[int][]station.Reading
}

// NewStationStore constructs a StationStore.
func NewStationStore() *StationStore {
	return &StationStore{
		stations: make(map[int]station.Station),
		readings: make(map[int][]station.Reading),
	}
}

// UpsertStation inserts or overwrites a station by id.
func (s *StationStore) UpsertStation(_ context.Context, st station.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations[st.ID] = st
	return nil
}

// GetStation fetches a station by id.
func (s *StationStore) GetStation(_ context.Context, id int) (station.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stations[id]
	if !ok {
		return station.Station{}, station.ErrNotFound
	}
	return st, nil
}

// ReplaceReadings swaps the station's reading set under the store lock.
func (s *StationStore) ReplaceReadings(_ context.Context, stationID int, readings []station.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stations[stationID]; !ok {
		return station.ErrNotFound
	}
	out := make([]station.Reading, len(readings))
	copy(out, readings)
	for i := range out {
		out[i].StationID = stationID
	}
	s.readings[stationID] = out
	return nil
}

// ListStations returns every station ordered by id.
func (s *StationStore) ListStations(_ context.Context) ([]station.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]station.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListReadings returns a copy of the station's readings in insert order.
func (s *StationStore) ListReadings(_ context.Context, stationID int) ([]station.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	readings := s.readings[stationID]
	out := make([]station.Reading, len(readings))
	copy(out, readings)
	return out, nil
}

// CountReadings returns the number of stored readings for a station.
func (s *StationStore) CountReadings(_ context.Context, stationID int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings[stationID]), nil
}
