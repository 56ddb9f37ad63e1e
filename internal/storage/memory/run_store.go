package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/pcd-harvester/internal/station"
)

// RunStore provides an in-memory harvest run ledger.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]station.Run
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]station.Run)}
}

// StartRun records a new run.
func (s *RunStore) StartRun(_ context.Context, run station.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return errors.New("run already exists")
	}
	if run.Status == "" {
		run.Status = station.RunRunning
	}
	s.runs[run.ID] = run
	return nil
}

// FinishRun stores the final status and counters of a run.
func (s *RunStore) FinishRun(
	_ context.Context,
	id string,
	finishedAt time.Time,
	status station.RunStatus,
	counters station.RunCounters,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return station.ErrRunNotFound
	}
	run.FinishedAt = pointerTime(finishedAt)
	run.Status = status
	run.Counters = counters
	run.ErrorMessage = errMsg
	s.runs[id] = run
	return nil
}

// GetRun fetches a run by id.
func (s *RunStore) GetRun(_ context.Context, id string) (station.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return station.Run{}, station.ErrRunNotFound
	}
	return run, nil
}

// ListRuns returns the most recent runs first, at most limit of them.
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]station.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]station.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
