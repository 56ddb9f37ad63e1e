// Package harvest drives one crawl cycle: registry, then per station the
// profile, the upsert and the reading import, paced one station at a time.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/pcd-harvester/internal/htmltable"
	"github.com/JakeFAU/pcd-harvester/internal/ingest"
	"github.com/JakeFAU/pcd-harvester/internal/metrics"
	"github.com/JakeFAU/pcd-harvester/internal/pacing"
	"github.com/JakeFAU/pcd-harvester/internal/station"
)

// ErrRunInProgress is returned when a run is requested while another one is active.
var ErrRunInProgress = errors.New("harvest run already in progress")

// OutcomeNoProfile marks stations skipped because their profile was missing.
const OutcomeNoProfile = "no_profile"

// stateCodeLen is the width of the uf column.
const stateCodeLen = 2

// Source discovers stations and their profiles.
type Source interface {
	Region() string
	FetchRegistry(ctx context.Context) (station.Registry, error)
	FetchProfile(ctx context.Context, id int) (htmltable.Profile, error)
}

// Importer replaces one station's readings.
type Importer interface {
	Import(ctx context.Context, stationID int, runID string) (ingest.Result, error)
}

// Summary reports what a run did.
type Summary struct {
	RunID      string              `json:"run_id"`
	Status     station.RunStatus   `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Counters   station.RunCounters `json:"counters"`
	// Outcomes counts stations per outcome label.
	Outcomes map[string]int `json:"outcomes"`
}

// Harvester runs crawl cycles. At most one cycle runs at a time per Harvester.
type Harvester struct {
	source   Source
	importer Importer
	store    station.Store
	runs     station.RunStore
	ids      station.IDGenerator
	sequence *pacing.Sequence
	clock    clockwork.Clock
	logger   *zap.Logger
	tracer   trace.Tracer

	mu         sync.Mutex
	background sync.WaitGroup
}

// New constructs a Harvester.
func New(
	source Source,
	importer Importer,
	store station.Store,
	runs station.RunStore,
	ids station.IDGenerator,
	sequence *pacing.Sequence,
	clock clockwork.Clock,
	logger *zap.Logger,
) (*Harvester, error) {
	if source == nil || importer == nil || store == nil || runs == nil || ids == nil {
		return nil, fmt.Errorf("source, importer, store, run store and id generator are required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sequence == nil {
		sequence = pacing.NewSequence(nil, clock, logger)
	}
	return &Harvester{
		source:   source,
		importer: importer,
		store:    store,
		runs:     runs,
		ids:      ids,
		sequence: sequence,
		clock:    clock,
		logger:   logger,
		tracer:   otel.Tracer("github.com/JakeFAU/pcd-harvester/internal/harvest"),
	}, nil
}

// Run executes one crawl cycle synchronously.
func (h *Harvester) Run(ctx context.Context) (Summary, error) {
	run, err := h.begin(ctx)
	if err != nil {
		return Summary{}, err
	}
	return h.execute(ctx, run)
}

// Trigger starts a crawl cycle in the background and returns its run id.
// ctx bounds the cycle, so pass a process-lifetime context, not a request's.
func (h *Harvester) Trigger(ctx context.Context) (string, error) {
	run, err := h.begin(ctx)
	if err != nil {
		return "", err
	}
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		if _, err := h.execute(ctx, run); err != nil {
			h.logger.Error("triggered run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()
	return run.ID, nil
}

// Wait blocks until every run started by Trigger has recorded its finish, or
// until ctx is done.
func (h *Harvester) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for background runs: %w", ctx.Err())
	}
}

// begin takes the single-flight lock and records the run start. The lock is
// released by execute, or here on failure.
func (h *Harvester) begin(ctx context.Context) (station.Run, error) {
	if !h.mu.TryLock() {
		return station.Run{}, ErrRunInProgress
	}
	id, err := h.ids.NewID()
	if err != nil {
		h.mu.Unlock()
		return station.Run{}, fmt.Errorf("generate run id: %w", err)
	}
	run := station.Run{
		ID:        id,
		Region:    h.source.Region(),
		StartedAt: h.clock.Now().UTC(),
		Status:    station.RunRunning,
	}
	if err := h.runs.StartRun(ctx, run); err != nil {
		h.mu.Unlock()
		return station.Run{}, fmt.Errorf("record run start: %w", err)
	}
	return run, nil
}

func (h *Harvester) execute(ctx context.Context, run station.Run) (summary Summary, err error) {
	defer h.mu.Unlock()

	ctx, span := h.tracer.Start(ctx, "harvest.run", trace.WithAttributes(
		attribute.String("harvest.run_id", run.ID),
		attribute.String("harvest.region", run.Region),
	))
	defer func() {
		span.SetAttributes(attribute.String("harvest.status", string(summary.Status)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := h.logger.With(zap.String("run_id", run.ID), zap.String("region", run.Region))
	logger.Info("harvest run started")
	summary = Summary{
		RunID:     run.ID,
		StartedAt: run.StartedAt,
		Outcomes:  make(map[string]int),
	}

	registry, err := h.source.FetchRegistry(ctx)
	if err != nil {
		return h.finish(ctx, logger, summary, fmt.Errorf("fetch registry: %w", err))
	}
	logger.Info("registry fetched", zap.Int("stations", len(registry)))

	ids := make([]int, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	tasks := make([]pacing.Task, 0, len(ids))
	for _, id := range ids {
		entry := registry[id]
		tasks = append(tasks, pacing.Task{
			Name: "station " + strconv.Itoa(id),
			Run: func(ctx context.Context) error {
				return h.processStation(ctx, logger, run.ID, id, entry, &summary)
			},
		})
	}
	if err := h.sequence.Run(ctx, tasks); err != nil {
		return h.finish(ctx, logger, summary, err)
	}
	return h.finish(ctx, logger, summary, nil)
}

// processStation handles one station. Only context errors are returned;
// everything else is logged, counted and the run moves on.
func (h *Harvester) processStation(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	id int,
	entry station.RegistryEntry,
	summary *Summary,
) error {
	logger = logger.With(zap.Int("station_id", id))
	summary.Counters.StationsSeen++

	ctx, span := h.tracer.Start(ctx, "harvest.station", trace.WithAttributes(attribute.Int("station.id", id)))
	defer span.End()

	profile, err := h.source.FetchProfile(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Info("station has no profile, skipping", zap.Error(err))
		h.record(ctx, summary, OutcomeNoProfile)
		summary.Counters.Skipped++
		return nil
	}
	summary.Counters.ProfilesFound++

	if err := h.store.UpsertStation(ctx, buildStation(id, entry, profile)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Error("upsert station failed", zap.Error(err))
		h.record(ctx, summary, string(ingest.OutcomeFailed))
		summary.Counters.Failed++
		return nil
	}

	result, err := h.importer.Import(ctx, id, runID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Error("import readings failed", zap.Error(err))
		h.record(ctx, summary, string(ingest.OutcomeFailed))
		summary.Counters.Failed++
		summary.Counters.RowsRejected += result.Rejected
		return nil
	}

	h.record(ctx, summary, string(result.Outcome))
	summary.Counters.RowsRejected += result.Rejected
	switch result.Outcome {
	case ingest.OutcomeImported:
		summary.Counters.Imported++
		summary.Counters.ReadingsStored += result.Stored
	case ingest.OutcomeFailed:
		summary.Counters.Failed++
	default:
		summary.Counters.Skipped++
	}
	return nil
}

func (h *Harvester) record(ctx context.Context, summary *Summary, outcome string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("station.outcome", outcome))
	summary.Outcomes[outcome]++
	metrics.ObserveStation(outcome)
}

// finish stores the final run status. The ledger write ignores cancellation
// so an interrupted run is still closed out.
func (h *Harvester) finish(ctx context.Context, logger *zap.Logger, summary Summary, runErr error) (Summary, error) {
	summary.FinishedAt = h.clock.Now().UTC()
	var errMsg *string
	switch {
	case runErr != nil:
		summary.Status = station.RunError
		msg := runErr.Error()
		errMsg = &msg
	case summary.Counters.Failed > 0:
		summary.Status = station.RunPartial
		msg := fmt.Sprintf("%d station(s) failed", summary.Counters.Failed)
		errMsg = &msg
	default:
		summary.Status = station.RunSuccess
	}

	if err := h.runs.FinishRun(context.WithoutCancel(ctx), summary.RunID, summary.FinishedAt, summary.Status, summary.Counters, errMsg); err != nil {
		logger.Error("record run finish failed", zap.Error(err))
	}
	metrics.ObserveRun(string(summary.Status), summary.FinishedAt)

	fields := []zap.Field{
		zap.String("status", string(summary.Status)),
		zap.Int("stations", summary.Counters.StationsSeen),
		zap.Int("imported", summary.Counters.Imported),
		zap.Int("skipped", summary.Counters.Skipped),
		zap.Int("failed", summary.Counters.Failed),
		zap.Int("readings", summary.Counters.ReadingsStored),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	}
	if runErr != nil {
		logger.Error("harvest run aborted", append(fields, zap.Error(runErr))...)
		return summary, runErr
	}
	logger.Info("harvest run finished", fields...)
	return summary, nil
}

// buildStation merges listing and profile data into the stored entity.
func buildStation(id int, entry station.RegistryEntry, profile htmltable.Profile) station.Station {
	return station.Station{
		ID:        id,
		Name:      entry.Name,
		City:      entry.City,
		Owner:     profile.Owner,
		Latitude:  profile.Latitude,
		Longitude: profile.Longitude,
		State:     truncate(profile.State, stateCodeLen),
	}
}

func truncate(s *string, n int) *string {
	if s == nil {
		return nil
	}
	r := []rune(*s)
	if len(r) <= n {
		return s
	}
	out := string(r[:n])
	return &out
}
