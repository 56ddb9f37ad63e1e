package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JakeFAU/pcd-harvester/internal/metrics"
	"github.com/JakeFAU/pcd-harvester/internal/schema"
	"github.com/JakeFAU/pcd-harvester/internal/source"
	"github.com/JakeFAU/pcd-harvester/internal/station"
)

// ErrNoStation means the import ran for a station that is not stored yet.
var ErrNoStation = errors.New("station not stored")

// Outcome classifies what one station import did.
type Outcome string

// Import outcomes.
const (
	// OutcomeImported means the stored readings were replaced.
	OutcomeImported Outcome = "imported"
	// OutcomeDegenerate means the export was empty or single-column; stored readings are untouched.
	OutcomeDegenerate Outcome = "degenerate"
	// OutcomeUnavailable means the export could not be fetched; stored readings are untouched.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeRejected means every data row was rejected; stored readings are untouched.
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed means the replace failed and was rolled back.
	OutcomeFailed Outcome = "failed"
)

const (
	exportContentType  = "text/csv; charset=utf-8"
	maxLoggedRowErrors = 10
)

// Exporter retrieves a station's CSV export.
type Exporter interface {
	FetchExport(ctx context.Context, id int) (source.Export, error)
}

// Config controls Importer behavior.
type Config struct {
	// Location is the fixed zone the export timestamps are recorded in.
	Location *time.Location
	// ArchivePrefix is prepended to archived export paths.
	ArchivePrefix string
	// Topic receives a message after each successful replace; empty disables publishing.
	Topic string
}

// Result summarizes one station import.
type Result struct {
	StationID  int
	Outcome    Outcome
	Rows       int
	Stored     int
	Rejected   int
	RowErrors  []*RowError
	Ambiguous  []string
	Unmatched  []string
	ArchiveURI string
}

// ReplacedEvent is published after a station's readings were replaced.
type ReplacedEvent struct {
	StationID  int       `json:"station_id"`
	RunID      string    `json:"run_id"`
	Readings   int       `json:"readings"`
	Rejected   int       `json:"rejected"`
	ArchiveURI string    `json:"archive_uri,omitempty"`
	ReplacedAt time.Time `json:"replaced_at"`
}

// Importer fetches a station's export and replaces its stored readings.
type Importer struct {
	exports   Exporter
	store     station.Store
	blobs     station.BlobStore
	hasher    station.Hasher
	publisher station.Publisher
	clock     clockwork.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Importer. blobs, hasher and publisher are optional.
func New(
	exports Exporter,
	store station.Store,
	blobs station.BlobStore,
	hasher station.Hasher,
	publisher station.Publisher,
	clock clockwork.Clock,
	cfg Config,
	logger *zap.Logger,
) (*Importer, error) {
	if exports == nil {
		return nil, fmt.Errorf("exporter is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if blobs != nil && hasher == nil {
		return nil, fmt.Errorf("hasher is required when archiving")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		exports:   exports,
		store:     store,
		blobs:     blobs,
		hasher:    hasher,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Import replaces the stored readings of one station with its current export.
// Skips (degenerate, unavailable, rejected) return a nil error; a failed
// replace returns the store error with OutcomeFailed.
func (im *Importer) Import(ctx context.Context, stationID int, runID string) (Result, error) {
	logger := im.logger.With(zap.Int("station_id", stationID), zap.String("run_id", runID))
	result := Result{StationID: stationID}

	if _, err := im.store.GetStation(ctx, stationID); err != nil {
		if errors.Is(err, station.ErrNotFound) {
			return result, fmt.Errorf("import station %d: %w", stationID, ErrNoStation)
		}
		result.Outcome = OutcomeFailed
		return result, fmt.Errorf("get station %d: %w", stationID, err)
	}

	export, err := im.exports.FetchExport(ctx, stationID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("fetch export: %w", ctxErr)
		}
		logger.Info("export unavailable, keeping stored readings", zap.Error(err))
		result.Outcome = OutcomeUnavailable
		return result, nil
	}

	result.ArchiveURI = im.archive(ctx, logger, stationID, export.Body)

	table, err := ParseExport(export.Body)
	if err != nil {
		logger.Warn("export is not valid csv, keeping stored readings", zap.Error(err))
		result.Outcome = OutcomeDegenerate
		return result, nil
	}
	if table.Degenerate() {
		logger.Info("degenerate export, keeping stored readings",
			zap.Int("columns", len(table.Headers)),
			zap.Int("rows", len(table.Rows)),
		)
		result.Outcome = OutcomeDegenerate
		return result, nil
	}
	result.Rows = len(table.Rows)

	mapping := schema.ResolveAll(table.Headers)
	for _, match := range mapping.Ambiguous() {
		metrics.ObserveAmbiguousColumn(match.Field.Column)
		result.Ambiguous = append(result.Ambiguous, match.Field.Column)
		logger.Warn("ambiguous column match",
			zap.String("column", match.Field.Column),
			zap.String("token", match.Field.Token),
			zap.String("chosen", match.Header),
			zap.Strings("candidates", match.Candidates),
		)
	}
	for _, f := range mapping.Unmatched() {
		result.Unmatched = append(result.Unmatched, f.Column)
	}

	raws, rowErrs := Extract(table, mapping, im.cfg.Location)
	readings := make([]station.Reading, 0, len(raws))
	for _, raw := range raws {
		reading, err := Coerce(stationID, raw)
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				rowErrs = append(rowErrs, rowErr)
				continue
			}
			return result, fmt.Errorf("coerce row %d: %w", raw.Row, err)
		}
		readings = append(readings, reading)
	}
	result.Rejected = len(rowErrs)
	result.RowErrors = rowErrs
	im.reportRejected(logger, rowErrs)

	if len(readings) == 0 {
		logger.Warn("every row rejected, keeping stored readings", zap.Int("rows", result.Rows))
		result.Outcome = OutcomeRejected
		return result, nil
	}

	if err := im.store.ReplaceReadings(ctx, stationID, readings); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("replace readings: %w", ctxErr)
		}
		result.Outcome = OutcomeFailed
		return result, fmt.Errorf("replace readings for station %d: %w", stationID, err)
	}
	result.Stored = len(readings)
	result.Outcome = OutcomeImported
	metrics.AddReadingsStored(result.Stored)

	im.publish(ctx, logger, runID, result)
	logger.Info("readings replaced",
		zap.Int("rows", result.Rows),
		zap.Int("stored", result.Stored),
		zap.Int("rejected", result.Rejected),
	)
	return result, nil
}

func (im *Importer) reportRejected(logger *zap.Logger, rowErrs []*RowError) {
	for i, rowErr := range rowErrs {
		metrics.ObserveRejectedRow(rowErr.Column)
		if i < maxLoggedRowErrors {
			logger.Warn("row rejected",
				zap.Int("row", rowErr.Row),
				zap.String("column", rowErr.Column),
				zap.String("value", rowErr.Value),
				zap.Error(rowErr.Err),
			)
		}
	}
	if len(rowErrs) > maxLoggedRowErrors {
		logger.Warn("further rows rejected", zap.Int("count", len(rowErrs)-maxLoggedRowErrors))
	}
}

// archive stores the raw export for audit. Failures are logged only.
func (im *Importer) archive(ctx context.Context, logger *zap.Logger, stationID int, body []byte) string {
	if im.blobs == nil {
		return ""
	}
	hash, err := im.hasher.Hash(body)
	if err != nil {
		logger.Warn("hash export failed", zap.Error(err))
		return ""
	}
	uri, err := im.blobs.PutObject(ctx, im.buildBlobPath(stationID, hash), exportContentType, bytes.NewReader(body))
	if err != nil {
		logger.Warn("archive export failed", zap.Error(err))
		return ""
	}
	logger.Debug("export archived", zap.String("uri", uri))
	return uri
}

func (im *Importer) buildBlobPath(stationID int, hash string) string {
	id := strconv.Itoa(stationID)
	prefix := strings.Trim(im.cfg.ArchivePrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("exports/%s/%s.csv", id, hash)
	}
	return fmt.Sprintf("%s/exports/%s/%s.csv", prefix, id, hash)
}

// publish announces a replace. Failures are logged only; the readings are already committed.
func (im *Importer) publish(ctx context.Context, logger *zap.Logger, runID string, result Result) {
	if im.cfg.Topic == "" || im.publisher == nil {
		return
	}
	event := ReplacedEvent{
		StationID:  result.StationID,
		RunID:      runID,
		Readings:   result.Stored,
		Rejected:   result.Rejected,
		ArchiveURI: result.ArchiveURI,
		ReplacedAt: im.clock.Now().UTC(),
	}
	if _, err := im.publisher.Publish(ctx, im.cfg.Topic, event); err != nil {
		logger.Warn("publish replace notification failed", zap.Error(err))
	}
}
