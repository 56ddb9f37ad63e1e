// Package app initializes and holds the long-lived harvester services, acting
// as the dependency injection container for the binary.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JakeFAU/pcd-harvester/internal/api"
	"github.com/JakeFAU/pcd-harvester/internal/config"
	collyfetcher "github.com/JakeFAU/pcd-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/pcd-harvester/internal/harvest"
	"github.com/JakeFAU/pcd-harvester/internal/hash/sha256"
	"github.com/JakeFAU/pcd-harvester/internal/id/uuid"
	"github.com/JakeFAU/pcd-harvester/internal/ingest"
	"github.com/JakeFAU/pcd-harvester/internal/pacing"
	memorypublisher "github.com/JakeFAU/pcd-harvester/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/pcd-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/pcd-harvester/internal/source"
	"github.com/JakeFAU/pcd-harvester/internal/station"
	"github.com/JakeFAU/pcd-harvester/internal/storage/gcs"
	"github.com/JakeFAU/pcd-harvester/internal/storage/local"
	"github.com/JakeFAU/pcd-harvester/internal/storage/memory"
	"github.com/JakeFAU/pcd-harvester/internal/storage/postgres"
)

// App holds the wired services. It is built once at startup by New and
// released with Close.
type App struct {
	logger    *zap.Logger
	harvester *harvest.Harvester
	stations  station.Store
	runs      station.RunStore
	pinger    api.Pinger
	closers   []closer
}

type closer struct {
	name string
	fn   func() error
}

// Harvester returns the crawl orchestrator.
func (a *App) Harvester() *harvest.Harvester {
	return a.harvester
}

// Stations returns the station store in use.
func (a *App) Stations() station.Store {
	return a.stations
}

// Runs returns the run ledger in use.
func (a *App) Runs() station.RunStore {
	return a.runs
}

// Server builds the ops HTTP server over the wired services. runCtx bounds
// runs started through the server.
func (a *App) Server(runCtx context.Context) *api.Server {
	return api.NewServer(api.Deps{
		Harvester:  a.harvester,
		Runs:       a.runs,
		Stations:   a.stations,
		Pinger:     a.pinger,
		RunContext: runCtx,
	}, a.logger)
}

// New wires every service from cfg. It fails fast when a configured backend
// cannot be reached, releasing whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	logger.Info("initializing harvester services",
		zap.String("region", cfg.Source.Region),
		zap.Bool("dry_run", cfg.Harvest.DryRun),
	)

	clock := clockwork.NewRealClock()
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Source.UserAgent,
		RespectRobots: cfg.Source.RespectRobots,
		Timeout:       cfg.Timeout(),
		MaxBodyBytes:  cfg.Source.MaxBodyBytes,
	})
	client, err := source.NewClient(fetcher, source.Config{
		BaseURL: cfg.Source.BaseURL,
		Region:  cfg.Source.Region,
	}, logger.Named("source"))
	if err != nil {
		return nil, fmt.Errorf("build source client: %w", err)
	}

	if err := a.openStores(ctx, cfg); err != nil {
		return nil, err
	}

	blobs, err := a.openArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := a.openPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}

	importer, err := ingest.New(client, a.stations, blobs, sha256.New(), publisher, clock, ingest.Config{
		Location:      loc,
		ArchivePrefix: cfg.Archive.Prefix,
		Topic:         cfg.PubSub.TopicName,
	}, logger.Named("ingest"))
	if err != nil {
		return nil, fmt.Errorf("build importer: %w", err)
	}

	policy, err := pacing.New(cfg.Harvest.Pacing, cfg.Delay(), clock)
	if err != nil {
		return nil, fmt.Errorf("build pacing policy: %w", err)
	}
	sequence := pacing.NewSequence(policy, clock, logger.Named("pacing"))

	a.harvester, err = harvest.New(client, importer, a.stations, a.runs, uuid.New(), sequence, clock, logger.Named("harvest"))
	if err != nil {
		return nil, fmt.Errorf("build harvester: %w", err)
	}

	logger.Info("harvester services initialized")
	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg config.Config) error {
	if cfg.Harvest.DryRun {
		a.logger.Info("dry run: using in-memory stores")
		a.stations = memory.NewStationStore()
		a.runs = memory.NewRunStore()
		return nil
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.ConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.addCloser("postgres", func() error {
		pool.Close()
		return nil
	})
	if cfg.DB.EnsureSchema {
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	stations, err := postgres.NewStationStore(pool)
	if err != nil {
		return fmt.Errorf("build station store: %w", err)
	}
	runs, err := postgres.NewRunStore(pool)
	if err != nil {
		return fmt.Errorf("build run store: %w", err)
	}
	a.stations, a.runs, a.pinger = stations, runs, pool
	return nil
}

// openArchive returns a nil interface when archiving is disabled.
func (a *App) openArchive(ctx context.Context, cfg config.Config) (station.BlobStore, error) {
	switch cfg.Archive.Backend {
	case "", config.ArchiveNone:
		return nil, nil
	case config.ArchiveMemory:
		return memory.NewBlobStore(), nil
	case config.ArchiveLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("open local archive: %w", err)
		}
		return store, nil
	case config.ArchiveGCS:
		store, err := gcs.Dial(ctx, gcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("open gcs archive: %w", err)
		}
		a.addCloser("gcs", store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

// openPublisher returns a nil interface when no topic is configured. Dry runs
// publish in memory.
func (a *App) openPublisher(ctx context.Context, cfg config.Config) (station.Publisher, error) {
	if cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	if cfg.Harvest.DryRun {
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	a.addCloser("pubsub client", client.Close)
	pub, err := pubsubpublisher.New(client)
	if err != nil {
		return nil, fmt.Errorf("build pubsub publisher: %w", err)
	}
	a.addCloser("pubsub topics", func() error {
		pub.Close()
		return nil
	})
	return pub, nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close releases services in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
