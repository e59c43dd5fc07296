// Package control wires the store, workflows, queue and catalog into one app.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/slicks/internal/core/config"
	"github.com/vietddude/slicks/internal/core/domain"
	"github.com/vietddude/slicks/internal/core/worker"
	redisclient "github.com/vietddude/slicks/internal/infra/redis"
	"github.com/vietddude/slicks/internal/infra/storage/postgres"
	"github.com/vietddude/slicks/internal/infra/store"
	"github.com/vietddude/slicks/internal/infra/store/backend"
	"github.com/vietddude/slicks/internal/scanning/availability"
	"github.com/vietddude/slicks/internal/scanning/discovery"
	"github.com/vietddude/slicks/internal/scanning/health"
	"github.com/vietddude/slicks/internal/scanning/rescan"
)

var (
	ErrQueueDisabled   = errors.New("redis is not configured")
	ErrCatalogDisabled = errors.New("run catalog database is not configured")
)

// Catalog records finished runs.
type Catalog interface {
	RecordDiscovery(ctx context.Context, run domain.Run, sensors []string) error
	RecordScan(ctx context.Context, run domain.Run, windows []postgres.WindowRecord) error
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
}

// App is the main application struct that owns every long-lived dependency.
type App struct {
	cfg        *config.AppConfig
	dataset    string
	discoverer *discovery.Discoverer
	scanner    *availability.Scanner
	queue      rescan.Queue
	catalog    Catalog

	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// New creates an App with all dependencies initialized. Redis and the catalog
// are optional: a failed connection disables them with a warning.
func New(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	open, err := backend.NewFactory(cfg.Store)
	if err != nil {
		return nil, err
	}

	var (
		queue       rescan.Queue
		catalog     Catalog
		redisClient *redisclient.Client
		db          *postgres.DB
	)

	if cfg.Redis.Enabled() {
		redisClient, err = redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, rescan queue disabled", "error", err)
			redisClient = nil
		} else {
			queue = redisClient
		}
	}

	if cfg.Database.Enabled() {
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Warn("Failed to connect to catalog database, run history disabled", "error", err)
			db = nil
		} else if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		} else {
			catalog = postgres.NewCatalog(db)
		}
	}

	app := newApp(cfg, open, queue, catalog)
	app.redisClient = redisClient
	app.db = db

	if cfg.Metrics.Addr != "" {
		app.healthServer = health.NewServer(app.healthMonitor(open), cfg.Metrics.Addr)
	}
	return app, nil
}

func newApp(cfg *config.AppConfig, open store.Factory, queue rescan.Queue, catalog Catalog) *App {
	table := cfg.Store.TableRef()
	return &App{
		cfg:        cfg,
		dataset:    cfg.Store.Dataset(),
		discoverer: discovery.New(cfg.Discovery, open, table),
		scanner:    availability.New(cfg.Scan, open, table),
		queue:      queue,
		catalog:    catalog,
		log:        slog.Default().With("component", "control", "dataset", cfg.Store.Dataset()),
	}
}

func (a *App) healthMonitor(open store.Factory) *health.Monitor {
	checks := []health.Check{{
		Name:     "store",
		Required: true,
		Fn: func(ctx context.Context) error {
			conn, err := open(ctx)
			if err != nil {
				return err
			}
			return conn.Close()
		},
	}}
	if a.db != nil {
		checks = append(checks, health.Check{Name: "catalog", Fn: a.db.Health})
	}

	var queueLen health.QueueLen
	if a.redisClient != nil {
		checks = append(checks, health.Check{Name: "redis", Fn: func(ctx context.Context) error {
			_, err := a.redisClient.Len(ctx, domain.RunKindScan, a.dataset)
			return err
		}})
		queueLen = a.redisClient.Len
	}
	return health.NewMonitor(checks, queueLen, a.dataset, a.cfg.Metrics.MaxBacklog)
}

// Dataset names the table the app works on.
func (a *App) Dataset() string {
	return a.dataset
}

// ScanOptions returns the configured scan defaults.
func (a *App) ScanOptions() availability.Options {
	return a.scanner.DefaultOptions()
}

// Start starts the background components.
func (a *App) Start(ctx context.Context) error {
	if a.healthServer != nil {
		go func() {
			if err := a.healthServer.Start(); err != nil {
				a.log.Error("Health server failed", "error", err)
			}
		}()
		a.log.Info("Metrics server started", "addr", a.cfg.Metrics.Addr)
	}

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
		if a.cfg.Database.Retention > 0 {
			go worker.NewPruner(a.cfg.Database.Retention, postgres.NewCatalog(a.db)).Start(ctx)
		}
	}
	return nil
}

// Stop shuts down the background components and closes connections.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if a.healthServer != nil {
		if err := a.healthServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health server: %w", err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Discover runs sensor discovery over r, records it and queues its gaps.
func (a *App) Discover(ctx context.Context, r domain.TimeRange, progress discovery.ProgressFunc) (*discovery.Result, error) {
	return a.discover(ctx, r, progress, a.cfg.Rescan.AutoQueue)
}

func (a *App) discover(ctx context.Context, r domain.TimeRange, progress discovery.ProgressFunc, queueGaps bool) (*discovery.Result, error) {
	started := time.Now()
	res, err := a.discoverer.Discover(ctx, r, progress)
	if err != nil {
		a.recordFailure(ctx, domain.RunKindDiscovery, r, started)
		return nil, err
	}

	run := a.newRun(res.RunID, domain.RunKindDiscovery, r, started, res.Chunks, res.Incomplete)
	if a.catalog != nil {
		if err := a.catalog.RecordDiscovery(ctx, run, res.Sensors); err != nil {
			a.log.Warn("Failed to record discovery run", "run", run.ID, "error", err)
		}
	}
	if queueGaps {
		a.enqueue(ctx, domain.RunKindDiscovery, res.Incomplete)
	}
	return res, nil
}

// Scan runs an availability scan over r, records it and queues its gaps.
func (a *App) Scan(ctx context.Context, r domain.TimeRange, opts availability.Options, progress availability.ProgressFunc) (*availability.Report, error) {
	return a.scan(ctx, r, opts, progress, a.cfg.Rescan.AutoQueue)
}

func (a *App) scan(ctx context.Context, r domain.TimeRange, opts availability.Options, progress availability.ProgressFunc, queueGaps bool) (*availability.Report, error) {
	started := time.Now()
	rep, err := a.scanner.Scan(ctx, r, opts, progress)
	if err != nil {
		a.recordFailure(ctx, domain.RunKindScan, r, started)
		return nil, err
	}

	run := a.newRun(rep.RunID, domain.RunKindScan, rep.Range, started, len(rep.Range.Split(a.cfg.Scan.ChunkSize)), rep.Incomplete)
	if a.catalog != nil {
		if err := a.catalog.RecordScan(ctx, run, windowRecords(rep)); err != nil {
			a.log.Warn("Failed to record scan run", "run", run.ID, "error", err)
		}
	}
	if queueGaps {
		a.enqueue(ctx, domain.RunKindScan, rep.Incomplete)
	}
	return rep, nil
}

// Rescan drains the queue of kind once.
func (a *App) Rescan(ctx context.Context, kind domain.RunKind) (rescan.DrainResult, error) {
	w, err := a.rescanWorker(kind)
	if err != nil {
		return rescan.DrainResult{}, err
	}
	return w.Drain(ctx)
}

// WatchRescan drains the queue of kind until ctx is cancelled.
func (a *App) WatchRescan(ctx context.Context, kind domain.RunKind) error {
	w, err := a.rescanWorker(kind)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func (a *App) rescanWorker(kind domain.RunKind) (*rescan.Worker, error) {
	if a.queue == nil {
		return nil, ErrQueueDisabled
	}

	var rerun rescan.RerunFunc
	switch kind {
	case domain.RunKindDiscovery:
		rerun = func(ctx context.Context, r domain.TimeRange) ([]domain.TimeRange, error) {
			res, err := a.discover(ctx, r, nil, false)
			if err != nil {
				return nil, err
			}
			return res.Incomplete, nil
		}
	case domain.RunKindScan:
		opts := a.scanner.DefaultOptions()
		rerun = func(ctx context.Context, r domain.TimeRange) ([]domain.TimeRange, error) {
			rep, err := a.scan(ctx, r, opts, nil, false)
			if err != nil {
				return nil, err
			}
			return rep.Incomplete, nil
		}
	default:
		return nil, fmt.Errorf("unknown run kind %q", kind)
	}
	return rescan.NewWorker(a.cfg.Rescan.Config, kind, a.dataset, a.queue, rerun), nil
}

// Gaps lists the queued incomplete ranges of kind.
func (a *App) Gaps(ctx context.Context, kind domain.RunKind) ([]domain.TimeRange, error) {
	if a.queue == nil {
		return nil, ErrQueueDisabled
	}
	return a.queue.GetAllRanges(ctx, kind, a.dataset)
}

// History lists recent runs from the catalog.
func (a *App) History(ctx context.Context, limit int) ([]domain.Run, error) {
	if a.catalog == nil {
		return nil, ErrCatalogDisabled
	}
	return a.catalog.ListRuns(ctx, limit)
}

func (a *App) enqueue(ctx context.Context, kind domain.RunKind, ranges []domain.TimeRange) {
	if len(ranges) == 0 {
		return
	}
	if a.queue == nil {
		a.log.Warn("Incomplete ranges not queued, redis is not configured", "kind", kind, "ranges", len(ranges))
		return
	}
	if err := a.queue.PushRanges(ctx, kind, a.dataset, ranges); err != nil {
		a.log.Error("Failed to queue incomplete ranges", "kind", kind, "error", err)
		return
	}
	a.log.Info("Queued incomplete ranges for rescan", "kind", kind, "ranges", len(ranges))
}

func (a *App) newRun(id string, kind domain.RunKind, r domain.TimeRange, started time.Time, chunks int, incomplete []domain.TimeRange) domain.Run {
	status := domain.RunStatusCompleted
	if len(incomplete) > 0 {
		status = domain.RunStatusIncomplete
	}
	return domain.Run{
		ID:         id,
		Kind:       kind,
		Dataset:    a.dataset,
		Range:      r,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Status:     status,
		Chunks:     chunks,
		Incomplete: len(incomplete),
	}
}

// recordFailure is best effort: a failed run has no run ID from the workflow.
func (a *App) recordFailure(ctx context.Context, kind domain.RunKind, r domain.TimeRange, started time.Time) {
	if a.catalog == nil || ctx.Err() != nil {
		return
	}
	run := a.newRun(uuid.NewString(), kind, r, started, 0, nil)
	run.Status = domain.RunStatusFailed

	var err error
	if kind == domain.RunKindDiscovery {
		err = a.catalog.RecordDiscovery(ctx, run, nil)
	} else {
		err = a.catalog.RecordScan(ctx, run, nil)
	}
	if err != nil {
		a.log.Warn("Failed to record failed run", "kind", kind, "error", err)
	}
}

func windowRecords(rep *availability.Report) []postgres.WindowRecord {
	var out []postgres.WindowRecord
	for _, d := range rep.Days {
		for _, w := range d.Windows {
			out = append(out, postgres.WindowRecord{
				Day:      d.Date,
				StartUTC: w.StartUTC,
				EndUTC:   w.EndUTC,
				Bins:     w.Bins,
				Rows:     w.Rows,
			})
		}
	}
	return out
}
