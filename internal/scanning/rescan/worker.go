// Package rescan re-runs the time ranges a workflow could not answer.
package rescan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/slicks/internal/core/domain"
	"github.com/vietddude/slicks/internal/engine"
)

// ErrLocked is returned when another process is draining the same queue.
var ErrLocked = errors.New("queue is being drained by another process")

// Queue is the store of incomplete ranges.
type Queue interface {
	PushRange(ctx context.Context, kind domain.RunKind, dataset string, r domain.TimeRange) error
	PushRanges(ctx context.Context, kind domain.RunKind, dataset string, ranges []domain.TimeRange) error
	PopRange(ctx context.Context, kind domain.RunKind, dataset string) (domain.TimeRange, bool, error)
	GetAllRanges(ctx context.Context, kind domain.RunKind, dataset string) ([]domain.TimeRange, error)
	Len(ctx context.Context, kind domain.RunKind, dataset string) (int64, error)
	ClearQueue(ctx context.Context, kind domain.RunKind, dataset string) error
	AcquireLock(ctx context.Context, kind domain.RunKind, dataset string, ttl time.Duration) (bool, error)
	RefreshLock(ctx context.Context, kind domain.RunKind, dataset string, ttl time.Duration) error
	ReleaseLock(ctx context.Context, kind domain.RunKind, dataset string) error
}

// RerunFunc runs the workflow over r and returns the sub-ranges that are
// still incomplete.
type RerunFunc func(ctx context.Context, r domain.TimeRange) ([]domain.TimeRange, error)

// Config holds configuration for the rescan worker.
type Config struct {
	LockTTL      time.Duration `yaml:"lock_ttl"`      // default: 5m
	RangeTimeout time.Duration `yaml:"range_timeout"` // default: 30m
	Interval     time.Duration `yaml:"interval"`      // between drains in watch mode, default: 1m
}

// DefaultConfig returns default worker configuration.
func DefaultConfig() Config {
	return Config{
		LockTTL:      5 * time.Minute,
		RangeTimeout: 30 * time.Minute,
		Interval:     time.Minute,
	}
}

// DrainResult summarises one drain.
type DrainResult struct {
	Processed int
	Requeued  int // failed ranges and remaining gaps pushed back
	Failed    int
}

// Worker drains one queue.
type Worker struct {
	cfg     Config
	kind    domain.RunKind
	dataset string
	queue   Queue
	rerun   RerunFunc
	log     *slog.Logger
}

// NewWorker creates a new rescan worker.
func NewWorker(cfg Config, kind domain.RunKind, dataset string, queue Queue, rerun RerunFunc) *Worker {
	def := DefaultConfig()
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.RangeTimeout <= 0 {
		cfg.RangeTimeout = def.RangeTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	return &Worker{
		cfg:     cfg,
		kind:    kind,
		dataset: dataset,
		queue:   queue,
		rerun:   rerun,
		log:     slog.Default().With("component", "rescan", "kind", kind, "dataset", dataset),
	}
}

// Run drains the queue every Interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting rescan worker", "interval", w.cfg.Interval)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		res, err := w.Drain(ctx)
		switch {
		case err == nil:
			if res.Processed > 0 {
				w.log.Info("Drain finished", "processed", res.Processed, "requeued", res.Requeued, "failed", res.Failed)
			}
		case errors.Is(err, ErrLocked):
			w.log.Debug("Queue locked by another process")
		case ctx.Err() != nil:
		default:
			w.log.Error("Drain failed", "error", err)
			if engine.IsPermanent(err) {
				return err
			}
		}

		select {
		case <-ctx.Done():
			w.log.Info("Rescan worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Drain re-runs every range queued when it starts. Failed ranges and the
// gaps still left are pushed back once the drain ends, so they wait for the
// next one.
func (w *Worker) Drain(ctx context.Context) (res DrainResult, err error) {
	locked, err := w.queue.AcquireLock(ctx, w.kind, w.dataset, w.cfg.LockTTL)
	if err != nil {
		return res, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return res, ErrLocked
	}
	defer func() {
		// The caller's ctx may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := w.queue.ReleaseLock(releaseCtx, w.kind, w.dataset); err != nil {
			w.log.Warn("Failed to release lock", "error", err)
		}
	}()

	if err := w.mergeQueueRanges(ctx); err != nil {
		w.log.Warn("Failed to merge ranges", "error", err)
	}

	pending, err := w.queue.Len(ctx, w.kind, w.dataset)
	if err != nil {
		return res, fmt.Errorf("failed to read queue length: %w", err)
	}

	var requeue []domain.TimeRange
	defer func() {
		res.Requeued += w.pushBack(ctx, requeue)
	}()

	for i := int64(0); i < pending; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		r, found, err := w.queue.PopRange(ctx, w.kind, w.dataset)
		if err != nil {
			return res, fmt.Errorf("failed to pop range: %w", err)
		}
		if !found {
			break
		}

		left, err := w.processRange(ctx, r, &res)
		requeue = append(requeue, left...)
		if err != nil {
			return res, err
		}

		if err := w.queue.RefreshLock(ctx, w.kind, w.dataset, w.cfg.LockTTL); err != nil {
			w.log.Warn("Failed to refresh lock", "error", err)
		}
	}
	return res, nil
}

// processRange re-runs one range and returns what must go back on the queue:
// the range itself on failure, or its remaining gaps. Only cancellation and
// permanent failures stop the drain.
func (w *Worker) processRange(ctx context.Context, r domain.TimeRange, res *DrainResult) ([]domain.TimeRange, error) {
	w.log.Info("Processing range", "range", r)

	rangeCtx, cancel := context.WithTimeout(ctx, w.cfg.RangeTimeout)
	incomplete, err := w.rerun(rangeCtx, r)
	cancel()

	if err != nil {
		res.Failed++
		retry := []domain.TimeRange{r}
		if ctx.Err() != nil {
			return retry, ctx.Err()
		}
		if engine.IsPermanent(err) {
			return retry, fmt.Errorf("rescan: aborted: %w", err)
		}
		w.log.Error("Failed to process range", "range", r, "error", err)
		return retry, nil
	}

	res.Processed++
	if len(incomplete) == 0 {
		w.log.Info("Range completed", "range", r)
		return nil, nil
	}

	w.log.Warn("Range still incomplete", "range", r, "gaps", len(incomplete))
	return incomplete, nil
}

// pushBack queues ranges for the next drain and returns how many were queued.
func (w *Worker) pushBack(ctx context.Context, ranges []domain.TimeRange) int {
	if len(ranges) == 0 {
		return 0
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.queue.PushRanges(pushCtx, w.kind, w.dataset, ranges); err != nil {
		w.log.Error("Failed to re-queue ranges", "ranges", len(ranges), "error", err)
		return 0
	}
	return len(ranges)
}

// mergeQueueRanges merges overlapping/adjacent ranges in the queue.
func (w *Worker) mergeQueueRanges(ctx context.Context) error {
	ranges, err := w.queue.GetAllRanges(ctx, w.kind, w.dataset)
	if err != nil {
		return err
	}
	if len(ranges) <= 1 {
		return nil
	}

	merged := MergeRanges(ranges)
	if len(merged) == len(ranges) {
		return nil
	}

	w.log.Info("Merging ranges", "before", len(ranges), "after", len(merged))

	if err := w.queue.ClearQueue(ctx, w.kind, w.dataset); err != nil {
		return err
	}
	return w.queue.PushRanges(ctx, w.kind, w.dataset, merged)
}
