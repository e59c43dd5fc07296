package worker

import (
	"context"
	"log/slog"
	"time"
)

// RunStore deletes catalog runs that started before a cutoff.
type RunStore interface {
	DeleteRunsOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Pruner deletes old catalog runs based on retention policy.
type Pruner struct {
	retention time.Duration
	runs      RunStore
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, runs RunStore) *Pruner {
	return &Pruner{
		retention: retention,
		runs:      runs,
		now:       time.Now,
	}
}

// Interval is how often Start prunes: 10% of the retention period,
// clamped to [1m, 1h].
func (p *Pruner) Interval() time.Duration {
	interval := min(p.retention/10, time.Hour)
	return max(interval, time.Minute)
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune deletes runs older than the retention period once.
func (p *Pruner) Prune(ctx context.Context) {
	if p.retention <= 0 {
		return
	}
	threshold := p.now().Add(-p.retention)

	n, err := p.runs.DeleteRunsOlderThan(ctx, threshold)
	if err != nil {
		slog.Error("[Pruner] failed to prune runs", "before", threshold, "error", err)
		return
	}
	if n > 0 {
		slog.Info("[Pruner] pruned runs", "count", n, "before", threshold)
	}
}
