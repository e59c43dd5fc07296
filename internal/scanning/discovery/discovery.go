// Package discovery finds every distinct sensor name recorded in a time range.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/slicks/internal/core/domain"
	"github.com/vietddude/slicks/internal/engine"
	"github.com/vietddude/slicks/internal/infra/store"
)

const workflowName = "discovery"

// Config tunes chunking and splitting for discovery.
type Config struct {
	ChunkSize  time.Duration `yaml:"chunk_size"`
	MaxWorkers int           `yaml:"max_workers"`
	MinSpan    time.Duration `yaml:"min_span"`
	MaxDepth   int           `yaml:"max_depth"`
	Column     string        `yaml:"column"`
}

// DefaultConfig returns 7-day chunks on 4 workers, split down to 10s or depth 5.
func DefaultConfig() Config {
	return Config{
		ChunkSize:  7 * 24 * time.Hour,
		MaxWorkers: 4,
		MinSpan:    10 * time.Second,
		MaxDepth:   5,
		Column:     "signalName",
	}
}

// ProgressFunc receives the number of finished chunks out of total.
type ProgressFunc func(done, total int)

// Result is the outcome of one discovery run.
type Result struct {
	RunID   string           `json:"run_id"`
	Range   domain.TimeRange `json:"range"`
	Sensors []string         `json:"sensors"`
	Chunks  int              `json:"chunks"`
	// Incomplete lists ranges dropped at a split floor; names recorded only
	// inside them are missing from Sensors.
	Incomplete []domain.TimeRange `json:"incomplete,omitempty"`
}

// Complete reports whether every sub-range was answered.
func (r *Result) Complete() bool {
	return len(r.Incomplete) == 0
}

// Discoverer runs distinct-name scans against one table.
type Discoverer struct {
	cfg   Config
	open  store.Factory
	table string
	log   *slog.Logger
}

// New creates a Discoverer. tableRef must already be quoted.
func New(cfg Config, open store.Factory, tableRef string) *Discoverer {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.Column == "" {
		cfg.Column = def.Column
	}
	return &Discoverer{
		cfg:   cfg,
		open:  open,
		table: tableRef,
		log:   slog.Default().With("component", workflowName),
	}
}

// Discover returns the sorted, de-duplicated sensor names seen in r.
// A permanent store failure aborts the run. A range no longer than MinSpan
// is queried as is instead of being reported incomplete.
func (d *Discoverer) Discover(ctx context.Context, r domain.TimeRange, progress ProgressFunc) (*Result, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidRange, r)
	}

	res := &Result{RunID: uuid.NewString(), Range: r}
	chunks := r.Split(d.cfg.ChunkSize)
	res.Chunks = len(chunks)

	// A range already at the span floor, usually a queued gap, is still
	// queried; only MaxDepth bounds its splits.
	minSpan := d.cfg.MinSpan
	if r.Duration() <= minSpan {
		minSpan = 0
	}

	var (
		mu         sync.Mutex
		incomplete []domain.TimeRange
		done       atomic.Int32
	)
	splitter := &engine.Splitter[store.Conn, string]{
		Name:     workflowName,
		Primary:  d.queryDistinct,
		MinSpan:  minSpan,
		MaxDepth: d.cfg.MaxDepth,
		OnFloor: func(ev engine.FloorEvent) {
			if !ev.Dropped() {
				return
			}
			mu.Lock()
			incomplete = append(incomplete, ev.Range)
			mu.Unlock()
		},
	}

	d.log.Info("Discovering sensors", "run", res.RunID, "range", r, "chunks", len(chunks))

	names, err := engine.RunChunks(ctx, d.connect, chunks, splitter.Query, engine.ExecOptions{
		Name:       workflowName,
		MaxWorkers: d.cfg.MaxWorkers,
		OnChunkDone: func(idx int) {
			n := int(done.Add(1))
			d.log.Debug("Chunk done", "chunk", idx, "done", n, "total", len(chunks))
			if progress != nil {
				progress(n, len(chunks))
			}
		},
	})
	if err != nil {
		if engine.IsPermanent(err) {
			return nil, fmt.Errorf("discovery: aborted: %w", err)
		}
		return nil, fmt.Errorf("discovery: %w", err)
	}

	res.Sensors = uniqueSorted(names)
	sort.Slice(incomplete, func(i, j int) bool {
		return incomplete[i].Start.Before(incomplete[j].Start)
	})
	res.Incomplete = incomplete

	if !res.Complete() {
		d.log.Warn("Discovery finished with gaps", "run", res.RunID, "incomplete", len(incomplete))
	}
	d.log.Info("Discovery finished", "run", res.RunID, "sensors", len(res.Sensors))
	return res, nil
}

func (d *Discoverer) connect(ctx context.Context) (store.Conn, error) {
	return d.open(ctx)
}

func (d *Discoverer) queryDistinct(ctx context.Context, conn store.Conn, r domain.TimeRange) ([]string, error) {
	sql := fmt.Sprintf(
		`SELECT DISTINCT %s FROM %s WHERE time >= '%s' AND time < '%s'`,
		store.QuoteIdent(d.cfg.Column), d.table, store.Timestamp(r.Start), store.Timestamp(r.End),
	)

	tbl, err := conn.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	if tbl.NumRows() == 0 {
		return nil, nil
	}

	values, err := tbl.Column(d.cfg.Column)
	if err != nil {
		return nil, &engine.PermanentError{Err: err}
	}

	names := make([]string, 0, len(values))
	for _, v := range values {
		switch name := v.(type) {
		case nil:
		case string:
			names = append(names, name)
		default:
			names = append(names, fmt.Sprint(name))
		}
	}
	return names, nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
