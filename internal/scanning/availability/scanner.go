// Package availability scans a table for contiguous windows that hold data.
package availability

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/slicks/internal/core/domain"
	"github.com/vietddude/slicks/internal/engine"
	"github.com/vietddude/slicks/internal/infra/store"
	"github.com/vietddude/slicks/internal/scanning/metrics"
)

const workflowName = "scan"

// Config tunes chunking and splitting for scans.
type Config struct {
	ChunkSize  time.Duration `yaml:"chunk_size"`
	MaxWorkers int           `yaml:"max_workers"`
	MaxDepth   int           `yaml:"max_depth"`
	Timezone   string        `yaml:"timezone"`
	Bin        string        `yaml:"bin"`
}

// DefaultConfig returns 31-day chunks on 4 workers with split depth 12.
func DefaultConfig() Config {
	return Config{
		ChunkSize:  31 * 24 * time.Hour,
		MaxWorkers: 4,
		MaxDepth:   12,
		Timezone:   "UTC",
		Bin:        string(BinHour),
	}
}

// Options select how one scan is binned and presented.
type Options struct {
	Timezone      string
	Bin           BinSize
	IncludeCounts bool
}

// ProgressFunc receives the number of finished chunks out of total.
type ProgressFunc func(done, total int)

// Scanner finds data availability windows in one table.
type Scanner struct {
	cfg   Config
	open  store.Factory
	table string
	log   *slog.Logger
}

// New creates a Scanner. tableRef must already be quoted.
func New(cfg Config, open store.Factory, tableRef string) *Scanner {
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
	if cfg.Timezone == "" {
		cfg.Timezone = def.Timezone
	}
	if cfg.Bin == "" {
		cfg.Bin = def.Bin
	}
	return &Scanner{
		cfg:   cfg,
		open:  open,
		table: tableRef,
		log:   slog.Default().With("component", workflowName),
	}
}

// DefaultOptions returns the configured timezone and bin with counts on.
func (s *Scanner) DefaultOptions() Options {
	bin, err := ParseBinSize(s.cfg.Bin)
	if err != nil {
		bin = BinHour
	}
	return Options{Timezone: s.cfg.Timezone, Bin: bin, IncludeCounts: true}
}

// Scan returns the windows of r that contain rows, grouped by local day.
func (s *Scanner) Scan(ctx context.Context, r domain.TimeRange, opts Options, progress ProgressFunc) (*Report, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidRange, r)
	}
	r = domain.TimeRange{Start: r.Start.UTC(), End: r.End.UTC()}

	bin, err := ParseBinSize(string(opts.Bin))
	if err != nil {
		return nil, err
	}
	tz := opts.Timezone
	if tz == "" {
		tz = s.cfg.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", tz, err)
	}

	run := &scanRun{
		table:  s.table,
		bin:    bin,
		step:   bin.Step(),
		origin: r.Start,
		log:    s.log,
	}
	splitter := &engine.Splitter[store.Conn, domain.Bucket]{
		Name:     workflowName,
		Primary:  run.queryBins,
		Fallback: run.probeBins,
		MinSpan:  4 * run.step,
		MaxDepth: s.cfg.MaxDepth,
	}

	chunks := r.Split(s.cfg.ChunkSize)
	report := &Report{RunID: uuid.NewString(), Range: r, Timezone: tz, Bin: bin}
	s.log.Info("Scanning availability", "run", report.RunID, "range", r, "bin", bin, "chunks", len(chunks))

	var done atomic.Int32
	buckets, err := engine.RunChunks(ctx, s.connect, chunks, splitter.Query, engine.ExecOptions{
		Name:       workflowName,
		MaxWorkers: s.cfg.MaxWorkers,
		OnChunkDone: func(idx int) {
			n := int(done.Add(1))
			if progress != nil {
				progress(n, len(chunks))
			}
		},
	})
	if err != nil {
		if engine.IsPermanent(err) {
			return nil, fmt.Errorf("scan: aborted: %w", err)
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	windows := engine.CompressBins(buckets, run.step)
	report.Days = groupByDay(windows, loc, opts.IncludeCounts)
	report.Incomplete = run.incompleteRanges()

	if len(report.Incomplete) > 0 {
		s.log.Warn("Scan finished with gaps", "run", report.RunID, "incomplete", len(report.Incomplete))
	}
	s.log.Info("Scan finished", "run", report.RunID, "days", report.Len(), "rows", report.TotalRows())
	return report, nil
}

func (s *Scanner) connect(ctx context.Context) (store.Conn, error) {
	return s.open(ctx)
}

// scanRun holds the state shared by every chunk of one scan.
type scanRun struct {
	table  string
	bin    BinSize
	step   time.Duration
	origin time.Time
	log    *slog.Logger

	mu         sync.Mutex
	incomplete []domain.TimeRange
}

// queryBins counts rows per bin. Every sub-range bins against the scan
// origin so buckets from sibling ranges line up.
func (run *scanRun) queryBins(ctx context.Context, conn store.Conn, r domain.TimeRange) ([]domain.Bucket, error) {
	sql := fmt.Sprintf(
		`SELECT DATE_BIN(INTERVAL '%s', time, TIMESTAMP '%s') AS bucket, COUNT(*) AS n FROM %s `+
			`WHERE time >= TIMESTAMP '%s' AND time < TIMESTAMP '%s' `+
			`GROUP BY bucket HAVING COUNT(*) > 0 ORDER BY bucket`,
		run.bin.Interval(), store.Timestamp(run.origin), run.table,
		store.Timestamp(r.Start), store.Timestamp(r.End),
	)

	tbl, err := conn.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	if tbl.NumRows() == 0 {
		return nil, nil
	}

	bi, ni := tbl.Index("bucket"), tbl.Index("n")
	if bi < 0 || ni < 0 {
		return nil, &engine.PermanentError{Err: fmt.Errorf("bin query returned columns %v", tbl.Columns)}
	}

	out := make([]domain.Bucket, 0, tbl.NumRows())
	for _, row := range tbl.Rows {
		start, err := toTime(row[bi])
		if err != nil {
			return nil, &engine.PermanentError{Err: err}
		}
		n, err := toInt64(row[ni])
		if err != nil {
			return nil, &engine.PermanentError{Err: err}
		}
		out = append(out, domain.Bucket{Start: start, Count: n})
	}
	return out, nil
}

// probeBins checks each bin of r for at least one row. A bin whose probe
// fails recoverably is skipped and recorded as incomplete.
func (run *scanRun) probeBins(ctx context.Context, conn store.Conn, r domain.TimeRange) ([]domain.Bucket, error) {
	var out []domain.Bucket
	cur := run.alignDown(r.Start)
	for cur.Before(r.End) {
		next := cur.Add(run.step)
		lo, hi := maxTime(cur, r.Start), minTime(next, r.End)

		sql := fmt.Sprintf(
			`SELECT 1 FROM %s WHERE time >= TIMESTAMP '%s' AND time < TIMESTAMP '%s' LIMIT 1`,
			run.table, store.Timestamp(lo), store.Timestamp(hi),
		)
		tbl, err := conn.Query(ctx, sql)
		switch {
		case err == nil:
			if tbl.NumRows() > 0 {
				out = append(out, domain.Bucket{Start: cur, Count: 1})
			}
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case engine.IsPermanent(err) || engine.Classify(err) == engine.Permanent:
			metrics.PermanentFailuresTotal.WithLabelValues(workflowName).Inc()
			return nil, &engine.PermanentError{Err: err}
		default:
			skipped := domain.TimeRange{Start: lo, End: hi}
			metrics.IncompleteRangesTotal.WithLabelValues(workflowName).Inc()
			run.log.Warn("Probe failed, bin skipped", "range", skipped, "error", err)
			run.mu.Lock()
			run.incomplete = append(run.incomplete, skipped)
			run.mu.Unlock()
		}
		cur = next
	}
	return out, nil
}

func (run *scanRun) alignDown(t time.Time) time.Time {
	if t.Before(run.origin) {
		return t
	}
	offset := t.Sub(run.origin)
	return run.origin.Add(offset - offset%run.step)
}

func (run *scanRun) incompleteRanges() []domain.TimeRange {
	run.mu.Lock()
	defer run.mu.Unlock()
	out := make([]domain.TimeRange, len(run.incomplete))
	copy(out, run.incomplete)
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func groupByDay(windows []domain.Window, loc *time.Location, includeCounts bool) []Day {
	byDay := make(map[string][]TimeWindow)
	for _, w := range windows {
		tw := TimeWindow{
			StartUTC:   w.Start.UTC(),
			EndUTC:     w.End.UTC(),
			StartLocal: w.Start.In(loc),
			EndLocal:   w.End.In(loc),
			Bins:       w.Buckets,
		}
		if includeCounts {
			tw.Rows = w.Rows
		}
		key := tw.StartLocal.Format(time.DateOnly)
		byDay[key] = append(byDay[key], tw)
	}

	days := make([]Day, 0, len(byDay))
	for key, ws := range byDay {
		days = append(days, Day{Date: key, Windows: ws})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse bucket %q: %w", t, err)
		}
		return parsed.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unexpected bucket type %T", v)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
