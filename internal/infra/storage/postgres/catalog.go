package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vietddude/slicks/internal/core/domain"
)

// Catalog records workflow runs and their results.
type Catalog struct {
	db *DB
}

// NewCatalog creates a run catalog on db.
func NewCatalog(db *DB) *Catalog {
	return &Catalog{db: db}
}

// WindowRecord is one availability window of a scan run.
type WindowRecord struct {
	Day      string
	StartUTC time.Time
	EndUTC   time.Time
	Bins     int
	Rows     int64
}

type runRow struct {
	ID         string    `db:"id"`
	Kind       string    `db:"kind"`
	Dataset    string    `db:"dataset"`
	RangeStart time.Time `db:"range_start"`
	RangeEnd   time.Time `db:"range_end"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	Status     string    `db:"status"`
	Chunks     int       `db:"chunks"`
	Incomplete int       `db:"incomplete"`
}

type windowRow struct {
	RunID    string    `db:"run_id"`
	Day      string    `db:"day"`
	StartUTC time.Time `db:"start_utc"`
	EndUTC   time.Time `db:"end_utc"`
	Bins     int       `db:"bins"`
	RowCount int64     `db:"row_count"`
}

const insertRunSQL = `
INSERT INTO runs (id, kind, dataset, range_start, range_end, started_at, finished_at, status, chunks, incomplete)
VALUES (:id, :kind, :dataset, :range_start, :range_end, :started_at, :finished_at, :status, :chunks, :incomplete)`

const upsertSensorsSQL = `
INSERT INTO sensors (dataset, name, first_seen_run, last_seen_run, updated_at)
SELECT $1, name, $3, $3, $4 FROM unnest($2::text[]) AS name
ON CONFLICT (dataset, name) DO UPDATE
SET last_seen_run = EXCLUDED.last_seen_run, updated_at = EXCLUDED.updated_at`

const insertWindowsSQL = `
INSERT INTO windows (run_id, day, start_utc, end_utc, bins, row_count)
VALUES (:run_id, :day, :start_utc, :end_utc, :bins, :row_count)`

// RecordDiscovery stores a discovery run and the sensor names it found.
func (c *Catalog) RecordDiscovery(ctx context.Context, run domain.Run, sensors []string) error {
	return c.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		if len(sensors) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, upsertSensorsSQL,
			run.Dataset, pq.Array(sensors), run.ID, run.FinishedAt); err != nil {
			return fmt.Errorf("failed to upsert sensors: %w", err)
		}
		return nil
	})
}

// RecordScan stores a scan run and its windows.
func (c *Catalog) RecordScan(ctx context.Context, run domain.Run, windows []WindowRecord) error {
	return c.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		if len(windows) == 0 {
			return nil
		}
		rows := make([]windowRow, len(windows))
		for i, w := range windows {
			rows[i] = windowRow{
				RunID:    run.ID,
				Day:      w.Day,
				StartUTC: w.StartUTC.UTC(),
				EndUTC:   w.EndUTC.UTC(),
				Bins:     w.Bins,
				RowCount: w.Rows,
			}
		}
		if _, err := tx.NamedExecContext(ctx, insertWindowsSQL, rows); err != nil {
			return fmt.Errorf("failed to insert windows: %w", err)
		}
		return nil
	})
}

// ListRuns returns the most recent runs, newest first.
func (c *Catalog) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []runRow
	err := c.db.SelectContext(ctx, &rows,
		`SELECT id, kind, dataset, range_start, range_end, started_at, finished_at, status, chunks, incomplete
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]domain.Run, len(rows))
	for i, r := range rows {
		runs[i] = domain.Run{
			ID:         r.ID,
			Kind:       domain.RunKind(r.Kind),
			Dataset:    r.Dataset,
			Range:      domain.TimeRange{Start: r.RangeStart.UTC(), End: r.RangeEnd.UTC()},
			StartedAt:  r.StartedAt.UTC(),
			FinishedAt: r.FinishedAt.UTC(),
			Status:     domain.RunStatus(r.Status),
			Chunks:     r.Chunks,
			Incomplete: r.Incomplete,
		}
	}
	return runs, nil
}

// Sensors returns the names known for dataset.
func (c *Catalog) Sensors(ctx context.Context, dataset string) ([]string, error) {
	var names []string
	err := c.db.SelectContext(ctx, &names,
		`SELECT name FROM sensors WHERE dataset = $1 ORDER BY name`, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	return names, nil
}

// DeleteRunsOlderThan removes runs started before the cutoff together with
// their windows. Runs still referenced by a sensor are kept.
func (c *Catalog) DeleteRunsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE started_at < $1
		  AND id NOT IN (SELECT first_seen_run FROM sensors UNION SELECT last_seen_run FROM sensors)`,
		before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return res.RowsAffected()
}

func insertRun(ctx context.Context, tx *sqlx.Tx, run domain.Run) error {
	row := runRow{
		ID:         run.ID,
		Kind:       string(run.Kind),
		Dataset:    run.Dataset,
		RangeStart: run.Range.Start.UTC(),
		RangeEnd:   run.Range.End.UTC(),
		StartedAt:  run.StartedAt.UTC(),
		FinishedAt: run.FinishedAt.UTC(),
		Status:     string(run.Status),
		Chunks:     run.Chunks,
		Incomplete: run.Incomplete,
	}
	if _, err := tx.NamedExecContext(ctx, insertRunSQL, row); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (c *Catalog) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
