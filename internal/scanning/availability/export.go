package availability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
)

// WindowRow is the flat, one-row-per-window export layout.
type WindowRow struct {
	Date          string    `parquet:"date"`
	StartUTC      time.Time `parquet:"start_utc"`
	EndUTC        time.Time `parquet:"end_utc"`
	StartLocal    string    `parquet:"start_local"`
	EndLocal      string    `parquet:"end_local"`
	RowCount      int64     `parquet:"row_count"`
	Bins          int64     `parquet:"bins"`
	DurationHours float64   `parquet:"duration_hours"`
}

// Rows flattens the report for export.
func (r *Report) Rows() []WindowRow {
	var out []WindowRow
	for _, d := range r.Days {
		for _, w := range d.Windows {
			out = append(out, WindowRow{
				Date:          d.Date,
				StartUTC:      w.StartUTC,
				EndUTC:        w.EndUTC,
				StartLocal:    w.StartLocal.Format(time.RFC3339),
				EndLocal:      w.EndLocal.Format(time.RFC3339),
				RowCount:      w.Rows,
				Bins:          int64(w.Bins),
				DurationHours: w.Duration().Hours(),
			})
		}
	}
	return out
}

// WriteParquet writes one row per window to path.
func WriteParquet(path string, r *Report) error {
	if err := parquet.WriteFile(path, r.Rows()); err != nil {
		return fmt.Errorf("failed to write parquet %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes the report as JSON to path. A ".zst" suffix compresses
// the output with zstd.
func WriteJSON(path string, r *Report) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var w io.Writer = f
	if strings.HasSuffix(path, ".zst") {
		enc, zerr := zstd.NewWriter(f)
		if zerr != nil {
			return fmt.Errorf("create zstd encoder: %w", zerr)
		}
		defer func() {
			if cerr := enc.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = enc
	}

	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	if err := e.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
