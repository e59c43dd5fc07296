package engine

import (
	"sort"
	"time"

	"github.com/vietddude/slicks/internal/core/domain"
)

// CompressBins merges fixed-width buckets into maximal contiguous windows.
//
// Buckets are sorted by start. A bucket starting exactly where the open window
// ends extends it; any gap closes it. A bucket repeating the previous start
// only adds its count. Any other start, including one off the step grid that
// falls inside the open window, closes the window and opens a new one, so
// End-Start stays Buckets*step for every window.
func CompressBins(buckets []domain.Bucket, step time.Duration) []domain.Window {
	if len(buckets) == 0 || step <= 0 {
		return nil
	}

	sorted := make([]domain.Bucket, len(buckets))
	copy(sorted, buckets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var (
		windows []domain.Window
		cur     domain.Window
		last    time.Time
		open    bool
	)
	for _, b := range sorted {
		switch {
		case !open:
			cur = domain.Window{Start: b.Start, End: b.Start.Add(step), Buckets: 1, Rows: b.Count}
			open = true
		case b.Start.Equal(last):
			cur.Rows += b.Count
		case b.Start.Equal(cur.End):
			cur.End = cur.End.Add(step)
			cur.Buckets++
			cur.Rows += b.Count
		default:
			windows = append(windows, cur)
			cur = domain.Window{Start: b.Start, End: b.Start.Add(step), Buckets: 1, Rows: b.Count}
		}
		last = b.Start
	}
	if open {
		windows = append(windows, cur)
	}
	return windows
}
