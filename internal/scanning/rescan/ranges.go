package rescan

import (
	"sort"

	"github.com/vietddude/slicks/internal/core/domain"
)

// MergeRanges merges overlapping and adjacent ranges. Invalid ranges are
// dropped. The input slice is not modified.
func MergeRanges(ranges []domain.TimeRange) []domain.TimeRange {
	sorted := make([]domain.TimeRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Valid() {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) <= 1 {
		return sorted
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []domain.TimeRange{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if last.Overlaps(cur) {
			*last = last.Merge(cur)
		} else {
			merged = append(merged, cur)
		}
	}
	return merged
}
