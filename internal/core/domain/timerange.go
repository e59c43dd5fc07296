package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRange is returned when a range does not satisfy Start < End.
var ErrInvalidRange = errors.New("invalid time range")

// TimeRange is a half-open [Start, End) interval of UTC instants.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeRange builds a range normalised to UTC and validates Start < End.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	r := TimeRange{Start: start.UTC(), End: end.UTC()}
	if !r.Valid() {
		return TimeRange{}, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	return r, nil
}

// Valid reports whether Start is strictly before End.
func (r TimeRange) Valid() bool {
	return r.Start.Before(r.End)
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Mid returns the instant halfway between Start and End.
func (r TimeRange) Mid() time.Time {
	return r.Start.Add(r.Duration() / 2)
}

// Contains reports whether t lies in [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Split partitions the range into consecutive chunks of at most size.
// The last chunk is truncated to End.
func (r TimeRange) Split(size time.Duration) []TimeRange {
	if !r.Valid() {
		return nil
	}
	if size <= 0 || r.Duration() <= size {
		return []TimeRange{r}
	}

	var chunks []TimeRange
	for cur := r.Start; cur.Before(r.End); {
		next := cur.Add(size)
		if next.After(r.End) {
			next = r.End
		}
		if !next.After(cur) {
			break
		}
		chunks = append(chunks, TimeRange{Start: cur, End: next})
		cur = next
	}
	return chunks
}

// Overlaps checks if two ranges overlap or are adjacent.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return !r.Start.After(other.End) && !other.Start.After(r.End)
}

// Merge returns the smallest range covering both r and other.
func (r TimeRange) Merge(other TimeRange) TimeRange {
	out := r
	if other.Start.Before(out.Start) {
		out.Start = other.Start
	}
	if other.End.After(out.End) {
		out.End = other.End
	}
	return out
}

// String returns the range as an ISO-8601 interval "start/end".
func (r TimeRange) String() string {
	return r.Start.UTC().Format(time.RFC3339Nano) + "/" + r.End.UTC().Format(time.RFC3339Nano)
}

// ParseTimeRange parses the "start/end" format produced by String.
func ParseTimeRange(s string) (TimeRange, error) {
	startStr, endStr, ok := strings.Cut(s, "/")
	if !ok {
		return TimeRange{}, fmt.Errorf("invalid range format: %s", s)
	}
	start, err := time.Parse(time.RFC3339Nano, startStr)
	if err != nil {
		return TimeRange{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := time.Parse(time.RFC3339Nano, endStr)
	if err != nil {
		return TimeRange{}, fmt.Errorf("invalid end: %w", err)
	}
	return NewTimeRange(start, end)
}

// Chunk is one element of a coarse partition. Identity is Index.
type Chunk struct {
	Index int
	Range TimeRange
}
