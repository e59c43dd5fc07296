package domain

import (
	"errors"
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestTimeRange_Split(t *testing.T) {
	r := TimeRange{Start: day(1), End: day(11)}
	chunks := r.Split(7 * 24 * time.Hour)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !chunks[0].Start.Equal(day(1)) || !chunks[0].End.Equal(day(8)) {
		t.Errorf("unexpected first chunk %s", chunks[0])
	}
	if !chunks[1].Start.Equal(day(8)) || !chunks[1].End.Equal(day(11)) {
		t.Errorf("unexpected last chunk %s", chunks[1])
	}
}

func TestTimeRange_SplitSmallerThanSize(t *testing.T) {
	r := TimeRange{Start: day(1), End: day(2)}
	chunks := r.Split(31 * 24 * time.Hour)
	if len(chunks) != 1 || chunks[0] != r {
		t.Fatalf("expected the range itself, got %v", chunks)
	}
}

func TestTimeRange_SplitInvalid(t *testing.T) {
	r := TimeRange{Start: day(2), End: day(1)}
	if chunks := r.Split(time.Hour); chunks != nil {
		t.Fatalf("expected no chunks for invalid range, got %v", chunks)
	}
}

func TestNewTimeRange_Invalid(t *testing.T) {
	_, err := NewTimeRange(day(3), day(3))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestTimeRange_RoundTrip(t *testing.T) {
	r := TimeRange{Start: day(1).Add(90 * time.Minute), End: day(2)}
	parsed, err := ParseTimeRange(r.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !parsed.Start.Equal(r.Start) || !parsed.End.Equal(r.End) {
		t.Errorf("round trip mismatch: %s != %s", parsed, r)
	}
}

func TestTimeRange_MergeAdjacent(t *testing.T) {
	a := TimeRange{Start: day(1), End: day(2)}
	b := TimeRange{Start: day(2), End: day(4)}
	if !a.Overlaps(b) {
		t.Fatal("adjacent ranges should overlap")
	}
	m := a.Merge(b)
	if !m.Start.Equal(day(1)) || !m.End.Equal(day(4)) {
		t.Errorf("unexpected merge %s", m)
	}
	if a.Overlaps(TimeRange{Start: day(3), End: day(4)}) {
		t.Error("disjoint ranges should not overlap")
	}
}
