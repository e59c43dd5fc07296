package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/slicks/internal/core/domain"
)

func dayRanges(days ...int) []domain.TimeRange {
	out := make([]domain.TimeRange, 0, len(days))
	for _, d := range days {
		start := time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
		out = append(out, domain.TimeRange{Start: start, End: start.Add(24 * time.Hour)})
	}
	return out
}

func TestRunChunks_PreservesChunkOrder(t *testing.T) {
	tracker := &connTracker{}
	fn := func(ctx context.Context, c *fakeConn, r domain.TimeRange) ([]int, error) {
		// Earlier days finish last.
		time.Sleep(time.Duration(5-r.Start.Day()) * 10 * time.Millisecond)
		return []int{r.Start.Day()}, nil
	}

	got, err := RunChunks(context.Background(), tracker.open, dayRanges(1, 2, 3, 4), fn,
		ExecOptions{MaxWorkers: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRunChunks_PermanentErrorIsReturnedUnchanged(t *testing.T) {
	tracker := &connTracker{}
	pe := &PermanentError{Err: errors.New("database not found")}
	fn := func(ctx context.Context, c *fakeConn, r domain.TimeRange) ([]int, error) {
		return nil, pe
	}

	_, err := RunChunks(context.Background(), tracker.open, dayRanges(1), fn, ExecOptions{MaxWorkers: 4})
	if err != pe {
		t.Fatalf("expected the chunk's PermanentError, got %T %v", err, err)
	}
}

func TestRunChunks_EmptyInput(t *testing.T) {
	tracker := &connTracker{}
	fn := func(ctx context.Context, c *fakeConn, r domain.TimeRange) ([]int, error) {
		t.Fatal("query must not run for empty input")
		return nil, nil
	}

	got, err := RunChunks(context.Background(), tracker.open, nil, fn, ExecOptions{MaxWorkers: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
	if n := len(tracker.created()); n != 0 {
		t.Errorf("expected zero connections, got %d", n)
	}
}

func TestRunChunks_OnChunkDoneOncePerChunk(t *testing.T) {
	tracker := &connTracker{}
	var (
		mu   sync.Mutex
		seen = make(map[int]int)
	)
	fn := func(ctx context.Context, c *fakeConn, r domain.TimeRange) ([]int, error) {
		return []int{r.Start.Day()}, nil
	}

	ranges := dayRanges(1, 2, 3, 4, 5, 6)
	_, err := RunChunks(context.Background(), tracker.open, ranges, fn, ExecOptions{
		MaxWorkers: 1,
		OnChunkDone: func(idx int) {
			mu.Lock()
			seen[idx]++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != len(ranges) {
		t.Fatalf("expected %d indices, got %v", len(ranges), seen)
	}
	for idx := range ranges {
		if seen[idx] != 1 {
			t.Errorf("chunk %d reported %d times", idx, seen[idx])
		}
	}
}

func TestRunChunks_ConnectionsClosedOnPermanentFailure(t *testing.T) {
	tracker := &connTracker{}
	fn := func(ctx context.Context, c *fakeConn, r domain.TimeRange) ([]int, error) {
		if r.Start.Day() == 3 {
			return nil, &PermanentError{Err: errors.New("permission denied")}
		}
		time.Sleep(5 * time.Millisecond)
		return []int{r.Start.Day()}, nil
	}

	_, err := RunChunks(context.Background(), tracker.open, dayRanges(1, 2, 3, 4, 5, 6, 7, 8), fn,
		ExecOptions{MaxWorkers: 2})
	if !IsPermanent(err) {
		t.Fatalf("expected PermanentError, got %v", err)
	}

	conns := tracker.created()
	if len(conns) == 0 {
		t.Fatal("expected at least one connection")
	}
	for _, c := range conns {
		if n := c.closed.Load(); n != 1 {
			t.Errorf("connection %d closed %d times", c.id, n)
		}
	}
}

func TestRunChunks_PermanentFailureCancelsPendingChunks(t *testing.T) {
	tracker := &connTracker{}
	var mu sync.Mutex
	var calls []int
	fn := func(ctx context.Context, c *fakeConn, r domain.TimeRange) ([]int, error) {
		mu.Lock()
		calls = append(calls, r.Start.Day())
		mu.Unlock()
		return nil, &PermanentError{Err: errors.New("unauthorized")}
	}

	_, err := RunChunks(context.Background(), tracker.open, dayRanges(1, 2, 3, 4), fn, ExecOptions{MaxWorkers: 1})
	if !IsPermanent(err) {
		t.Fatalf("expected PermanentError, got %v", err)
	}
	if len(calls) != 1 || calls[0] != 1 {
		t.Fatalf("expected only the first chunk to run, got %v", calls)
	}
	if n := len(tracker.created()); n != 1 {
		t.Fatalf("expected 1 connection, got %d", n)
	}
}

func TestRunChunks_RecoverableLeakIsContractViolation(t *testing.T) {
	tracker := &connTracker{}
	fn := func(ctx context.Context, c *fakeConn, r domain.TimeRange) ([]int, error) {
		return nil, errors.New("timeout")
	}

	_, err := RunChunks(context.Background(), tracker.open, dayRanges(1, 2), fn, ExecOptions{MaxWorkers: 1})
	if !errors.Is(err, ErrContractViolation) {
		t.Fatalf("expected ErrContractViolation, got %v", err)
	}
	if IsPermanent(err) {
		t.Error("contract violation must not look permanent")
	}
}

func TestRunChunks_FactoryPermanentFailure(t *testing.T) {
	open := func(ctx context.Context) (*fakeConn, error) {
		return nil, errors.New("401 unauthorized")
	}
	fn := func(ctx context.Context, c *fakeConn, r domain.TimeRange) ([]int, error) {
		t.Fatal("query must not run without a connection")
		return nil, nil
	}

	_, err := RunChunks(context.Background(), open, dayRanges(1, 2), fn, ExecOptions{MaxWorkers: 2})
	if !IsPermanent(err) {
		t.Fatalf("expected PermanentError, got %v", err)
	}
}

func TestRunChunks_WithSplitter(t *testing.T) {
	tracker := &connTracker{}
	s := &Splitter[*fakeConn, int]{
		Name: "test",
		Primary: func(ctx context.Context, c *fakeConn, r domain.TimeRange) ([]int, error) {
			if r.Duration() > 6*time.Hour {
				return nil, errors.New("query timed out")
			}
			return []int{r.Start.Day()*100 + r.Start.Hour()}, nil
		},
		MaxDepth: 4,
	}

	got, err := RunChunks(context.Background(), tracker.open, dayRanges(1, 2), s.Query,
		ExecOptions{Name: "test", MaxWorkers: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{100, 106, 112, 118, 200, 206, 212, 218}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
