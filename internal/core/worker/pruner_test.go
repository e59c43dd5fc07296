package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRuns struct {
	calls  []time.Time
	err    error
	result int64
}

func (f *fakeRuns) DeleteRunsOlderThan(_ context.Context, before time.Time) (int64, error) {
	f.calls = append(f.calls, before)
	return f.result, f.err
}

func TestPruner_Interval(t *testing.T) {
	tests := []struct {
		retention time.Duration
		want      time.Duration
	}{
		{30 * 24 * time.Hour, time.Hour},
		{5 * time.Hour, 30 * time.Minute},
		{time.Minute, time.Minute},
	}
	for _, tt := range tests {
		p := NewPruner(tt.retention, &fakeRuns{})
		if got := p.Interval(); got != tt.want {
			t.Errorf("Interval(%v) = %v, want %v", tt.retention, got, tt.want)
		}
	}
}

func TestPruner_PruneUsesRetentionCutoff(t *testing.T) {
	runs := &fakeRuns{result: 3}
	p := NewPruner(48*time.Hour, runs)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.Prune(context.Background())

	if len(runs.calls) != 1 {
		t.Fatalf("expected 1 delete call, got %d", len(runs.calls))
	}
	want := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
	if !runs.calls[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", runs.calls[0], want)
	}
}

func TestPruner_ErrorDoesNotPanic(t *testing.T) {
	runs := &fakeRuns{err: errors.New("connection reset")}
	NewPruner(time.Hour, runs).Prune(context.Background())
	if len(runs.calls) != 1 {
		t.Fatalf("expected 1 delete call, got %d", len(runs.calls))
	}
}

func TestPruner_DisabledRetention(t *testing.T) {
	runs := &fakeRuns{}
	p := NewPruner(0, runs)
	p.Prune(context.Background())

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return immediately when retention is disabled")
	}
	if len(runs.calls) != 0 {
		t.Errorf("expected no delete calls, got %d", len(runs.calls))
	}
}

func TestPruner_StartPrunesImmediately(t *testing.T) {
	runs := &fakeRuns{}
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPruner(24*time.Hour, runs)

	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not stop after cancel")
	}
	if len(runs.calls) != 1 {
		t.Fatalf("expected initial prune, got %d calls", len(runs.calls))
	}
}
