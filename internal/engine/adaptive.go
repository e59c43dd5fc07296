package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/vietddude/slicks/internal/core/domain"
	"github.com/vietddude/slicks/internal/scanning/metrics"
)

// QueryFunc runs one query over a time range on a connection owned by the caller.
type QueryFunc[C any, T any] func(ctx context.Context, conn C, r domain.TimeRange) ([]T, error)

// FloorReason says why the splitter stopped narrowing a range.
type FloorReason string

const (
	FloorMinSpan    FloorReason = "min_span"
	FloorMaxDepth   FloorReason = "max_depth"
	FloorDegenerate FloorReason = "degenerate"
)

// FloorEvent is emitted every time a range reaches a floor.
type FloorEvent struct {
	Range    domain.TimeRange
	Depth    int
	Reason   FloorReason
	Fallback bool // false means the range's data was dropped
}

// Dropped reports whether the range contributed nothing because no fallback was set.
func (e FloorEvent) Dropped() bool {
	return !e.Fallback
}

// Splitter executes Primary over a range and halves the range on recoverable
// failures until it succeeds or reaches MinSpan or MaxDepth.
//
// Ranges that reach a floor are answered by Fallback, or dropped when no
// Fallback is set. Both outcomes are reported through OnFloor so callers can
// tell a partial result from a complete one.
type Splitter[C any, T any] struct {
	Name     string
	Primary  QueryFunc[C, T]
	Fallback QueryFunc[C, T]
	MinSpan  time.Duration // 0 disables the span floor
	MaxDepth int
	OnFloor  func(FloorEvent)
	Log      *slog.Logger
}

// Query runs the splitter from depth 0. It has the QueryFunc signature so a
// splitter can be handed directly to RunChunks.
func (s *Splitter[C, T]) Query(ctx context.Context, conn C, r domain.TimeRange) ([]T, error) {
	return s.query(ctx, conn, r, 0)
}

func (s *Splitter[C, T]) query(
	ctx context.Context,
	conn C,
	r domain.TimeRange,
	depth int,
) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.MinSpan > 0 && r.Duration() <= s.MinSpan {
		return s.floor(ctx, conn, r, depth, FloorMinSpan)
	}
	if depth > s.MaxDepth {
		return s.floor(ctx, conn, r, depth, FloorMaxDepth)
	}

	start := time.Now()
	rows, err := s.Primary(ctx, conn, r)
	metrics.QueryDuration.WithLabelValues(s.label()).Observe(time.Since(start).Seconds())
	if err == nil {
		return rows, nil
	}

	// A cancelled chunk is not a resource-limit signal.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if IsPermanent(err) {
		return nil, err
	}
	if Classify(err) == Permanent {
		metrics.PermanentFailuresTotal.WithLabelValues(s.label()).Inc()
		s.logger().Error("Permanent query failure", "range", r, "depth", depth, "error", err)
		return nil, &PermanentError{Err: err}
	}

	mid := r.Mid()
	if !mid.After(r.Start) || !mid.Before(r.End) {
		return s.floor(ctx, conn, r, depth, FloorDegenerate)
	}

	metrics.SplitsTotal.WithLabelValues(s.label()).Inc()
	s.logger().Debug("Splitting range after recoverable failure",
		"range", r, "depth", depth, "error", err)

	left, err := s.query(ctx, conn, domain.TimeRange{Start: r.Start, End: mid}, depth+1)
	if err != nil {
		return nil, err
	}
	right, err := s.query(ctx, conn, domain.TimeRange{Start: mid, End: r.End}, depth+1)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

func (s *Splitter[C, T]) floor(
	ctx context.Context,
	conn C,
	r domain.TimeRange,
	depth int,
	reason FloorReason,
) ([]T, error) {
	ev := FloorEvent{Range: r, Depth: depth, Reason: reason, Fallback: s.Fallback != nil}
	metrics.FloorHitsTotal.WithLabelValues(s.label(), string(reason), strconv.FormatBool(ev.Fallback)).Inc()

	if ev.Dropped() {
		metrics.IncompleteRangesTotal.WithLabelValues(s.label()).Inc()
		s.logger().Warn("Range dropped at split floor, result is incomplete",
			"range", r, "depth", depth, "reason", reason)
	}
	if s.OnFloor != nil {
		s.OnFloor(ev)
	}

	if s.Fallback == nil {
		return nil, nil
	}
	return s.Fallback(ctx, conn, r)
}

func (s *Splitter[C, T]) label() string {
	if s.Name == "" {
		return "default"
	}
	return s.Name
}

func (s *Splitter[C, T]) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default().With("component", "splitter", "workflow", s.label())
}
