package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/slicks/internal/core/domain"
	"github.com/vietddude/slicks/internal/scanning/metrics"
)

// ChunkState is the lifecycle state of one chunk.
type ChunkState string

const (
	ChunkPending   ChunkState = "pending"
	ChunkRunning   ChunkState = "running"
	ChunkCompleted ChunkState = "completed"
	ChunkFailed    ChunkState = "failed"
	ChunkCancelled ChunkState = "cancelled"
)

// ExecOptions configures RunChunks.
type ExecOptions struct {
	Name        string    // metrics and log label
	MaxWorkers  int       // chunks running at once (min 1)
	OnChunkDone func(int) // called once per completed chunk, from any worker
}

// RunChunks applies fn to every range on a bounded pool of workers.
//
// Each chunk opens its own connection with newConn and closes it before its
// worker exits. Results are concatenated in range order, not completion order.
// The first *PermanentError cancels every chunk that has not started and is
// returned unchanged. Any other chunk error is reported as ErrContractViolation.
func RunChunks[C io.Closer, T any](
	ctx context.Context,
	newConn func(context.Context) (C, error),
	ranges []domain.TimeRange,
	fn QueryFunc[C, T],
	opts ExecOptions,
) ([]T, error) {
	if len(ranges) == 0 {
		return []T{}, nil
	}

	name := opts.Name
	if name == "" {
		name = "default"
	}
	workers := opts.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	log := slog.Default().With("component", "executor", "workflow", name)

	var (
		mu      sync.Mutex
		results = make(map[int][]T, len(ranges))
		states  = make([]ChunkState, len(ranges))
	)
	for i := range states {
		states[i] = ChunkPending
	}
	setState := func(idx int, st ChunkState) {
		mu.Lock()
		states[idx] = st
		mu.Unlock()
		if st != ChunkRunning {
			metrics.ChunksTotal.WithLabelValues(name, string(st)).Inc()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, r := range ranges {
		if gctx.Err() != nil {
			setState(i, ChunkCancelled)
			continue
		}
		chunk := domain.Chunk{Index: i, Range: r}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				setState(chunk.Index, ChunkCancelled)
				return err
			}
			setState(chunk.Index, ChunkRunning)

			rows, err := runChunk(gctx, newConn, chunk, fn, log)
			if err != nil {
				if gctx.Err() != nil && !IsPermanent(err) {
					setState(chunk.Index, ChunkCancelled)
				} else {
					setState(chunk.Index, ChunkFailed)
				}
				return err
			}

			mu.Lock()
			results[chunk.Index] = rows
			mu.Unlock()
			setState(chunk.Index, ChunkCompleted)

			if opts.OnChunkDone != nil {
				opts.OnChunkDone(chunk.Index)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Debug("Chunk run aborted", "chunks", len(ranges), "states", summarize(states), "error", err)
		return nil, err
	}

	ordered := make([]T, 0)
	for i := range ranges {
		ordered = append(ordered, results[i]...)
	}
	log.Debug("Chunk run completed", "chunks", len(ranges), "results", len(ordered))
	return ordered, nil
}

// runChunk owns one connection for the lifetime of one chunk.
func runChunk[C io.Closer, T any](
	ctx context.Context,
	newConn func(context.Context) (C, error),
	chunk domain.Chunk,
	fn QueryFunc[C, T],
	log *slog.Logger,
) ([]T, error) {
	conn, err := newConn(ctx)
	if err != nil {
		if Classify(err) == Permanent {
			return nil, &PermanentError{Err: err}
		}
		return nil, fmt.Errorf("failed to open connection for chunk %d: %w", chunk.Index, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn("Failed to close connection", "chunk", chunk.Index, "error", cerr)
		}
	}()

	log.Debug("Running chunk", "chunk", chunk.Index, "range", chunk.Range)
	rows, err := fn(ctx, conn, chunk.Range)
	switch {
	case err == nil:
		return rows, nil
	case IsPermanent(err):
		return nil, err
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: chunk %d: %w", ErrContractViolation, chunk.Index, err)
	}
}

func summarize(states []ChunkState) map[ChunkState]int {
	counts := make(map[ChunkState]int)
	for _, st := range states {
		counts[st]++
	}
	return counts
}
