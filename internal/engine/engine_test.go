package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/slicks/internal/core/domain"
)

// fakeConn counts how many times it was closed.
type fakeConn struct {
	id     int
	closed atomic.Int32
}

func (c *fakeConn) Close() error {
	c.closed.Add(1)
	return nil
}

// connTracker is a connection factory that remembers every connection it made.
type connTracker struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (t *connTracker) open(ctx context.Context) (*fakeConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := &fakeConn{id: len(t.conns)}
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *connTracker) created() []*fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*fakeConn, len(t.conns))
	copy(out, t.conns)
	return out
}

var base = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func span(d time.Duration) domain.TimeRange {
	return domain.TimeRange{Start: base, End: base.Add(d)}
}
