// Package storetest provides an in-memory store.Conn for workflow tests.
package storetest

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/vietddude/slicks/internal/core/domain"
	"github.com/vietddude/slicks/internal/infra/store"
)

// Handler answers one SQL statement.
type Handler func(sql string, r domain.TimeRange) (*store.Table, error)

// Store hands out connections that route every query to a Handler and
// records what was asked.
type Store struct {
	Handle Handler

	mu      sync.Mutex
	queries []string
	opened  int
	closed  int
	openErr error
}

// New returns a Store backed by h.
func New(h Handler) *Store {
	return &Store{Handle: h}
}

// FailOpen makes every subsequent Open return err.
func (s *Store) FailOpen(err error) {
	s.mu.Lock()
	s.openErr = err
	s.mu.Unlock()
}

// Open implements store.Factory.
func (s *Store) Open(ctx context.Context) (store.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened++
	return &conn{s: s}, nil
}

// Queries returns every statement executed so far.
func (s *Store) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

// Balanced reports whether every opened connection was closed.
func (s *Store) Balanced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened == s.closed
}

type conn struct {
	s *Store
}

func (c *conn) Query(ctx context.Context, sql string) (*store.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.s.mu.Lock()
	c.s.queries = append(c.s.queries, sql)
	c.s.mu.Unlock()
	return c.s.Handle(sql, RangeOf(sql))
}

func (c *conn) Close() error {
	c.s.mu.Lock()
	c.s.closed++
	c.s.mu.Unlock()
	return nil
}

var bounds = regexp.MustCompile(`time >= (?:TIMESTAMP )?'([^']+)' AND time < (?:TIMESTAMP )?'([^']+)'`)

// RangeOf extracts the half-open time filter from a generated statement.
// It returns the zero range when the statement carries none.
func RangeOf(sql string) domain.TimeRange {
	m := bounds.FindStringSubmatch(sql)
	if m == nil {
		return domain.TimeRange{}
	}
	start, err1 := time.Parse(time.RFC3339Nano, m[1])
	end, err2 := time.Parse(time.RFC3339Nano, m[2])
	if err1 != nil || err2 != nil {
		return domain.TimeRange{}
	}
	return domain.TimeRange{Start: start.UTC(), End: end.UTC()}
}

// Rows builds a single-column table.
func Rows(column string, values ...any) *store.Table {
	t := &store.Table{Columns: []string{column}}
	for _, v := range values {
		t.Rows = append(t.Rows, []any{v})
	}
	return t
}
