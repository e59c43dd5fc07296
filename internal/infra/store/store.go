// Package store defines the connection contract for the remote time-series
// store and the factory that builds connections from configuration.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Conn is a single connection to the remote store. A Conn is used by one
// chunk at a time and closed when that chunk finishes.
type Conn interface {
	Query(ctx context.Context, sql string) (*Table, error)
	Close() error
}

// Factory opens a new connection.
type Factory func(ctx context.Context) (Conn, error)

// Table is a fully materialised query result.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns every value of the named column.
func (t *Table) Column(name string) ([]any, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q missing from result", name)
	}
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, nil
}

// QuoteTable quotes a schema-qualified table name: "schema"."table".
func QuoteTable(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}

// QuoteQualified quotes "schema.table" as "schema"."table" and a bare name as "name".
func QuoteQualified(name string) string {
	if schema, table, ok := strings.Cut(name, "."); ok {
		return QuoteTable(schema, table)
	}
	return quoteIdent(name)
}

// QuoteIdent quotes a single identifier.
func QuoteIdent(name string) string {
	return quoteIdent(name)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Timestamp formats t as an RFC 3339 UTC literal for use in SQL text.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
