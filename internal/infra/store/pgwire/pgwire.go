// Package pgwire implements store.Conn for stores that speak the Postgres
// wire protocol (Postgres, TimescaleDB and compatible engines).
package pgwire

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vietddude/slicks/internal/infra/store"
)

const closeTimeout = 5 * time.Second

// Conn wraps a single pgx connection.
type Conn struct {
	conn *pgx.Conn
}

// Dial opens one connection. cfg.URL is a Postgres DSN; cfg.Token, when set,
// is used as the password.
func Dial(ctx context.Context, cfg store.Config) (*Conn, error) {
	pcfg, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	if cfg.Token != "" {
		pcfg.Password = cfg.Token
	}
	if cfg.Database != "" && pcfg.Database == "" {
		pcfg.Database = cfg.Database
	}
	if cfg.DialTimeout > 0 {
		pcfg.ConnectTimeout = cfg.DialTimeout
	}

	conn, err := pgx.ConnectConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// Query runs sql with the simple protocol and materialises the result.
func (c *Conn) Query(ctx context.Context, sql string) (*store.Table, error) {
	rows, err := c.conn.Query(ctx, sql, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	tbl := &store.Table{}
	for _, fd := range rows.FieldDescriptions() {
		tbl.Columns = append(tbl.Columns, fd.Name)
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if ts, ok := v.(time.Time); ok {
				values[i] = ts.UTC()
			}
		}
		tbl.Rows = append(tbl.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return tbl, nil
}

// Close closes the connection, bounded by a short timeout.
func (c *Conn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return c.conn.Close(ctx)
}
