// Package flight implements store.Conn for InfluxDB 3 over Arrow Flight.
package flight

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/vietddude/slicks/internal/infra/store"
)

// Conn is one Flight client bound to a database.
type Conn struct {
	client   flight.Client
	database string
	token    string
}

// ticket is the DoGet ticket understood by InfluxDB 3.
type ticket struct {
	Database  string `json:"database"`
	SQLQuery  string `json:"sql_query"`
	QueryType string `json:"query_type"`
}

// Dial opens a Flight client for cfg.
func Dial(ctx context.Context, cfg store.Config) (*Conn, error) {
	target, useTLS, err := parseTarget(cfg.URL)
	if err != nil {
		return nil, err
	}

	var opts []grpc.DialOption
	if useTLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	client, err := flight.NewClientWithMiddleware(target, nil, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial flight endpoint %s: %w", target, err)
	}

	return &Conn{
		client:   client,
		database: cfg.Database,
		token:    cfg.Token,
	}, nil
}

// Query runs sql and materialises every record batch into a store.Table.
func (c *Conn) Query(ctx context.Context, sql string) (*store.Table, error) {
	raw, err := encodeTicket(c.database, sql)
	if err != nil {
		return nil, err
	}

	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}

	stream, err := c.client.DoGet(ctx, &flight.Ticket{Ticket: raw})
	if err != nil {
		return nil, fmt.Errorf("flight do_get: %w", err)
	}

	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		// An empty stream carries no schema.
		if errors.Is(err, io.EOF) {
			return &store.Table{}, nil
		}
		return nil, fmt.Errorf("flight read schema: %w", err)
	}
	defer rdr.Release()

	tbl := &store.Table{}
	for _, f := range rdr.Schema().Fields() {
		tbl.Columns = append(tbl.Columns, f.Name)
	}

	for rdr.Next() {
		appendRecord(tbl, rdr.Record())
	}
	if err := rdr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("flight read records: %w", err)
	}
	return tbl, nil
}

// Close releases the underlying gRPC connection.
func (c *Conn) Close() error {
	return c.client.Close()
}

func appendRecord(tbl *store.Table, rec arrow.Record) {
	cols := int(rec.NumCols())
	for i := 0; i < int(rec.NumRows()); i++ {
		row := make([]any, cols)
		for j := 0; j < cols; j++ {
			row[j] = Value(rec.Column(j), i)
		}
		tbl.Rows = append(tbl.Rows, row)
	}
}

func encodeTicket(database, sql string) ([]byte, error) {
	raw, err := json.Marshal(ticket{Database: database, SQLQuery: sql, QueryType: "sql"})
	if err != nil {
		return nil, fmt.Errorf("encode ticket: %w", err)
	}
	return raw, nil
}

// parseTarget turns a store URL into a gRPC target and a TLS flag.
// https defaults to port 443, http to 80; a bare host:port is plaintext.
func parseTarget(raw string) (string, bool, error) {
	if raw == "" {
		return "", false, errors.New("store url is empty")
	}
	if !strings.Contains(raw, "://") {
		return raw, false, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid store url %q: %w", raw, err)
	}

	useTLS := u.Scheme == "https" || u.Scheme == "grpc+tls"
	host := u.Host
	if host == "" {
		return "", false, fmt.Errorf("invalid store url %q: missing host", raw)
	}
	if u.Port() == "" {
		port := "80"
		if useTLS {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}
	return host, useTLS, nil
}
