// Package backend selects the store implementation named in configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/vietddude/slicks/internal/infra/store"
	"github.com/vietddude/slicks/internal/infra/store/flight"
	"github.com/vietddude/slicks/internal/infra/store/pgwire"
)

// NewFactory returns a factory that opens a fresh connection per call.
func NewFactory(cfg store.Config) (store.Factory, error) {
	switch cfg.Backend {
	case "", store.BackendFlight:
		return func(ctx context.Context) (store.Conn, error) {
			conn, err := flight.Dial(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}, nil
	case store.BackendPostgres:
		return func(ctx context.Context) (store.Conn, error) {
			conn, err := pgwire.Dial(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
