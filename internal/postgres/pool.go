// Package postgres builds the pgx connection pool used by the durable case
// store, with otelpgx spans, per-query logging and a query duration observer.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Options tunes query logging on the pool.
type Options struct {
	// MinLogDuration suppresses log lines for successful queries faster than
	// this. Zero logs every query.
	MinLogDuration time.Duration

	// LogArgs includes bind arguments in query logs. Off by default since
	// case documents hold patient data.
	LogArgs bool

	// Observer, when set, is called with the duration of every query.
	Observer QueryObserver
}

// NewPool parses databaseURL, installs the tracing and logging tracer and
// verifies connectivity.
func NewPool(ctx context.Context, databaseURL string, opts ...Options) (*pgxpool.Pool, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.Tracer = newQueryTracer(otelpgx.NewTracer(), o)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}
