package pgfixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenPool waits for url to accept connections, then returns a pool bound to it. The pool is
// never created before WaitReady succeeds. The caller must close it.
func OpenPool(ctx context.Context, url string, opts ...Option) (*pgxpool.Pool, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return openPool(ctx, url, o)
}

func openPool(ctx context.Context, url string, o *options) (*pgxpool.Pool, error) {
	if err := waitReady(ctx, url, o); err != nil {
		return nil, err
	}
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	for _, fn := range o.poolConfig {
		fn(poolConfig)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	o.logger.Info("postgres pool opened", slog.Int("max_conns", int(poolConfig.MaxConns)))
	return pool, nil
}

// UpPool opens a pool with OpenPool, runs fn with it and closes the pool when fn returns, fails
// or panics.
func UpPool(ctx context.Context, url string, fn func(ctx context.Context, pool *pgxpool.Pool) error, opts ...Option) error {
	if fn == nil {
		return errors.New("fn must not be nil")
	}
	o, err := newOptions(opts)
	if err != nil {
		return err
	}
	return upPool(ctx, url, fn, o)
}

func upPool(ctx context.Context, url string, fn func(context.Context, *pgxpool.Pool) error, o *options) error {
	pool, err := openPool(ctx, url, o)
	if err != nil {
		return err
	}
	defer func() {
		pool.Close()
		o.logger.Info("postgres pool closed")
	}()
	return fn(ctx, pool)
}

// Up runs the whole session sequence: start a container for cfg, wait until it accepts
// connections, open a pool, run fn, then close the pool and remove the container. Teardown runs
// in reverse order on every exit path.
func Up(ctx context.Context, cfg Config, fn func(ctx context.Context, pool *pgxpool.Pool) error, opts ...Option) error {
	if fn == nil {
		return errors.New("fn must not be nil")
	}
	o, err := newOptions(opts)
	if err != nil {
		return err
	}
	return upContainer(ctx, cfg, func(ctx context.Context) error {
		return upPool(ctx, cfg.URL(), fn, o)
	}, o)
}
