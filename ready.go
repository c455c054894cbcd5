package pgfixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sethvargo/go-retry"
)

const (
	// MaxAttempts is the number of connection attempts WaitReady makes before giving up.
	MaxAttempts = 50
	// RetryInterval is the pause between two connection attempts.
	RetryInterval = 50 * time.Millisecond
	// AttemptTimeout bounds a single connection attempt. An attempt that runs out of time is not
	// retried.
	AttemptTimeout = 2 * time.Second
)

// ErrNotReady is returned by WaitReady when the database did not accept a connection within
// MaxAttempts attempts, or when an attempt got no answer within AttemptTimeout.
var ErrNotReady = errors.New("could not connect to postgres")

// ProbeFunc attempts a single connection to url. The connection, if any, is not kept.
type ProbeFunc func(ctx context.Context, url string) error

// Probe opens a connection to url with pgx and closes it straight away.
func Probe(ctx context.Context, url string) error {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// connectionRefusedErrnos are the socket errors seen while the container port is published but
// the server behind it is not accepting connections yet.
var connectionRefusedErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.EPIPE,
}

// IsConnectionRefused reports whether err means the server is not accepting connections yet.
// These are the only errors WaitReady retries.
func IsConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	for _, errno := range connectionRefusedErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	// The Docker port proxy accepts the socket before the server listens and closes it once the
	// forward fails, so the startup handshake reads EOF.
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// WaitReady blocks until a connection to url succeeds.
//
// Connection-refused errors (see IsConnectionRefused) are retried every RetryInterval, for at most
// MaxAttempts attempts, after which an error wrapping ErrNotReady is returned. Each attempt gets
// AttemptTimeout; an endpoint that accepts the socket but never answers fails with an error
// wrapping both ErrNotReady and context.DeadlineExceeded, without further attempts. Any other
// error, such as an authentication failure or a malformed url, is returned after the first
// attempt.
func WaitReady(ctx context.Context, url string, opts ...Option) error {
	o, err := newOptions(opts)
	if err != nil {
		return err
	}
	return waitReady(ctx, url, o)
}

func waitReady(ctx context.Context, url string, o *options) error {
	if o.attempts < 1 {
		return fmt.Errorf("attempts must be positive: %d", o.attempts)
	}
	if o.attemptTimeout <= 0 {
		return fmt.Errorf("attempt timeout must be positive: %s", o.attemptTimeout)
	}
	var (
		attempt  int
		lastErr  error
		timedOut bool
	)
	backoff := retry.WithMaxRetries(uint64(o.attempts-1), retry.NewConstant(o.interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
		lastErr = o.probe(attemptCtx, url)
		timedOut = lastErr != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()
		if lastErr == nil {
			return nil
		}
		if timedOut {
			o.logger.Debug("postgres did not answer in time",
				slog.Int("attempt", attempt),
				slog.Duration("timeout", o.attemptTimeout),
				slog.Any("error", lastErr),
			)
			return lastErr
		}
		if IsConnectionRefused(lastErr) {
			o.logger.Debug("postgres not accepting connections",
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr),
			)
			return retry.RetryableError(lastErr)
		}
		return lastErr
	})
	switch {
	case err == nil:
		o.logger.Info("postgres ready", slog.Int("attempts", attempt))
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("wait for postgres: %w", ctx.Err())
	case timedOut:
		return fmt.Errorf("%w: attempt %d got no answer within %s: %w",
			ErrNotReady, attempt, o.attemptTimeout, context.DeadlineExceeded)
	case IsConnectionRefused(lastErr):
		return fmt.Errorf("%w after %d attempts: %w", ErrNotReady, attempt, lastErr)
	default:
		return fmt.Errorf("probe postgres: %w", err)
	}
}
