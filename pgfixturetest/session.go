// Package pgfixturetest wires pgfixture into Go tests: one postgres container per test binary,
// and one pool per test.
//
//	var session *pgfixturetest.Session
//
//	func TestMain(m *testing.M) {
//		os.Exit(pgfixturetest.RunMain(m, func(s *pgfixturetest.Session) { session = s }))
//	}
//
//	func TestQuery(t *testing.T) {
//		pool := session.Pool(t)
//		// ...
//	}
package pgfixturetest

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/pgfixture"
	"github.com/stretchr/testify/require"
)

const (
	// SessionHost is the address the session container is published on.
	SessionHost = "127.0.0.1"
	// SessionUser is the database user of the session container.
	SessionUser = "user"
	// SessionDatabase is the database created in the session container.
	SessionDatabase = "demo"
)

// NewSessionConfig returns the configuration for a test session: SessionHost, a free port,
// SessionUser, a random password and SessionDatabase.
func NewSessionConfig() (pgfixture.Config, error) {
	port, err := pgfixture.FreePort(SessionHost)
	if err != nil {
		return pgfixture.Config{}, err
	}
	password, err := pgfixture.RandomPassword()
	if err != nil {
		return pgfixture.Config{}, err
	}
	return pgfixture.NewConfig(SessionHost, port, SessionUser, password, SessionDatabase), nil
}

// Session is a postgres container shared by all tests of one test binary.
type Session struct {
	container *pgfixture.Container
	opts      []pgfixture.Option
}

// StartSession starts the session container with a fresh NewSessionConfig. The options are also
// used by Session.Pool.
func StartSession(ctx context.Context, opts ...pgfixture.Option) (*Session, error) {
	cfg, err := NewSessionConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := pgfixture.StartContainer(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Session{container: c, opts: opts}, nil
}

// Config returns the session configuration.
func (s *Session) Config() pgfixture.Config { return s.container.Config }

// URL returns the session connection URL.
func (s *Session) URL() string { return s.container.URL() }

// Close removes the session container.
func (s *Session) Close(ctx context.Context) error {
	return s.container.Close(ctx)
}

// Pool returns a pool connected to the session database. The first call in a session also
// waits for the server to accept connections. The pool is closed when t finishes.
func (s *Session) Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	ctx := t.Context()
	require.NoError(t, ctx.Err(), "test context must be live")

	pool, err := pgfixture.OpenPool(ctx, s.URL(), s.opts...)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// Runner is implemented by *testing.M.
type Runner interface {
	Run() int
}

// RunMain starts a session, hands it to setup, runs the tests and removes the container. It
// returns the exit code for os.Exit. Session failures are reported on stderr and yield exit code 1.
func RunMain(m Runner, setup func(*Session), opts ...pgfixture.Option) (code int) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	opts = append([]pgfixture.Option{pgfixture.WithLogger(logger)}, opts...)

	ctx := context.Background()
	s, err := StartSession(ctx, opts...)
	if err != nil {
		logger.Error("start postgres session", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := s.Close(ctx); err != nil {
			logger.Error("close postgres session", slog.Any("error", err))
			if code == 0 {
				code = 1
			}
		}
	}()
	if setup != nil {
		setup(s)
	}
	return m.Run()
}
