// Package pgfixture runs a disposable PostgreSQL server in a Docker container for a test suite.
//
// The pieces nest strictly, so teardown always happens in reverse order:
//
//	cfg := pgfixture.NewConfig("127.0.0.1", port, "user", password, "demo")
//	err := pgfixture.UpContainer(ctx, cfg, func(ctx context.Context) error {
//		return pgfixture.UpPool(ctx, cfg.URL(), func(ctx context.Context, pool *pgxpool.Pool) error {
//			// run tests against pool
//			return nil
//		})
//	})
//
// [Up] does the same in one call. [StartContainer] and [OpenPool] are the non-scoped forms for
// callers that manage teardown themselves, for example with testing.T.Cleanup; the pgfixturetest
// package builds on them.
//
// [WaitReady] polls the server with a fixed budget of [MaxAttempts] attempts, [RetryInterval]
// apart, and only retries errors for which [IsConnectionRefused] is true.
package pgfixture
