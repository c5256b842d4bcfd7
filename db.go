package pgpool

import "context"

// DB is the narrow contract application code should depend on instead of
// the concrete *Pool, so it stays testable against MockDriver-backed pools
// without depending on pool operational internals.
type DB interface {
	// Query executes sql, retrying per the configured reconnect policies.
	Query(ctx context.Context, sql string, values any) (*Result, error)

	// Acquire returns an exclusively-owned connection for a caller that
	// needs more than one statement on the same session (see WithTx).
	Acquire(ctx context.Context) (*PooledConnection, error)

	// End closes the pool. Call once during graceful shutdown.
	End(ctx context.Context)
}

var _ DB = (*Pool)(nil)
