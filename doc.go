// Package pgpool implements a connection pool for a PostgreSQL
// wire-protocol client. It multiplexes logical query requests onto a
// bounded set of physical connections with fair FIFO waiter queueing,
// idle-connection reaping, bounded connect/wait timeouts, and
// cluster-failover-aware retry policies (database startup, read-only
// transaction after failover, dropped connection).
//
// Invariants:
//
//   - I1: |totalIDs| never exceeds Options.PoolSize.
//   - I2: a PooledConnection is in at most one of {idle, held-by-caller,
//     being-connected, being-removed} at a time.
//   - I3: a waiter is resolved exactly once, by handoff or timeout.
//   - I4: the pool's mutex is never held across driver I/O, retry sleeps,
//     or event callbacks.
//
// The wire protocol, TLS, and positional ($N) parameter binding are
// delegated to github.com/jackc/pgx/v5 (driver.go); this package only
// rewrites @name parameters to positional form before calling it.
package pgpool
