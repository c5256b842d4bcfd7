package pgpool

import "context"

// PooledConnection wraps a single physical driver connection, exclusively
// owned by whoever holds it (the pool, a waiter that was just handed off,
// or the caller between Acquire and Release).
//
// Identity is the id; Release routing happens through Pool methods that
// account for the connection by that id. The driver's error hook is a
// closure registered at connect time that forwards to Pool.onConnError.
type PooledConnection struct {
	id     uint64
	driver driverConn
	pool   *Pool

	idleTimer *timerHandle

	// released guards against double-Release: a second call is a no-op
	// plus an OnError event, not a panic.
	released bool
}

// ID returns the connection's opaque, lifetime-stable identifier.
func (c *PooledConnection) ID() uint64 { return c.id }

// Query executes sql with positional args on this connection. The caller
// must still call Release (or Discard) afterwards.
func (c *PooledConnection) Query(ctx context.Context, sql string, args []any) (*Result, error) {
	return c.driver.Query(ctx, sql, args)
}

// Release returns the connection to the pool: handed off to the oldest
// waiter, parked idle, or removed.
func (c *PooledConnection) Release() {
	c.pool.release(c, false)
}

// Discard releases the connection and forces its removal, e.g. after an
// error that leaves the session unusable.
func (c *PooledConnection) Discard() {
	c.pool.release(c, true)
}

// timerHandle adapts time.AfterFunc's *time.Timer so idle-timer ownership
// reads the same way across conn.go and pool.go.
type timerHandle struct {
	stop func() bool
}

func (t *timerHandle) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}
