package pgpool

import (
	"context"
	"sync"
	"time"
)

// Pool is the connection pool described by this package. The zero value
// is not usable; construct with New.
type Pool struct {
	opts Options
	dial DialFunc

	mu           sync.Mutex
	nextID       uint64
	nextWaiterID uint64
	totalIDs     map[uint64]struct{}
	idle         []*PooledConnection
	queue        waiterQueue
	ending       bool
}

// New constructs a Pool. ConnectionString is required unless opts.Dial is
// set (tests typically set Dial to inject a mock driver).
func New(opts Options) *Pool {
	opts = opts.withDefaults()

	dial := opts.Dial
	if dial == nil {
		dial = newPgxDriverConn
	}

	return &Pool{
		opts:     opts,
		dial:     dial,
		totalIDs: make(map[uint64]struct{}),
	}
}

// WaitingCount returns the number of queued acquire requests.
func (p *Pool) WaitingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// IdleCount returns the number of idle connections.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// TotalCount returns the number of connections counted against PoolSize
// (connecting, in-use, and idle).
func (p *Pool) TotalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.totalIDs)
}

// Acquire returns an exclusively-owned PooledConnection. The
// returned connection must eventually be released via Release or Discard.
func (p *Pool) Acquire(ctx context.Context) (*PooledConnection, error) {
	p.mu.Lock()
	if p.ending {
		p.mu.Unlock()
		return nil, errPoolEnded
	}

	if len(p.idle) > 0 {
		conn := p.idle[0]
		p.idle = p.idle[1:]
		conn.idleTimer.Stop()
		conn.idleTimer = nil
		conn.released = false
		p.mu.Unlock()
		p.emitIdleConnectionActivated()
		return conn, nil
	}

	if len(p.totalIDs) < p.opts.PoolSize {
		id := p.nextID
		p.nextID++
		p.totalIDs[id] = struct{}{}
		p.mu.Unlock()

		conn, err := p.newConnection(ctx, id)
		if err != nil {
			p.mu.Lock()
			delete(p.totalIDs, id)
			p.mu.Unlock()
			return nil, err
		}
		return conn, nil
	}

	waiterID := p.nextWaiterID
	p.nextWaiterID++
	w := newWaiter(waiterID)
	p.queue.push(w)
	p.mu.Unlock()

	p.emitConnectionRequestQueued()

	deadline := time.NewTimer(p.opts.WaitForAvailableConnectionTimeout)
	defer deadline.Stop()

	select {
	case res := <-w.resultCh:
		if res.err != nil {
			return nil, res.err
		}
		p.emitConnectionRequestDequeued()
		return res.conn, nil

	case <-deadline.C:
		if !w.settle(waiterResult{}) {
			// A handoff won the race after the timer fired but before we
			// observed it; take that result instead of timing out.
			res := <-w.resultCh
			if res.err != nil {
				return nil, res.err
			}
			p.emitConnectionRequestDequeued()
			return res.conn, nil
		}
		p.mu.Lock()
		p.queue.removeByID(waiterID)
		p.mu.Unlock()
		waitedMs := p.opts.WaitForAvailableConnectionTimeout.Milliseconds()
		return nil, newConnectionTimeoutError(waitedMs)

	case <-ctx.Done():
		if !w.settle(waiterResult{}) {
			res := <-w.resultCh
			if res.err != nil {
				return nil, res.err
			}
			p.emitConnectionRequestDequeued()
			return res.conn, nil
		}
		p.mu.Lock()
		p.queue.removeByID(waiterID)
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// release routes a returned connection back into the pool.
func (p *Pool) release(conn *PooledConnection, remove bool) {
	p.mu.Lock()
	if conn.released {
		p.mu.Unlock()
		p.emitError(newPoolError("", "pgpool: connection released more than once"), conn)
		return
	}
	if _, tracked := p.totalIDs[conn.id]; !tracked {
		// Already torn down, e.g. by onConnError racing ahead of this
		// Release/Discard call. Treat as a no-op: handing it to a
		// waiter or parking it in idle would resurrect a closed
		// connection as if it were healthy.
		conn.released = true
		p.mu.Unlock()
		return
	}
	conn.released = true

	if p.ending || remove {
		p.mu.Unlock()
		p.removeConn(conn)
		return
	}

	if w := p.queue.popFront(); w != nil {
		conn.released = false // handed off, not yet released by its new owner
		p.mu.Unlock()
		if !w.settle(waiterResult{conn: conn}) {
			// The waiter already timed out; treat this as a fresh
			// release attempt instead of losing the connection.
			conn.released = false
			p.release(conn, remove)
		}
		return
	}

	if p.opts.IdleTimeout > 0 {
		id := conn.id
		conn.idleTimer = &timerHandle{}
		timer := time.AfterFunc(p.opts.IdleTimeout, func() {
			p.expireIdle(id)
		})
		conn.idleTimer.stop = timer.Stop
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
		p.emitConnectionIdle()
		return
	}

	p.mu.Unlock()
	p.removeConn(conn)
}

// expireIdle fires when a connection's idle timer elapses. It only acts if
// the connection is still actually idle: if Acquire already popped it
// first, p.idle no longer contains it and this is a no-op.
func (p *Pool) expireIdle(id uint64) {
	p.mu.Lock()
	idx := -1
	for i, c := range p.idle {
		if c.id == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		p.mu.Unlock()
		return
	}
	conn := p.idle[idx]
	p.idle = append(p.idle[:idx], p.idle[idx+1:]...)
	conn.idleTimer = nil
	p.mu.Unlock()

	p.removeConn(conn)
}

// removeConn tears down and unaccounts a connection. Idempotent: calling
// it twice on the same connection only removes and closes it once.
func (p *Pool) removeConn(conn *PooledConnection) {
	conn.driver.OnError(func(error) {})

	p.mu.Lock()
	if conn.idleTimer != nil {
		conn.idleTimer.Stop()
		conn.idleTimer = nil
	}

	wasIdle := false
	for i, c := range p.idle {
		if c == conn {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			wasIdle = true
			break
		}
	}

	_, wasCounted := p.totalIDs[conn.id]
	delete(p.totalIDs, conn.id)
	p.mu.Unlock()

	if !wasCounted && !wasIdle {
		// Already removed by a concurrent call; don't double-emit.
		return
	}

	if wasIdle {
		p.emitConnectionRemovedFromIdlePool()
	}

	if err := conn.driver.Close(context.Background()); err != nil && !isBenignCloseError(err) {
		p.emitError(err, conn)
	}

	p.emitConnectionRemovedFromPool()
}

// onConnError is the driver's error hook: it removes the connection and
// surfaces the error.
func (p *Pool) onConnError(conn *PooledConnection, err error) {
	p.removeConn(conn)
	p.emitError(err, conn)
}

// End latches the pool closed and drains idle connections. In-use
// connections finish normally and are removed on their eventual Release.
func (p *Pool) End(ctx context.Context) {
	p.mu.Lock()
	p.ending = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, conn := range idle {
		conn.idleTimer.Stop()
		conn.idleTimer = nil
		p.removeConn(conn)
	}
}

// isBenignCloseError reports whether err is the expected "connection
// already torn down" error from closing a socket that the peer (or a
// prior Close call) already ended, which removeConn swallows rather
// than surfacing as an error.
func isBenignCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return containsAny(msg, []string{
		"closed pool",
		"conn closed",
		"socket has been ended",
		"use of closed network connection",
		"already closed",
	})
}
