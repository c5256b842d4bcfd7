package pgpool

import (
	"context"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"
)

// readOnlyTransactionPattern matches the server's rejection of a write
// issued against a read-only replica (post-failover).
var readOnlyTransactionPattern = regexp.MustCompile(`(?i)cannot execute [\s\w]+ in a read-only transaction`)

// connectionErrorPattern matches the driver's own report that a
// connection has dropped and can no longer serve queries.
var connectionErrorPattern = regexp.MustCompile(`(?i)client has encountered a connection error and is not queryable`)

// Query executes sql against the pool: acquire, execute, release, retrying
// on read-only-transaction and dropped-connection errors per policy.
// values may be nil, a positional []any, or a named map[string]any
// (rewritten to positional form before execution).
func (p *Pool) Query(ctx context.Context, sql string, values any) (*Result, error) {
	text, args, err := p.rewriteNamedParameters(sql, values)
	if err != nil {
		return nil, err
	}
	return p.queryWithRetry(ctx, text, args, time.Time{})
}

func (p *Pool) queryWithRetry(ctx context.Context, text string, args []any, startTime time.Time) (*Result, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	res, qerr := conn.Query(ctx, text, args)
	if qerr == nil {
		conn.Release()
		return res, nil
	}

	msg := qerr.Error()
	var kind string
	switch {
	case boolOrDefault(p.opts.ReconnectOnReadOnlyTransactionError, true) && readOnlyTransactionPattern.MatchString(msg):
		kind = "readonly"
	case boolOrDefault(p.opts.ReconnectOnConnectionError, true) && connectionErrorPattern.MatchString(msg):
		kind = "connection"
	}

	if kind == "" {
		conn.Release()
		return nil, qerr
	}
	conn.Discard()

	var wait, budget time.Duration
	switch kind {
	case "readonly":
		p.emitQueryDeniedForReadOnlyTransaction()
		wait = p.opts.WaitForReconnectReadOnlyTransaction
		budget = p.opts.ReadOnlyTransactionReconnectTimeout
	case "connection":
		p.emitQueryDeniedForConnectionError()
		wait = p.opts.WaitForReconnectConnection
		budget = p.opts.ConnectionReconnectTimeout
	}

	p.drainIdle(ctx)

	if startTime.IsZero() {
		startTime = time.Now()
	}
	if wait > 0 {
		if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
			return nil, qerr
		}
	}
	if time.Since(startTime) > budget {
		return nil, qerr
	}

	return p.queryWithRetry(ctx, text, args, startTime)
}

// drainIdle removes every currently-idle connection so the next acquire
// forces a fresh socket that may land on a new primary. Sequential by
// default; set Options.ParallelDrain for the concurrent variant — either
// is safe, since the snapshot is taken and cleared atomically under the
// pool lock before any removal runs, so a subsequent acquire never
// observes an already-removed connection as idle.
func (p *Pool) drainIdle(ctx context.Context) {
	p.mu.Lock()
	snapshot := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, conn := range snapshot {
		conn.idleTimer.Stop()
		conn.idleTimer = nil
	}

	if !p.opts.ParallelDrain {
		for _, conn := range snapshot {
			p.removeConn(conn)
		}
		return
	}

	g, _ := errgroup.WithContext(ctx)
	for _, conn := range snapshot {
		conn := conn
		g.Go(func() error {
			p.removeConn(conn)
			return nil
		})
	}
	_ = g.Wait()
}
