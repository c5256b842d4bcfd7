package pgpool

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

// Result is the outcome of a query, shaped like node-postgres's Result
// rather than a raw pgx.Rows cursor: the pool must be able to inspect rows
// after Release has already been called, so rows are collected eagerly.
type Result struct {
	Columns  []string
	Rows     [][]any
	RowCount int64
}

// driverConn is the minimal contract the pool requires from the underlying
// PostgreSQL client. Exactly one implementation ships here
// (pgxDriverConn, backed by *pgx.Conn); tests substitute MockDriver
// (testkit.go).
type driverConn interface {
	// Connect establishes the physical connection. Called at most once.
	Connect(ctx context.Context) error

	// Query executes text with positional args and collects the result.
	Query(ctx context.Context, sql string, args []any) (*Result, error)

	// Close best-effort tears down the connection. Safe to call more
	// than once.
	Close(ctx context.Context) error

	// OnError registers the pool's error hook. The driver invokes it
	// when it detects the connection has become unusable (e.g. the
	// backend closed the socket); pgxDriverConn detects this while
	// handling a failed Query. May be called with a no-op function to
	// unsubscribe.
	OnError(fn func(error))

	// RawConn exposes the underlying transport for forced teardown after
	// a failed connect. May return nil if the driver does not expose one.
	RawConn() net.Conn
}

// pgxDriverConn adapts *pgx.Conn to driverConn.
type pgxDriverConn struct {
	cfg          *pgx.ConnConfig
	queryTimeout time.Duration
	conn         *pgx.Conn

	onErr func(error)
}

// newPgxDriverConn is the default DialFunc, used whenever Options.Dial is
// nil. It parses Options.ConnectionString once per connection so that
// StatementTimeout can be set per dial.
func newPgxDriverConn(opts Options) driverConn {
	cfg, err := pgx.ParseConfig(opts.ConnectionString)
	if err != nil {
		// Deferred: Connect() below then fails with an invalid-configuration
		// PoolError (code ErrCodeConnectTimeout) so callers get a uniform
		// error path instead of a panic here. The parse error itself is
		// not kept.
		return &pgxDriverConn{cfg: nil, onErr: func(error) {}}
	}

	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	if opts.StatementTimeout > 0 {
		cfg.RuntimeParams["statement_timeout"] = strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	}

	return &pgxDriverConn{cfg: cfg, queryTimeout: opts.QueryTimeout, onErr: func(error) {}}
}

func (c *pgxDriverConn) Connect(ctx context.Context) error {
	if c.cfg == nil {
		return &PoolError{Code: ErrCodeConnectTimeout, Msg: "pgpool: invalid connection configuration"}
	}

	conn, err := pgx.ConnectConfig(ctx, c.cfg)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *pgxDriverConn) Query(ctx context.Context, sql string, args []any) (*Result, error) {
	if c.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, c.classifyQueryError(err)
	}
	defer rows.Close()

	var data [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, c.classifyQueryError(err)
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, c.classifyQueryError(err)
	}

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	return &Result{Columns: cols, Rows: data, RowCount: int64(len(data))}, nil
}

// classifyQueryError fires the registered error hook when the connection
// itself (not just the statement) is no longer usable, and rewrites err to
// carry the pool's own dropped-connection sentinel phrase so the retry
// policy's pattern match can recognize it. pgx does not emit an
// asynchronous 'error' event the way node-postgres does, so this is the
// closest equivalent: classify after the fact, on the goroutine that
// noticed, rather than from a background listener.
func (c *pgxDriverConn) classifyQueryError(err error) error {
	if c.conn == nil || !c.conn.IsClosed() {
		return err
	}
	c.onErr(err)
	return fmt.Errorf("client has encountered a connection error and is not queryable: %w", err)
}

func (c *pgxDriverConn) Close(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close(ctx)
}

func (c *pgxDriverConn) OnError(fn func(error)) {
	if fn == nil {
		fn = func(error) {}
	}
	c.onErr = fn
}

func (c *pgxDriverConn) RawConn() net.Conn {
	if c.conn == nil {
		return nil
	}
	return c.conn.PgConn().Conn()
}
