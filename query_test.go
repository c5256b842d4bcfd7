package pgpool

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQuery_ReadOnlyTransaction_RetriesAgainstNewPrimary(t *testing.T) {
	t.Parallel()

	failing := &MockDriver{
		QueryFunc: func(ctx context.Context, sql string, args []any) (*Result, error) {
			return nil, errors.New("cannot execute INSERT in a read-only transaction")
		},
	}
	succeeding := &MockDriver{
		QueryFunc: func(ctx context.Context, sql string, args []any) (*Result, error) {
			return ResultFrom([]string{"ok"}, []any{true}), nil
		},
	}

	opts := Options{
		PoolSize:                            1,
		IdleTimeout:                         time.Minute,
		WaitForReconnectReadOnlyTransaction: time.Millisecond,
		ReadOnlyTransactionReconnectTimeout: time.Second,
		Dial:                                SequenceDial(failing, succeeding),
	}
	p := New(opts)

	res, err := p.Query(context.Background(), "insert into t values (1)", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.RowCount != 1 {
		t.Fatalf("rowCount=%d, want 1", res.RowCount)
	}
	if !failing.Closed() {
		t.Fatal("expected the failing connection to be discarded")
	}
	if got := p.TotalCount(); got != 1 {
		t.Fatalf("totalCount=%d, want 1", got)
	}
}

func TestQuery_ConnectionError_RetriesOnFreshConnection(t *testing.T) {
	t.Parallel()

	failing := &MockDriver{
		QueryFunc: func(ctx context.Context, sql string, args []any) (*Result, error) {
			return nil, errors.New("Client has encountered a connection error and is not queryable")
		},
	}
	succeeding := &MockDriver{
		QueryFunc: func(ctx context.Context, sql string, args []any) (*Result, error) {
			return ResultFrom([]string{"ok"}, []any{true}), nil
		},
	}

	opts := Options{
		PoolSize:                   2,
		WaitForReconnectConnection: time.Millisecond,
		ConnectionReconnectTimeout: time.Second,
		Dial:                       SequenceDial(failing, succeeding),
	}
	p := New(opts)

	res, err := p.Query(context.Background(), "select 1", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.RowCount != 1 {
		t.Fatalf("rowCount=%d, want 1", res.RowCount)
	}
}

func TestQuery_ReadOnlyTransaction_BudgetExhaustedReturnsOriginalError(t *testing.T) {
	t.Parallel()

	always := &MockDriver{
		QueryFunc: func(ctx context.Context, sql string, args []any) (*Result, error) {
			return nil, errors.New("cannot execute UPDATE in a read-only transaction")
		},
	}

	opts := Options{
		PoolSize:                            1,
		WaitForReconnectReadOnlyTransaction: 5 * time.Millisecond,
		ReadOnlyTransactionReconnectTimeout: 12 * time.Millisecond,
		Dial:                                SequenceDial(always),
	}
	p := New(opts)

	_, err := p.Query(context.Background(), "update t set x=1", nil)
	if err == nil {
		t.Fatal("expected the read-only-transaction error to surface once the budget is exhausted")
	}
	if !readOnlyTransactionPattern.MatchString(err.Error()) {
		t.Fatalf("err=%v, want the original read-only-transaction error", err)
	}
}

func TestQuery_NonRetryableError_PropagatesAndReleasesConnection(t *testing.T) {
	t.Parallel()

	d := &MockDriver{
		QueryFunc: func(ctx context.Context, sql string, args []any) (*Result, error) {
			return nil, errors.New("syntax error at or near \"foo\"")
		},
	}
	opts := Options{PoolSize: 1, IdleTimeout: time.Minute, Dial: SequenceDial(d)}
	p := New(opts)

	_, err := p.Query(context.Background(), "foo bad sql", nil)
	if err == nil {
		t.Fatal("expected syntax error to propagate")
	}
	if got := p.IdleCount(); got != 1 {
		t.Fatalf("idleCount=%d, want 1 (connection returned to idle, not discarded)", got)
	}
}

func TestQuery_ConnErrorFiredBeforeOrdinaryRelease_DoesNotResurrectConnection(t *testing.T) {
	t.Parallel()

	// A connection that dies mid-query but reports an error not shaped
	// like the dropped-connection sentinel (e.g. the driver notified the
	// pool through OnError directly, the way the real pgx adapter's
	// classifyQueryError does, but queryWithRetry still falls through
	// to its "otherwise" branch and calls the ordinary Release path).
	// The pool must not hand this already-removed connection to a fresh
	// waiter or park it back in idle.
	d := &MockDriver{}
	d.QueryFunc = func(ctx context.Context, sql string, args []any) (*Result, error) {
		d.FireError(errors.New("connection reset by peer"))
		return nil, errors.New("connection reset by peer")
	}

	p := New(Options{PoolSize: 1, IdleTimeout: time.Minute, Dial: SequenceDial(d)})

	_, err := p.Query(context.Background(), "select 1", nil)
	if err == nil {
		t.Fatal("expected the connection-reset error to propagate")
	}
	if got := p.TotalCount(); got != 0 {
		t.Fatalf("totalCount=%d, want 0 (connection must stay removed, not resurrected into idle)", got)
	}
	if got := p.IdleCount(); got != 0 {
		t.Fatalf("idleCount=%d, want 0", got)
	}

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after reset: %v", err)
	}
	conn.Release()
	if got := p.TotalCount(); got != 1 {
		t.Fatalf("totalCount=%d, want 1 (one freshly dialed connection)", got)
	}
}

func TestQuery_NamedParameters_RewrittenBeforeExecution(t *testing.T) {
	t.Parallel()

	var gotSQL string
	var gotArgs []any
	d := &MockDriver{
		QueryFunc: func(ctx context.Context, sql string, args []any) (*Result, error) {
			gotSQL = sql
			gotArgs = args
			return &Result{}, nil
		},
	}
	p := New(Options{Dial: SequenceDial(d)})

	_, err := p.Query(context.Background(), "select * from t where id=@id", map[string]any{"id": 42})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if gotSQL != "select * from t where id=$1" {
		t.Fatalf("sql=%q", gotSQL)
	}
	if len(gotArgs) != 1 || gotArgs[0] != 42 {
		t.Fatalf("args=%v", gotArgs)
	}
}
