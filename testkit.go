package pgpool

import (
	"context"
	"errors"
	"net"
)

// ErrNotMocked is a sentinel for "method not mocked". MockDriver's own
// methods never return it: a method whose Func field is unset falls back
// to a default result instead.
var ErrNotMocked = errors.New("pgpool.MockDriver: method not mocked — set the corresponding Func field")

// MockDriver is a driverConn test double in the shape of a Func-field
// struct: unset fields fall back to a default rather than panicking,
// mirroring the rest of this package's testkit conventions.
type MockDriver struct {
	ConnectFunc func(ctx context.Context) error
	QueryFunc   func(ctx context.Context, sql string, args []any) (*Result, error)
	CloseFunc   func(ctx context.Context) error
	RawConnFunc func() net.Conn

	onErr  func(error)
	closed bool
}

var _ driverConn = (*MockDriver)(nil)

func (m *MockDriver) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

func (m *MockDriver) Query(ctx context.Context, sql string, args []any) (*Result, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sql, args)
	}
	return &Result{}, nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	m.closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc(ctx)
	}
	return nil
}

func (m *MockDriver) OnError(fn func(error)) {
	if fn == nil {
		fn = func(error) {}
	}
	m.onErr = fn
}

func (m *MockDriver) RawConn() net.Conn {
	if m.RawConnFunc != nil {
		return m.RawConnFunc()
	}
	return nil
}

// FireError invokes the pool's registered error hook as if the driver had
// detected the connection dying asynchronously. No-op before OnError has
// been called.
func (m *MockDriver) FireError(err error) {
	if m.onErr != nil {
		m.onErr(err)
	}
}

// Closed reports whether Close has been called at least once.
func (m *MockDriver) Closed() bool {
	return m.closed
}

// SequenceDial returns a DialFunc that hands out drivers, one per call, in
// the given order; calls past the end of drivers reuse the last one. This
// is the seam tests use to script "first connect fails, second succeeds"
// without a network dependency.
func SequenceDial(drivers ...*MockDriver) DialFunc {
	var next int
	return func(Options) driverConn {
		if len(drivers) == 0 {
			return &MockDriver{}
		}
		i := next
		if i >= len(drivers) {
			i = len(drivers) - 1
		} else {
			next++
		}
		return drivers[i]
	}
}

// ResultFrom builds a Result from column names and row values, for tests
// asserting on query output shape.
func ResultFrom(columns []string, rows ...[]any) *Result {
	return &Result{
		Columns:  columns,
		Rows:     rows,
		RowCount: int64(len(rows)),
	}
}
