package pgpool

import (
	"context"
	"time"
)

const defaultRollbackTimeout = 5 * time.Second

// HealthStatus is the response type for health check endpoints.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthCheck verifies database connectivity and returns a status
// suitable for health check API endpoints. It does not probe idle
// connections directly; it goes through the normal Query path like any
// other caller.
func HealthCheck(ctx context.Context, db DB) (*HealthStatus, error) {
	if _, err := db.Query(ctx, "SELECT 1", nil); err != nil {
		return nil, wrapPoolError("", "pgpool: health check failed", err)
	}
	return &HealthStatus{Status: "ok", Database: "pgpool"}, nil
}

// WithTx runs fn inside a transaction on a single acquired connection. If
// fn returns an error or panics, the transaction is rolled back;
// otherwise it is committed.
func WithTx(ctx context.Context, db DB, fn func(ctx context.Context, conn *PooledConnection) error) (err error) {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return err
	}

	if _, err = conn.Query(ctx, "BEGIN", nil); err != nil {
		conn.Discard()
		return err
	}

	rollbackCtx, cancelRollback := context.WithTimeout(context.Background(), defaultRollbackTimeout)
	defer cancelRollback()

	defer func() {
		if r := recover(); r != nil {
			_, _ = conn.Query(rollbackCtx, "ROLLBACK", nil)
			conn.Release()
			panic(r)
		}
	}()

	if err = fn(ctx, conn); err != nil {
		_, _ = conn.Query(rollbackCtx, "ROLLBACK", nil)
		conn.Release()
		return err
	}

	if _, err = conn.Query(ctx, "COMMIT", nil); err != nil {
		conn.Release()
		return err
	}

	conn.Release()
	return nil
}
