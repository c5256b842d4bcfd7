package pgpool

import (
	"context"
	"regexp"
	"time"
)

// databaseStartingUpPattern matches the server message Postgres emits
// while it has not yet accepted connections for writes after a restart.
var databaseStartingUpPattern = regexp.MustCompile(`(?i)the database system is starting up`)

// newConnection creates one physical connection, retrying under the
// code-retry and database-startup policies as needed.
func (p *Pool) newConnection(ctx context.Context, id uint64) (*PooledConnection, error) {
	startTime := time.Now()
	return p.connectAttempt(ctx, id, 0, startTime, time.Time{})
}

// connectAttempt is the recursive core of connection establishment.
// dbStartStart is the zero time until the database-starting-up path is
// first entered; retryAttempt is reset to 0 whenever that happens, since
// code-retry and startup-retry are independent budgets.
func (p *Pool) connectAttempt(ctx context.Context, id uint64, retryAttempt int, startTime, dbStartStart time.Time) (*PooledConnection, error) {
	driver := p.dial(p.opts)
	conn := &PooledConnection{id: id, driver: driver, pool: p}
	driver.OnError(func(err error) { p.onConnError(conn, err) })

	connectCtx, cancel := context.WithTimeout(ctx, p.opts.ConnectTimeout)
	err := driver.Connect(connectCtx)
	timedOut := connectCtx.Err() != nil && ctx.Err() == nil
	cancel()

	if err == nil {
		p.emitConnectionAddedToPool(ConnectionAddedEvent{
			ConnectionID: id,
			RetryAttempt: retryAttempt,
			StartTime:    startTime,
		})
		return conn, nil
	}

	if timedOut {
		err = newConnectTimeoutError(err)
	}

	if raw := driver.RawConn(); raw != nil {
		_ = raw.Close()
	}
	if endErr := driver.Close(context.Background()); endErr != nil && !isBenignCloseError(endErr) {
		p.emitError(endErr, conn)
	}

	if ctx.Err() != nil {
		return nil, err
	}

	if p.opts.RetryConnectionMaxRetries > 0 &&
		retryAttempt < p.opts.RetryConnectionMaxRetries &&
		matchesRetryCode(err, p.opts.RetryConnectionErrorCodes) {

		p.emitRetryConnectionOnError(RetryConnectionEvent{ConnectionID: id, RetryAttempt: retryAttempt, Err: err})
		if sleepErr := sleepCtx(ctx, p.opts.RetryConnectionWait); sleepErr != nil {
			return nil, sleepErr
		}
		return p.connectAttempt(ctx, id, retryAttempt+1, startTime, dbStartStart)
	}

	if boolOrDefault(p.opts.ReconnectOnDatabaseIsStartingError, true) && databaseStartingUpPattern.MatchString(err.Error()) {
		p.emitWaitingForDatabaseToStart()
		if dbStartStart.IsZero() {
			dbStartStart = time.Now()
		}
		if sleepErr := sleepCtx(ctx, p.opts.WaitForDatabaseStartup); sleepErr != nil {
			return nil, sleepErr
		}
		if time.Since(dbStartStart) <= p.opts.DatabaseStartupTimeout {
			return p.connectAttempt(ctx, id, 0, startTime, dbStartStart)
		}
		return nil, err
	}

	return nil, err
}

// matchesRetryCode reports whether err's PoolError code (if any) or its
// message contains one of the configured retry codes.
func matchesRetryCode(err error, codes []string) bool {
	if err == nil || len(codes) == 0 {
		return false
	}
	if pe, ok := err.(*PoolError); ok {
		for _, c := range codes {
			if pe.Code == c {
				return true
			}
		}
	}
	return containsAnyFold(err.Error(), codes)
}
