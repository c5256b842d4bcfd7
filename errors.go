package pgpool

import (
	"fmt"
	"strings"
)

// Error codes returned by PoolError.Code. Stable across versions; callers
// may switch on these instead of matching error message text.
const (
	ErrCodePoolEnded             = "ERR_PG_CONNECT_POOL_ENDED"
	ErrCodePoolConnectionTimeout = "ERR_PG_CONNECT_POOL_CONNECTION_TIMEOUT"
	ErrCodeConnectTimeout        = "ERR_PG_CONNECT_TIMEOUT"
	ErrCodeQueryNoNamedParams    = "ERR_PG_QUERY_NO_NAMED_PARAMETERS"
	ErrCodeQueryMissingParam     = "ERR_PG_QUERY_MISSING_QUERY_PARAMETER"
)

// PoolError is the flat error surface the pool exposes to callers: a stable
// Code plus a human-readable message, optionally wrapping a driver-level
// cause. Driver internals are never exposed except through Unwrap.
type PoolError struct {
	Code string
	Msg  string

	cause error
}

func (e *PoolError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Code
}

func (e *PoolError) Unwrap() error { return e.cause }

func newPoolError(code, msg string) *PoolError {
	return &PoolError{Code: code, Msg: msg}
}

func wrapPoolError(code, msg string, cause error) *PoolError {
	return &PoolError{Code: code, Msg: msg, cause: cause}
}

var (
	errPoolEnded = newPoolError(ErrCodePoolEnded, "Cannot use pool after calling end on the pool")
)

func newConnectionTimeoutError(waitMillis int64) *PoolError {
	return newPoolError(ErrCodePoolConnectionTimeout,
		fmt.Sprintf("timeout exceeded when trying to connect (waited %dms)", waitMillis))
}

func newConnectTimeoutError(cause error) *PoolError {
	return wrapPoolError(ErrCodeConnectTimeout, "Connection terminated due to connection timeout", cause)
}

func newNoNamedParametersError() *PoolError {
	return newPoolError(ErrCodeQueryNoNamedParams, "No named parameters found in query but an object of values was passed")
}

func newMissingQueryParameterError(missing []string) *PoolError {
	return newPoolError(ErrCodeQueryMissingParam, "Missing query parameter(s): "+strings.Join(missing, ", "))
}
