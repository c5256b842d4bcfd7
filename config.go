package pgpool

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
)

// namedParameterToken matches an @name token in query text, e.g. "@userId".
var namedParameterToken = regexp.MustCompile(`@(\w)+\b`)

// Options controls pool sizing, timeouts, and retry policy. Zero-value
// numeric/slice/func fields are filled in by withDefaults from
// DefaultOptions. The three Reconnect* fields default to true and are
// therefore *bool: nil means "use the default", not "disabled".
type Options struct {
	// ConnectionString is passed to pgx.ParseConfig for the production
	// driver. Unused when Dial is set.
	ConnectionString string

	// PoolSize caps simultaneous physical connections. Default 10.
	PoolSize int

	// IdleTimeout is how long a released connection sits idle before
	// being removed. Zero disables idling: release always removes.
	// A negative value is treated as unset and filled from the default
	// (10s) instead, since the zero value here is a deliberate "disable"
	// rather than "use the default".
	IdleTimeout time.Duration

	// WaitForAvailableConnectionTimeout bounds how long Acquire waits for
	// a queued slot before failing with ErrCodePoolConnectionTimeout.
	WaitForAvailableConnectionTimeout time.Duration

	// ConnectTimeout bounds a single connect attempt.
	ConnectTimeout time.Duration

	// RetryConnectionMaxRetries caps retry rounds for transient connect
	// errors matched against RetryConnectionErrorCodes. Zero means the
	// default of 5; to disable code-retry set RetryConnectionErrorCodes
	// to an empty non-nil slice.
	RetryConnectionMaxRetries int

	// RetryConnectionWait is the backoff between connect retries.
	RetryConnectionWait time.Duration

	// RetryConnectionErrorCodes are matched against a connect error's
	// code or as a substring of its message.
	RetryConnectionErrorCodes []string

	// ReconnectOnDatabaseIsStartingError retries connect while the server
	// reports "the database system is starting up". Defaults to true.
	ReconnectOnDatabaseIsStartingError *bool

	// WaitForDatabaseStartup is the sleep between startup retries.
	WaitForDatabaseStartup time.Duration

	// DatabaseStartupTimeout bounds the total startup-retry budget.
	DatabaseStartupTimeout time.Duration

	// ReconnectOnReadOnlyTransactionError retries a query, on a fresh
	// connection, while the server keeps rejecting it with a
	// read-only-transaction error, until ReadOnlyTransactionReconnectTimeout
	// has elapsed. Defaults to true.
	ReconnectOnReadOnlyTransactionError *bool

	// WaitForReconnectReadOnlyTransaction is the sleep between read-only
	// retries.
	WaitForReconnectReadOnlyTransaction time.Duration

	// ReadOnlyTransactionReconnectTimeout bounds the read-only retry
	// budget.
	ReadOnlyTransactionReconnectTimeout time.Duration

	// ReconnectOnConnectionError retries a query, on a fresh connection,
	// while the driver keeps reporting a dropped/unqueryable connection,
	// until ConnectionReconnectTimeout has elapsed. Defaults to true.
	ReconnectOnConnectionError *bool

	// WaitForReconnectConnection is the sleep between connection-error
	// retries.
	WaitForReconnectConnection time.Duration

	// ConnectionReconnectTimeout bounds the connection-error retry
	// budget.
	ConnectionReconnectTimeout time.Duration

	// NamedParameterFindRegexp discovers @name tokens in query text.
	// Defaults to matching `@(\w)+\b`.
	NamedParameterFindRegexp *regexp.Regexp

	// GetNamedParameterReplaceRegexp returns a regexp matching every
	// occurrence of a specific named-parameter key's token. Defaults to
	// `@<key>\b`.
	GetNamedParameterReplaceRegexp func(key string) *regexp.Regexp

	// GetNamedParameterName maps a matched token (e.g. "@userId") to its
	// values-map key (e.g. "userId"). Defaults to stripping the leading
	// '@'.
	GetNamedParameterName func(token string) string

	// QueryTimeout, when non-zero, bounds each individual query as a
	// client-side context deadline. StatementTimeout, when non-zero, is
	// forwarded to the driver verbatim as the Postgres
	// statement_timeout runtime parameter.
	QueryTimeout     time.Duration
	StatementTimeout time.Duration

	// ParallelDrain, when true, removes currently-idle connections
	// concurrently during query-retry draining instead of sequentially.
	ParallelDrain bool

	// Dial overrides physical-connection creation. Tests inject a mock
	// driverConn here; production code leaves it nil to use pgx.
	Dial DialFunc

	// Events receives pool lifecycle notifications. Optional.
	Events *EventSink
}

// DialFunc creates one physical driver connection. Returning a non-nil
// driverConn is required even when Connect(ctx) will subsequently fail;
// connectAttempt relies on being able to call Close/RawConn on it.
type DialFunc func(opts Options) driverConn

func boolPtr(b bool) *bool { return &b }

func boolOrDefault(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// DefaultOptions returns the baseline pool configuration.
func DefaultOptions() Options {
	return Options{
		PoolSize:                             10,
		IdleTimeout:                          10 * time.Second,
		WaitForAvailableConnectionTimeout:    90 * time.Second,
		ConnectTimeout:                       5 * time.Second,
		RetryConnectionMaxRetries:            5,
		RetryConnectionWait:                  100 * time.Millisecond,
		RetryConnectionErrorCodes:            []string{"ENOTFOUND", "EAI_AGAIN", "ERR_PG_CONNECT_TIMEOUT", "timeout expired"},
		ReconnectOnDatabaseIsStartingError:   boolPtr(true),
		DatabaseStartupTimeout:               90 * time.Second,
		ReconnectOnReadOnlyTransactionError:  boolPtr(true),
		ReadOnlyTransactionReconnectTimeout:  90 * time.Second,
		ReconnectOnConnectionError:           boolPtr(true),
		ConnectionReconnectTimeout:           90 * time.Second,
		NamedParameterFindRegexp:             namedParameterToken,
		GetNamedParameterReplaceRegexp:       defaultNamedParameterReplaceRegexp,
		GetNamedParameterName:                defaultNamedParameterName,
	}
}

func defaultNamedParameterReplaceRegexp(key string) *regexp.Regexp {
	return regexp.MustCompile(`@` + regexp.QuoteMeta(key) + `\b`)
}

func defaultNamedParameterName(token string) string {
	if len(token) > 0 && token[0] == '@' {
		return token[1:]
	}
	return token
}

// withDefaults returns a copy of o with every zero-value field filled in
// from DefaultOptions. Reconnect* fields are left as-is: nil already
// means "use the default" and is resolved on read via boolOrDefault.
//
// IdleTimeout is the one field where the Go zero value is not "unset": a
// literal 0 is the documented way to disable idling (release always
// removes), so it is left at 0 rather than defaulted. Callers who want
// the default idle timeout applied instead of disabling it must pass a
// negative value, which is treated as "unset" here.
func (o Options) withDefaults() Options {
	d := DefaultOptions()

	if o.PoolSize <= 0 {
		o.PoolSize = d.PoolSize
	}
	if o.IdleTimeout < 0 {
		o.IdleTimeout = d.IdleTimeout
	}
	if o.WaitForAvailableConnectionTimeout <= 0 {
		o.WaitForAvailableConnectionTimeout = d.WaitForAvailableConnectionTimeout
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.RetryConnectionMaxRetries <= 0 {
		o.RetryConnectionMaxRetries = d.RetryConnectionMaxRetries
	}
	if o.RetryConnectionWait == 0 {
		o.RetryConnectionWait = d.RetryConnectionWait
	}
	if o.RetryConnectionErrorCodes == nil {
		o.RetryConnectionErrorCodes = d.RetryConnectionErrorCodes
	}
	if o.DatabaseStartupTimeout <= 0 {
		o.DatabaseStartupTimeout = d.DatabaseStartupTimeout
	}
	if o.ReadOnlyTransactionReconnectTimeout <= 0 {
		o.ReadOnlyTransactionReconnectTimeout = d.ReadOnlyTransactionReconnectTimeout
	}
	if o.ConnectionReconnectTimeout <= 0 {
		o.ConnectionReconnectTimeout = d.ConnectionReconnectTimeout
	}
	if o.NamedParameterFindRegexp == nil {
		o.NamedParameterFindRegexp = d.NamedParameterFindRegexp
	}
	if o.GetNamedParameterReplaceRegexp == nil {
		o.GetNamedParameterReplaceRegexp = d.GetNamedParameterReplaceRegexp
	}
	if o.GetNamedParameterName == nil {
		o.GetNamedParameterName = d.GetNamedParameterName
	}

	return o
}

// OptionsFromMap decodes a loosely-typed configuration blob (e.g. parsed
// from JSON or environment-derived key/value pairs) into Options.
func OptionsFromMap(m map[string]any) (Options, error) {
	var o Options
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &o,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Options{}, fmt.Errorf("pgpool: building options decoder: %w", err)
	}
	if err := decoder.Decode(m); err != nil {
		return Options{}, fmt.Errorf("pgpool: decoding options: %w", err)
	}
	return o, nil
}

// tomlOptions mirrors a subset of Options as plain TOML scalars
// (durations as milliseconds). Not covered: regexps, callbacks, Dial,
// Events, WaitForReconnectReadOnlyTransaction,
// ReadOnlyTransactionReconnectTimeout, WaitForReconnectConnection,
// ConnectionReconnectTimeout, QueryTimeout, and StatementTimeout.
type tomlOptions struct {
	ConnectionString                    string   `toml:"connection_string"`
	PoolSize                            int      `toml:"pool_size"`
	IdleTimeoutMillis                   int64    `toml:"idle_timeout_millis"`
	WaitForAvailableConnectionTimeoutMs int64    `toml:"wait_for_available_connection_timeout_millis"`
	ConnectTimeoutMillis                int64    `toml:"connection_timeout_millis"`
	RetryConnectionMaxRetries           int      `toml:"retry_connection_max_retries"`
	RetryConnectionWaitMillis           int64    `toml:"retry_connection_wait_millis"`
	RetryConnectionErrorCodes           []string `toml:"retry_connection_error_codes"`
	ReconnectOnDatabaseIsStartingError  *bool    `toml:"reconnect_on_database_is_starting_error"`
	WaitForDatabaseStartupMillis        int64    `toml:"wait_for_database_startup_millis"`
	DatabaseStartupTimeoutMillis        int64    `toml:"database_startup_timeout_millis"`
	ReconnectOnReadOnlyTransactionError *bool    `toml:"reconnect_on_read_only_transaction_error"`
	ReconnectOnConnectionError          *bool    `toml:"reconnect_on_connection_error"`
	ParallelDrain                       bool     `toml:"parallel_drain"`
}

// LoadOptionsTOML reads a pool configuration file from disk. Only the
// fields of tomlOptions are read; every other Options field is left at
// its zero value on the returned Options, and New later fills defaults
// for those that have one.
func LoadOptionsTOML(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("pgpool: reading options file: %w", err)
	}

	var t tomlOptions
	if err := toml.Unmarshal(data, &t); err != nil {
		return Options{}, fmt.Errorf("pgpool: parsing options file: %w", err)
	}

	return Options{
		ConnectionString:                    t.ConnectionString,
		PoolSize:                             t.PoolSize,
		IdleTimeout:                          time.Duration(t.IdleTimeoutMillis) * time.Millisecond,
		WaitForAvailableConnectionTimeout:    time.Duration(t.WaitForAvailableConnectionTimeoutMs) * time.Millisecond,
		ConnectTimeout:                       time.Duration(t.ConnectTimeoutMillis) * time.Millisecond,
		RetryConnectionMaxRetries:            t.RetryConnectionMaxRetries,
		RetryConnectionWait:                  time.Duration(t.RetryConnectionWaitMillis) * time.Millisecond,
		RetryConnectionErrorCodes:            t.RetryConnectionErrorCodes,
		ReconnectOnDatabaseIsStartingError:   t.ReconnectOnDatabaseIsStartingError,
		WaitForDatabaseStartup:               time.Duration(t.WaitForDatabaseStartupMillis) * time.Millisecond,
		DatabaseStartupTimeout:               time.Duration(t.DatabaseStartupTimeoutMillis) * time.Millisecond,
		ReconnectOnReadOnlyTransactionError:  t.ReconnectOnReadOnlyTransactionError,
		ReconnectOnConnectionError:           t.ReconnectOnConnectionError,
		ParallelDrain:                        t.ParallelDrain,
	}, nil
}
