package pgpool

import "time"

// ConnectionAddedEvent is the payload for EventSink.OnConnectionAddedToPool.
type ConnectionAddedEvent struct {
	ConnectionID uint64
	RetryAttempt int
	StartTime    time.Time
}

// RetryConnectionEvent is the payload for EventSink.OnRetryConnectionOnError.
type RetryConnectionEvent struct {
	ConnectionID uint64
	RetryAttempt int
	Err          error
}

// EventSink exposes the pool's observable lifecycle hooks. Every field
// is nil-checked before being invoked; a pool with a nil Events field (or a
// sink that leaves some fields nil) simply does not fire those events.
//
// Handlers run synchronously on the goroutine performing the pool
// operation; a slow handler delays that operation's caller (and, for
// OnConnectionRequestQueued/OnConnectionRequestDequeued, the lock is not
// held while they run — see pool.go).
type EventSink struct {
	OnConnectionRequestQueued           func()
	OnConnectionRequestDequeued         func()
	OnConnectionAddedToPool             func(ConnectionAddedEvent)
	OnConnectionRemovedFromPool         func()
	OnConnectionIdle                    func()
	OnConnectionRemovedFromIdlePool     func()
	OnIdleConnectionActivated           func()
	OnQueryDeniedForReadOnlyTransaction func()
	OnQueryDeniedForConnectionError     func()
	OnWaitingForDatabaseToStart         func()
	OnRetryConnectionOnError            func(RetryConnectionEvent)
	OnError                             func(err error, conn *PooledConnection)
}

func (p *Pool) emitConnectionRequestQueued() {
	if p.opts.Events != nil && p.opts.Events.OnConnectionRequestQueued != nil {
		p.opts.Events.OnConnectionRequestQueued()
	}
}

func (p *Pool) emitConnectionRequestDequeued() {
	if p.opts.Events != nil && p.opts.Events.OnConnectionRequestDequeued != nil {
		p.opts.Events.OnConnectionRequestDequeued()
	}
}

func (p *Pool) emitConnectionAddedToPool(ev ConnectionAddedEvent) {
	if p.opts.Events != nil && p.opts.Events.OnConnectionAddedToPool != nil {
		p.opts.Events.OnConnectionAddedToPool(ev)
	}
}

func (p *Pool) emitConnectionRemovedFromPool() {
	if p.opts.Events != nil && p.opts.Events.OnConnectionRemovedFromPool != nil {
		p.opts.Events.OnConnectionRemovedFromPool()
	}
}

func (p *Pool) emitConnectionIdle() {
	if p.opts.Events != nil && p.opts.Events.OnConnectionIdle != nil {
		p.opts.Events.OnConnectionIdle()
	}
}

func (p *Pool) emitConnectionRemovedFromIdlePool() {
	if p.opts.Events != nil && p.opts.Events.OnConnectionRemovedFromIdlePool != nil {
		p.opts.Events.OnConnectionRemovedFromIdlePool()
	}
}

func (p *Pool) emitIdleConnectionActivated() {
	if p.opts.Events != nil && p.opts.Events.OnIdleConnectionActivated != nil {
		p.opts.Events.OnIdleConnectionActivated()
	}
}

func (p *Pool) emitQueryDeniedForReadOnlyTransaction() {
	if p.opts.Events != nil && p.opts.Events.OnQueryDeniedForReadOnlyTransaction != nil {
		p.opts.Events.OnQueryDeniedForReadOnlyTransaction()
	}
}

func (p *Pool) emitQueryDeniedForConnectionError() {
	if p.opts.Events != nil && p.opts.Events.OnQueryDeniedForConnectionError != nil {
		p.opts.Events.OnQueryDeniedForConnectionError()
	}
}

func (p *Pool) emitWaitingForDatabaseToStart() {
	if p.opts.Events != nil && p.opts.Events.OnWaitingForDatabaseToStart != nil {
		p.opts.Events.OnWaitingForDatabaseToStart()
	}
}

func (p *Pool) emitRetryConnectionOnError(ev RetryConnectionEvent) {
	if p.opts.Events != nil && p.opts.Events.OnRetryConnectionOnError != nil {
		p.opts.Events.OnRetryConnectionOnError(ev)
	}
}

func (p *Pool) emitError(err error, conn *PooledConnection) {
	if p.opts.Events != nil && p.opts.Events.OnError != nil {
		p.opts.Events.OnError(err, conn)
	}
}
