package pgpool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// ExampleEventSink_slog shows wiring EventSink to log/slog, the way the
// pool is meant to be observed in production: every hook forwards to a
// structured logger instead of the pool printing or logging anything on
// its own.
func ExampleEventSink_slog() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var added, removed int
	events := &EventSink{
		OnConnectionAddedToPool: func(ev ConnectionAddedEvent) {
			added++
			logger.Info("connection added", "id", ev.ConnectionID, "retry", ev.RetryAttempt)
		},
		OnConnectionRemovedFromPool: func() {
			removed++
			logger.Info("connection removed")
		},
		OnError: func(err error, conn *PooledConnection) {
			logger.Error("pool error", "err", err)
		},
	}

	p := New(Options{
		PoolSize: 1,
		Events:   events,
		Dial:     SequenceDial(&MockDriver{}),
	})

	conn, err := p.Acquire(context.Background())
	if err != nil {
		fmt.Println("unexpected error")
		return
	}
	conn.Discard()

	fmt.Println(added, removed)
	// Output: 1 1
}
