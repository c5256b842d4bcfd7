package pgpool

import (
	"context"
	"strings"
	"time"
)

// containsAny reports whether s contains any of substrs, case-sensitively.
func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// containsAnyFold is containsAny with case-insensitive comparison.
func containsAnyFold(s string, substrs []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// sleepCtx sleeps for d, returning early with ctx.Err() if ctx is canceled
// first. A zero or negative d returns immediately.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
