package di

import (
	"context"
	"sync/atomic"
	"time"

	"brain2-assistant/internal/infrastructure/observability"

	"go.uber.org/zap/zapcore"
)

// ColdStartTracker records when the function instance was initialized and
// whether it has served an invocation yet.
type ColdStartTracker struct {
	initializedAt time.Time
	served        atomic.Bool
}

// NewColdStartTracker starts the clock for a fresh instance.
func NewColdStartTracker() *ColdStartTracker {
	return &ColdStartTracker{initializedAt: time.Now()}
}

// IsColdStart reports whether no invocation has been served yet.
func (t *ColdStartTracker) IsColdStart() bool {
	return !t.served.Load()
}

// TimeSinceInit returns the age of the instance.
func (t *ColdStartTracker) TimeSinceInit() time.Duration {
	return time.Since(t.initializedAt)
}

// markServed returns true for the first call only.
func (t *ColdStartTracker) markServed() bool {
	return t.served.CompareAndSwap(false, true)
}

// withColdStart logs a cold_start event before the first invocation of h.
func withColdStart[E, R any](tracker *ColdStartTracker, el *observability.EventLogger, h observability.Handler[E, R]) observability.Handler[E, R] {
	return func(ctx context.Context, event E) (R, error) {
		if tracker.markServed() {
			el.LogEvent(ctx, "cold_start", observability.Details{
				"init_ms": tracker.TimeSinceInit().Milliseconds(),
			}, zapcore.InfoLevel)
		}
		return h(ctx, event)
	}
}
