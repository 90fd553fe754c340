package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "brain2-assistant/internal/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrUnavailable is returned without calling the agent while the breaker is
// open or its half-open request budget is used up.
var ErrUnavailable = errors.New("agent: temporarily unavailable")

// BreakerConfig tunes the circuit breaker around an Invoker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the settings used by the processor.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "agent",
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// BreakerInvoker stops calling the agent after repeated outages. Only
// failures the agent could recover from count against it: throttling, server
// faults, connectivity errors and timeouts. A rejected request or a cancelled
// context leaves the breaker alone.
type BreakerInvoker struct {
	next Invoker
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerInvoker wraps next.
func NewBreakerInvoker(next Invoker, cfg BreakerConfig, logger *zap.Logger) *BreakerInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isOutage(err)
		},
	})
	return &BreakerInvoker{next: next, cb: cb}
}

// Invoke runs the wrapped invoker through the breaker.
func (b *BreakerInvoker) Invoke(ctx context.Context, req Request) (Result, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Invoke(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return Result{}, err
	}
	return out.(Result), nil
}

// State reports the breaker state.
func (b *BreakerInvoker) State() gobreaker.State {
	return b.cb.State()
}

func isOutage(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || apperrors.IsTransient(err)
}
