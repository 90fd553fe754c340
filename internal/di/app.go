package di

import (
	"context"

	"brain2-assistant/internal/config"
	"brain2-assistant/internal/infrastructure/observability"

	"go.uber.org/zap"
)

// WebhookApp is the Telegram webhook function.
type WebhookApp struct {
	Config  *config.Config
	Logger  *zap.Logger
	Tracing *observability.TracerProvider
	Handler WebhookHandler
}

// ProcessorApp is the queue consumer that runs the agent.
type ProcessorApp struct {
	Config  *config.Config
	Logger  *zap.Logger
	Tracing *observability.TracerProvider
	Handler QueueHandler
}

// ReminderApp is the scheduled reminder dispatcher.
type ReminderApp struct {
	Config  *config.Config
	Logger  *zap.Logger
	Tracing *observability.TracerProvider
	Handler ReminderHandler
}

func newWebhookApp(cfg *config.Config, logger *zap.Logger, tp *observability.TracerProvider, el *observability.EventLogger, h WebhookHandler) *WebhookApp {
	return &WebhookApp{Config: cfg, Logger: logger, Tracing: tp, Handler: withFlush(tp, logger, withColdStart(NewColdStartTracker(), el, h))}
}

func newProcessorApp(cfg *config.Config, logger *zap.Logger, tp *observability.TracerProvider, el *observability.EventLogger, h QueueHandler) *ProcessorApp {
	return &ProcessorApp{Config: cfg, Logger: logger, Tracing: tp, Handler: withFlush(tp, logger, withColdStart(NewColdStartTracker(), el, h))}
}

func newReminderApp(cfg *config.Config, logger *zap.Logger, tp *observability.TracerProvider, el *observability.EventLogger, h ReminderHandler) *ReminderApp {
	return &ReminderApp{Config: cfg, Logger: logger, Tracing: tp, Handler: withFlush(tp, logger, withColdStart(NewColdStartTracker(), el, h))}
}

// flusher exports pending spans. *observability.TracerProvider satisfies it,
// also when nil.
type flusher interface {
	ForceFlush(ctx context.Context) error
}

// withFlush exports the spans of each invocation before it returns, since the
// environment may be frozen right after. The flush outlives a cancelled
// invocation context and its failure never changes the handler's result.
func withFlush[E, R any](f flusher, logger *zap.Logger, h observability.Handler[E, R]) observability.Handler[E, R] {
	return func(ctx context.Context, event E) (R, error) {
		defer func() {
			if err := f.ForceFlush(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("Span flush failed", zap.Error(err))
			}
		}()
		return h(ctx, event)
	}
}
