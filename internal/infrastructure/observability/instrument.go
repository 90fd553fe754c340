package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap/zapcore"
)

// Handler is the shape of a Lambda handler taking event E and returning R.
type Handler[E, R any] func(ctx context.Context, event E) (R, error)

// InstrumentOption configures Instrument.
type InstrumentOption func(*instrumentConfig)

type instrumentConfig struct {
	collector *Collector
	redactor  Redactor
}

// WithCollector records invocation counts and durations in c.
func WithCollector(c *Collector) InstrumentOption {
	return func(cfg *instrumentConfig) { cfg.collector = c }
}

// WithRedactor replaces the redaction policy of the kind.
func WithRedactor(r Redactor) InstrumentOption {
	return func(cfg *instrumentConfig) { cfg.redactor = r }
}

// Instrument wraps handler so that every invocation runs with a correlation
// id, logs its redacted inbound event, and logs any error exactly once before
// returning it unchanged. A panic is logged and re-raised. With a collector,
// the metrics recorded during the invocation are logged as one metrics entry.
func Instrument[E, R any](events *EventLogger, kind Kind, handler Handler[E, R], opts ...InstrumentOption) Handler[E, R] {
	cfg := instrumentConfig{redactor: RedactorFor(kind)}
	for _, opt := range opts {
		opt(&cfg)
	}
	spanName := string(kind) + "_handler"

	return func(ctx context.Context, event E) (result R, err error) {
		ctx, correlationID := EnsureCorrelationID(ctx)
		ctx, span := otel.Tracer(instrumentationName).Start(ctx, spanName)
		span.SetAttributes(
			attribute.String("event.kind", string(kind)),
			attribute.String("correlation.id", correlationID),
		)
		defer span.End()

		events.LogEvent(ctx, "handler_invoked_"+string(kind), Details{
			"kind":  string(kind),
			"event": Redact(cfg.redactor, event),
		}, zapcore.InfoLevel)

		start := time.Now()
		defer func() {
			failure := err
			r := recover()
			if r != nil {
				failure = fmt.Errorf("panic: %v", r)
			}
			cfg.collector.RecordHandler(kind, failure, time.Since(start))

			if failure != nil {
				span.RecordError(failure)
				span.SetStatus(codes.Error, failure.Error())
				events.LogError(ctx, "handler_error_"+string(kind), failure, Details{
					"kind":        string(kind),
					FieldDuration: milliseconds(time.Since(start)),
				})
			}
			if cfg.collector != nil {
				if metrics := cfg.collector.Flush(); len(metrics) > 0 {
					events.LogMetrics(ctx, "handler_metrics_"+string(kind), metrics, Details{"kind": string(kind)})
				}
			}
			if r != nil {
				panic(r)
			}
		}()

		return handler(ctx, event)
	}
}
