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

const instrumentationName = "brain2-assistant/observability"

// FieldDuration is the elapsed time of a scope in milliseconds.
const FieldDuration = "duration_ms"

// Measure runs fn inside a timed scope. It logs <operation>_started before fn,
// then <operation>_completed or <operation>_failed with the elapsed time. The
// error from fn is returned unchanged; a panic is logged as a failure and
// re-raised.
func (l *EventLogger) Measure(ctx context.Context, operation string, details Details, fn func(context.Context) error) (err error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, operation)
	defer span.End()

	l.LogEvent(ctx, operation+"_started", details, zapcore.InfoLevel)
	start := time.Now()

	defer func() {
		elapsed := withDetail(details, FieldDuration, milliseconds(time.Since(start)))
		span.SetAttributes(attribute.Float64(FieldDuration, elapsed[FieldDuration].(float64)))

		if r := recover(); r != nil {
			perr := fmt.Errorf("panic: %v", r)
			span.RecordError(perr)
			span.SetStatus(codes.Error, perr.Error())
			l.LogError(ctx, operation+"_failed", perr, elapsed)
			panic(r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			l.LogError(ctx, operation+"_failed", err, elapsed)
			return
		}
		l.LogEvent(ctx, operation+"_completed", elapsed, zapcore.InfoLevel)
	}()

	return fn(ctx)
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// withDetail copies details and adds one key.
func withDetail(details Details, key string, value any) Details {
	out := make(Details, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out[key] = value
	return out
}
