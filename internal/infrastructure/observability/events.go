package observability

import (
	"context"
	"errors"
	"fmt"
	"sort"

	apperrors "brain2-assistant/internal/errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names shared by every event.
const (
	FieldEventType     = "eventType"
	FieldCorrelationID = "correlationId"
	FieldError         = "error"
	FieldErrorType     = "errorType"
	FieldMetrics       = "metrics"
)

// Details are the event-specific attributes of one log entry.
type Details map[string]any

// EventLogger writes one structured entry per event.
type EventLogger struct {
	logger *zap.Logger
}

// NewEventLogger wraps logger. A nil logger discards events.
func NewEventLogger(logger *zap.Logger) *EventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLogger{logger: logger}
}

// Logger returns the underlying zap logger.
func (l *EventLogger) Logger() *zap.Logger {
	return l.logger
}

// LogEvent writes eventType and details at level, adding the correlation id
// carried by ctx.
func (l *EventLogger) LogEvent(ctx context.Context, eventType string, details Details, level zapcore.Level) {
	l.logger.Log(level, eventType, l.fields(ctx, eventType, details)...)
}

// LogError writes an error event at error level with the error text and its
// type.
func (l *EventLogger) LogError(ctx context.Context, eventType string, err error, details Details) {
	fields := l.fields(ctx, eventType, details)
	if err != nil {
		fields = append(fields,
			zap.String(FieldError, err.Error()),
			zap.String(FieldErrorType, errorType(err)))
	}
	l.logger.Error(eventType, fields...)
}

// errorType names the application error type of err, or the Go type of the
// innermost wrapped error when err carries none.
func errorType(err error) string {
	if t := apperrors.TypeOf(err); t != apperrors.ErrorTypeInternal {
		return string(t)
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}

// LogMetrics writes metrics as a nested object at info level.
func (l *EventLogger) LogMetrics(ctx context.Context, eventType string, metrics map[string]float64, details Details) {
	fields := append(l.fields(ctx, eventType, details), zap.Object(FieldMetrics, metricSet(metrics)))
	l.logger.Info(eventType, fields...)
}

func (l *EventLogger) fields(ctx context.Context, eventType string, details Details) []zap.Field {
	fields := make([]zap.Field, 0, len(details)+4)
	fields = append(fields, zap.String(FieldEventType, eventType))
	if id := CorrelationID(ctx); id != "" {
		fields = append(fields, zap.String(FieldCorrelationID, id))
	}

	keys := make([]string, 0, len(details))
	for k := range details {
		switch k {
		case FieldEventType, FieldCorrelationID:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.Any(k, details[k]))
	}
	return fields
}

type metricSet map[string]float64

func (m metricSet) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		enc.AddFloat64(k, m[k])
	}
	return nil
}
