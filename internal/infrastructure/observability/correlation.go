// Package observability provides the structured event log, correlation ids,
// timing scopes, handler instrumentation, metrics and tracing shared by every
// entrypoint.
//
// The correlation id lives in the context.Context of one invocation. Every
// log call made with that context carries it, and concurrent invocations in
// the same process never see each other's id.
package observability

import (
	"context"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
)

type correlationKey struct{}

// WithCorrelationID returns a copy of ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id carried by ctx, or "" when none was set.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// EnsureCorrelationID keeps an id already present in ctx, otherwise adopts
// the Lambda request id, otherwise generates one.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}
	var id string
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		id = lc.AwsRequestID
	} else {
		id = uuid.New().String()
	}
	return WithCorrelationID(ctx, id), id
}
