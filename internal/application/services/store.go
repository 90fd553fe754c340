// Package services contains the application services of the assistant. They
// orchestrate domain entities, the single-table store, the job queue and the
// agent; business rules live in the domain package.
package services

import (
	"context"
	"time"

	"brain2-assistant/internal/domain"
	dynamo "brain2-assistant/internal/infrastructure/persistence/dynamodb"
)

// Store is the persistence surface the services use for one entity type.
// *dynamodb.Repository[T] satisfies it.
type Store[T any] interface {
	Put(ctx context.Context, entity T) error
	Get(ctx context.Context, pk, sk string) (T, bool, error)
	QueryPrefix(ctx context.Context, pk, prefix string, opts ...dynamo.QueryOption) ([]T, error)
	QueryIndex(ctx context.Context, gsiPK string, opts ...dynamo.QueryOption) ([]T, error)
	Update(ctx context.Context, pk, sk string, updates dynamo.Updates) error
	Delete(ctx context.Context, pk, sk string) error
	BatchPut(ctx context.Context, entities []T) error
}

var (
	_ Store[domain.Message]  = (*dynamo.Repository[domain.Message])(nil)
	_ Store[domain.Task]     = (*dynamo.Repository[domain.Task])(nil)
	_ Store[domain.Todo]     = (*dynamo.Repository[domain.Todo])(nil)
	_ Store[domain.Reminder] = (*dynamo.Repository[domain.Reminder])(nil)
)

// JobQueue hands processing jobs to the asynchronous processor.
type JobQueue interface {
	Enqueue(ctx context.Context, job domain.ProcessingJob) error
}

// Archiver keeps the raw inbound payload of a message and returns where it was
// stored.
type Archiver interface {
	Archive(ctx context.Context, userID, messageID string, raw []byte, at time.Time) (string, error)
}
