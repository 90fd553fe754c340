package dynamodb

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	apperrors "brain2-assistant/internal/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Batch limits imposed by DynamoDB.
const (
	MaxBatchWriteItems = 25
)

// API is the subset of the DynamoDB client the repository needs.
// *dynamodb.Client satisfies it; callers that want retries or circuit
// breaking wrap it rather than the repository.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// ============================================================================
// HOOKS
// ============================================================================

// Hooks observe every repository operation. BeforeOperation may return a
// derived context that is passed to the store call and to AfterOperation.
type Hooks interface {
	BeforeOperation(ctx context.Context, operation string) context.Context
	AfterOperation(ctx context.Context, operation string, err error)
}

// NoOpHooks is the default Hooks implementation.
type NoOpHooks struct{}

func (NoOpHooks) BeforeOperation(ctx context.Context, _ string) context.Context { return ctx }
func (NoOpHooks) AfterOperation(context.Context, string, error)                 {}

// ============================================================================
// QUERY OPTIONS
// ============================================================================

type queryOptions struct {
	limit      int32
	descending bool
	skPrefix   string
	skBefore   string
}

// QueryOption adjusts a query.
type QueryOption func(*queryOptions)

// WithLimit stops the query after n decoded entities.
func WithLimit(n int32) QueryOption {
	return func(o *queryOptions) { o.limit = n }
}

// WithDescending returns results in descending sort key order.
func WithDescending() QueryOption {
	return func(o *queryOptions) { o.descending = true }
}

// WithSKPrefix restricts an index query to sort keys beginning with prefix.
func WithSKPrefix(prefix string) QueryOption {
	return func(o *queryOptions) { o.skPrefix = prefix }
}

// WithSKBefore restricts an index query to sort keys lexically lower than
// bound.
func WithSKBefore(bound string) QueryOption {
	return func(o *queryOptions) { o.skBefore = bound }
}

// Updates maps attribute names to their new values. A nil value removes the
// attribute.
type Updates map[string]any

// UnprocessedItemsError reports batch writes the store did not apply. The
// batch is idempotent, so the caller may resubmit it.
type UnprocessedItemsError struct {
	Count int
}

func (e *UnprocessedItemsError) Error() string {
	return fmt.Sprintf("batch write left %d unprocessed items", e.Count)
}

// ============================================================================
// REPOSITORY
// ============================================================================

// Repository provides single-table operations for one entity type.
type Repository[T any] struct {
	client    API
	tableName string
	indexName string
	codec     Codec[T]
	logger    *zap.Logger
	hooks     Hooks
}

// NewRepository creates a repository for the entity type handled by codec.
func NewRepository[T any](client API, tableName, indexName string, codec Codec[T], logger *zap.Logger) *Repository[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository[T]{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		codec:     codec,
		logger:    logger,
		hooks:     NoOpHooks{},
	}
}

// SetHooks replaces the operation hooks. A nil value is ignored.
func (r *Repository[T]) SetHooks(hooks Hooks) {
	if hooks != nil {
		r.hooks = hooks
	}
}

func (r *Repository[T]) entityType() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

func (r *Repository[T]) requireCodec() error {
	if r.codec == nil {
		return &apperrors.CodecMismatchError{Expected: r.entityType(), Reason: "no codec registered"}
	}
	return nil
}

// run wraps a store operation with the codec check and the hooks.
func (r *Repository[T]) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	if err := r.requireCodec(); err != nil {
		return err
	}
	ctx = r.hooks.BeforeOperation(ctx, operation)
	err := fn(ctx)
	r.hooks.AfterOperation(ctx, operation, err)
	return err
}

// Put writes the full record of entity, overwriting any record with the same
// key.
func (r *Repository[T]) Put(ctx context.Context, entity T) error {
	return r.run(ctx, "Put", func(ctx context.Context) error {
		item, err := r.codec.Encode(entity)
		if err != nil {
			return err
		}
		_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(r.tableName),
			Item:      item,
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", r.codec.EntityType(), err)
		}
		return nil
	})
}

// Get looks up one record. The boolean is false when no record exists.
func (r *Repository[T]) Get(ctx context.Context, pk, sk string) (T, bool, error) {
	var (
		entity T
		found  bool
	)
	err := r.run(ctx, "Get", func(ctx context.Context) error {
		out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(r.tableName),
			Key:       primaryKey(pk, sk),
		})
		if err != nil {
			return fmt.Errorf("get %s: %w", r.codec.EntityType(), err)
		}
		if len(out.Item) == 0 {
			return nil
		}
		entity, err = r.codec.Decode(out.Item)
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return entity, found, nil
}

// QueryPartition returns every entity of this type under pk in sort key
// order. Records of other types sharing the partition are skipped.
func (r *Repository[T]) QueryPartition(ctx context.Context, pk string, opts ...QueryOption) ([]T, error) {
	var result []T
	err := r.run(ctx, "QueryPartition", func(ctx context.Context) error {
		keyCond := expression.Key(AttrPK).Equal(expression.Value(pk))
		var err error
		result, err = r.query(ctx, "", keyCond, r.skipForeign, opts)
		return err
	})
	return result, err
}

// QueryPrefix returns the entities under pk whose sort key begins with
// prefix, using a native begins_with key condition.
func (r *Repository[T]) QueryPrefix(ctx context.Context, pk, prefix string, opts ...QueryOption) ([]T, error) {
	var result []T
	err := r.run(ctx, "QueryPrefix", func(ctx context.Context) error {
		keyCond := expression.Key(AttrPK).Equal(expression.Value(pk)).
			And(expression.Key(AttrSK).BeginsWith(prefix))
		var err error
		result, err = r.query(ctx, "", keyCond, r.decodeAll, opts)
		return err
	})
	return result, err
}

// QueryIndex queries the sparse secondary index by GSI1PK. Only entities
// written with a secondary key are visible to it.
func (r *Repository[T]) QueryIndex(ctx context.Context, gsiPK string, opts ...QueryOption) ([]T, error) {
	var result []T
	err := r.run(ctx, "QueryIndex", func(ctx context.Context) error {
		if r.indexName == "" {
			return fmt.Errorf("query %s index: no index configured", r.codec.EntityType())
		}
		o := applyOptions(opts)
		keyCond := expression.Key(AttrGSI1PK).Equal(expression.Value(gsiPK))
		switch {
		case o.skPrefix != "":
			keyCond = keyCond.And(expression.Key(AttrGSI1SK).BeginsWith(o.skPrefix))
		case o.skBefore != "":
			keyCond = keyCond.And(expression.Key(AttrGSI1SK).LessThan(expression.Value(o.skBefore)))
		}
		var err error
		result, err = r.query(ctx, r.indexName, keyCond, r.skipForeign, opts)
		return err
	})
	return result, err
}

// ScanByType fetches the whole partition and keeps the records whose type
// attribute equals typeTag. It reads every record under pk and is meant only
// for callers without a prefix or index access path.
func (r *Repository[T]) ScanByType(ctx context.Context, pk, typeTag string) ([]T, error) {
	var result []T
	err := r.run(ctx, "ScanByType", func(ctx context.Context) error {
		if typeTag != r.codec.EntityType() {
			return &apperrors.CodecMismatchError{Expected: r.codec.EntityType(), Actual: typeTag}
		}
		keyCond := expression.Key(AttrPK).Equal(expression.Value(pk))
		var err error
		result, err = r.query(ctx, "", keyCond, func(item Record) (T, bool, error) {
			var zero T
			if ExtractStringValue(item[AttrType]) != typeTag {
				return zero, false, nil
			}
			return r.decodeAll(item)
		}, nil)
		return err
	})
	return result, err
}

// Update applies a partial update to an existing record without reading it
// first. An empty update returns without calling the store. Key attributes
// cannot be updated.
func (r *Repository[T]) Update(ctx context.Context, pk, sk string, updates Updates) error {
	if len(updates) == 0 {
		return r.requireCodec()
	}
	return r.run(ctx, "Update", func(ctx context.Context) error {
		expr, err := r.buildUpdate(updates)
		if err != nil {
			return err
		}
		_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(r.tableName),
			Key:                       primaryKey(pk, sk),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		if apperrors.IsConditionFailed(err) {
			return &apperrors.NotFoundError{PK: pk, SK: sk}
		}
		if err != nil {
			return fmt.Errorf("update %s: %w", r.codec.EntityType(), err)
		}
		return nil
	})
}

func (r *Repository[T]) buildUpdate(updates Updates) (expression.Expression, error) {
	names := make([]string, 0, len(updates))
	for name := range updates {
		switch name {
		case AttrPK, AttrSK, AttrType, AttrTTL:
			return expression.Expression{}, apperrors.NewValidationError(r.codec.EntityType(), name, "cannot be updated")
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var update expression.UpdateBuilder
	for _, name := range names {
		if isNil(updates[name]) {
			update = update.Remove(expression.Name(name))
			continue
		}
		update = update.Set(expression.Name(name), expression.Value(updates[name]))
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(AttrSK))).
		Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("build %s update: %w", r.codec.EntityType(), err)
	}
	return expr, nil
}

// Delete removes one record. Deleting a missing record is not an error.
func (r *Repository[T]) Delete(ctx context.Context, pk, sk string) error {
	return r.run(ctx, "Delete", func(ctx context.Context) error {
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       primaryKey(pk, sk),
		})
		if err != nil {
			return fmt.Errorf("delete %s: %w", r.codec.EntityType(), err)
		}
		return nil
	})
}

// BatchPut writes entities in chunks of MaxBatchWriteItems. Every entity is
// encoded before the first write, so an invalid entity fails the call without
// partial writes. Duplicate keys keep the last entity.
func (r *Repository[T]) BatchPut(ctx context.Context, entities []T) error {
	if len(entities) == 0 {
		return r.requireCodec()
	}
	return r.run(ctx, "BatchPut", func(ctx context.Context) error {
		requests, err := r.writeRequests(entities)
		if err != nil {
			return err
		}

		unprocessed := 0
		for start := 0; start < len(requests); start += MaxBatchWriteItems {
			end := start + MaxBatchWriteItems
			if end > len(requests) {
				end = len(requests)
			}
			out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{
					r.tableName: requests[start:end],
				},
			})
			if err != nil {
				return fmt.Errorf("batch put %s: %w", r.codec.EntityType(), err)
			}
			if n := len(out.UnprocessedItems[r.tableName]); n > 0 {
				r.logger.Warn("Batch write returned unprocessed items",
					zap.String("entity_type", r.codec.EntityType()),
					zap.Int("unprocessed", n),
					zap.Int("chunk_size", end-start))
				unprocessed += n
			}
		}

		if unprocessed > 0 {
			return &UnprocessedItemsError{Count: unprocessed}
		}
		return nil
	})
}

func (r *Repository[T]) writeRequests(entities []T) ([]types.WriteRequest, error) {
	position := make(map[string]int, len(entities))
	requests := make([]types.WriteRequest, 0, len(entities))
	for _, entity := range entities {
		item, err := r.codec.Encode(entity)
		if err != nil {
			return nil, err
		}
		key := ExtractStringValue(item[AttrPK]) + "|" + ExtractStringValue(item[AttrSK])
		req := types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}
		if i, ok := position[key]; ok {
			requests[i] = req
			continue
		}
		position[key] = len(requests)
		requests = append(requests, req)
	}
	return requests, nil
}

// ============================================================================
// QUERY EXECUTION
// ============================================================================

// decodeFunc decodes one item; a false result drops the item.
type decodeFunc[T any] func(Record) (T, bool, error)

func (r *Repository[T]) decodeAll(item Record) (T, bool, error) {
	entity, err := r.codec.Decode(item)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return entity, true, nil
}

func (r *Repository[T]) skipForeign(item Record) (T, bool, error) {
	if tag := ExtractStringValue(item[AttrType]); tag != r.codec.EntityType() {
		r.logger.Debug("Skipping record of another type",
			zap.String("expected", r.codec.EntityType()),
			zap.String("actual", tag),
			zap.String("sk", ExtractStringValue(item[AttrSK])))
		var zero T
		return zero, false, nil
	}
	return r.decodeAll(item)
}

func (r *Repository[T]) query(
	ctx context.Context,
	indexName string,
	keyCond expression.KeyConditionBuilder,
	decode decodeFunc[T],
	opts []QueryOption,
) ([]T, error) {
	o := applyOptions(opts)

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", r.codec.EntityType(), err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!o.descending),
	}
	if indexName != "" {
		input.IndexName = aws.String(indexName)
	}

	var result []T
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", r.codec.EntityType(), err)
		}
		for _, item := range page.Items {
			entity, keep, err := decode(item)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
			result = append(result, entity)
			if o.limit > 0 && int32(len(result)) >= o.limit {
				return result, nil
			}
		}
	}
	return result, nil
}

func applyOptions(opts []QueryOption) queryOptions {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
