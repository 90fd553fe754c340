package dynamodb

import (
	"fmt"

	"brain2-assistant/internal/domain"
	apperrors "brain2-assistant/internal/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Record is the generic key-value shape of a stored entity.
type Record = map[string]types.AttributeValue

// Codec maps one entity type to and from a Record. Implementations are pure:
// they never touch the store.
type Codec[T any] interface {
	// EntityType is the value written to the type attribute.
	EntityType() string
	// Prefix is the sort key prefix shared by every record of the type.
	Prefix() string
	// Key returns the partition and sort key of an entity.
	Key(entity T) (pk, sk string)
	// Encode produces the full record, keys included.
	Encode(entity T) (Record, error)
	// Decode rebuilds an entity from a record of this type.
	Decode(record Record) (T, error)
}

// encodeItem marshals the attribute body of an entity and adds the derived
// key attributes. The secondary index pair is written only when set so that
// unindexed entities stay out of the sparse index.
func encodeItem(body any, entityType, pk, sk string, index *domain.SecondaryKey) (Record, error) {
	record, err := attributevalue.MarshalMap(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", entityType, err)
	}

	record[AttrPK] = StringAttr(pk)
	record[AttrSK] = StringAttr(sk)
	record[AttrType] = StringAttr(entityType)

	if index != nil && index.PK != "" {
		record[AttrGSI1PK] = StringAttr(index.PK)
		if index.SK != "" {
			record[AttrGSI1SK] = StringAttr(index.SK)
		}
	}
	return record, nil
}

// decodedKeys are the parts of a record every codec needs before reading the
// attribute body.
type decodedKeys struct {
	userID   string
	segments []string
	index    *domain.SecondaryKey
}

// decodeKeys validates the type tag and sort key shape of record and extracts
// the identifiers they carry.
func decodeKeys(record Record, entityType string, segments int) (decodedKeys, error) {
	if tag, ok := record[AttrType]; ok {
		if actual := ExtractStringValue(tag); actual != entityType {
			return decodedKeys{}, &apperrors.CodecMismatchError{Expected: entityType, Actual: actual}
		}
	}

	pk := ExtractStringValue(record[AttrPK])
	if pk == "" {
		return decodedKeys{}, &apperrors.MalformedKeyError{EntityType: entityType, Key: pk}
	}

	parts, err := splitSortKey(entityType, ExtractStringValue(record[AttrSK]), segments)
	if err != nil {
		return decodedKeys{}, err
	}

	keys := decodedKeys{userID: pk, segments: parts}
	if gsiPK := ExtractStringValue(record[AttrGSI1PK]); gsiPK != "" {
		keys.index = &domain.SecondaryKey{PK: gsiPK, SK: ExtractStringValue(record[AttrGSI1SK])}
	}
	return keys, nil
}

func decodeBody(record Record, entityType string, out any) error {
	if err := attributevalue.UnmarshalMap(record, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", entityType, err)
	}
	return nil
}
