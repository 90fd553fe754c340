// Package dynamodb implements the single-table storage model: every entity of
// a user lives under the partition key user_id and is distinguished by a
// type-prefixed sort key.
//
// Key layout:
//
//	Message   PK=<user_id>  SK=message#<timestamp>#<message_id>
//	Task      PK=<user_id>  SK=task#<task_id>
//	Todo      PK=<user_id>  SK=todo#<todo_id>
//	Reminder  PK=<user_id>  SK=reminder#<reminder_id>
//
// Message timestamps use the fixed-width UTC layout domain.TimestampLayout, so
// the lexical order of message sort keys is their chronological order.
package dynamodb

import (
	"strings"

	"brain2-assistant/internal/domain"
	apperrors "brain2-assistant/internal/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names shared by every record.
const (
	AttrPK     = "PK"
	AttrSK     = "SK"
	AttrType   = "type"
	AttrGSI1PK = "GSI1PK"
	AttrGSI1SK = "GSI1SK"
	AttrTTL    = "ttl"
)

// Entity type tags. The same word is used as the sort key prefix.
const (
	TypeMessage  = "message"
	TypeTask     = "task"
	TypeTodo     = "todo"
	TypeReminder = "reminder"
)

// Sort key prefixes for begins_with queries.
const (
	PrefixMessage  = TypeMessage + domain.KeySeparator
	PrefixTask     = TypeTask + domain.KeySeparator
	PrefixTodo     = TypeTodo + domain.KeySeparator
	PrefixReminder = TypeReminder + domain.KeySeparator
)

// UserPK is the partition key of every record owned by userID.
func UserPK(userID string) string {
	return userID
}

// MessageSK builds message#<timestamp>#<message_id>.
func MessageSK(timestamp, messageID string) string {
	return PrefixMessage + timestamp + domain.KeySeparator + messageID
}

// TaskSK builds task#<task_id>.
func TaskSK(taskID string) string {
	return PrefixTask + taskID
}

// TodoSK builds todo#<todo_id>.
func TodoSK(todoID string) string {
	return PrefixTodo + todoID
}

// ReminderSK builds reminder#<reminder_id>.
func ReminderSK(reminderID string) string {
	return PrefixReminder + reminderID
}

// splitSortKey checks that sk belongs to entityType and has exactly the
// expected number of non-empty segments, returning the segments after the
// prefix.
func splitSortKey(entityType, sk string, segments int) ([]string, error) {
	parts := strings.Split(sk, domain.KeySeparator)
	if len(parts) != segments || parts[0] != entityType {
		return nil, &apperrors.MalformedKeyError{
			EntityType: entityType,
			Key:        sk,
			Expected:   segments,
			Actual:     len(parts),
		}
	}
	for _, p := range parts[1:] {
		if p == "" {
			return nil, &apperrors.MalformedKeyError{EntityType: entityType, Key: sk}
		}
	}
	return parts[1:], nil
}

// StringAttr creates a DynamoDB string attribute value.
func StringAttr(value string) *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: value}
}

// ExtractStringValue returns the string held by attr, or "" for any other
// attribute kind.
func ExtractStringValue(attr types.AttributeValue) string {
	if v, ok := attr.(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// primaryKey builds the GetItem/UpdateItem/DeleteItem key map.
func primaryKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: StringAttr(pk),
		AttrSK: StringAttr(sk),
	}
}
