// Package dynamotest provides an in-memory stand-in for the DynamoDB API used
// by the repository. It understands the expressions produced by the
// aws-sdk-go-v2 expression builder for the key shapes of the single table.
package dynamotest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrPK     = "PK"
	attrSK     = "SK"
	attrGSI1PK = "GSI1PK"
	attrGSI1SK = "GSI1SK"
)

var (
	eqPattern     = regexp.MustCompile(`(#\w+)\s*=\s*(:\w+)`)
	ltPattern     = regexp.MustCompile(`(#\w+)\s*<\s*(:\w+)`)
	prefixPattern = regexp.MustCompile(`begins_with\s*\(\s*(#\w+)\s*,\s*(:\w+)\s*\)`)
	clausePattern = regexp.MustCompile(`\b(SET|REMOVE|ADD|DELETE)\s`)
	namePattern   = regexp.MustCompile(`#\w+`)
	existsPattern = regexp.MustCompile(`attribute_exists\s*\(\s*(#\w+)\s*\)`)
)

// Table is a concurrency-safe in-memory table.
type Table struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	calls map[string]int

	// PageSize limits the items returned per Query page. Zero means one page.
	PageSize int
	// Errors injects a failure for the named operation, e.g. "PutItem".
	Errors map[string]error
	// UnprocessedPerBatch makes every BatchWriteItem call report its last n
	// requests as unprocessed without applying them.
	UnprocessedPerBatch int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		items:  make(map[string]map[string]types.AttributeValue),
		calls:  make(map[string]int),
		Errors: make(map[string]error),
	}
}

// Calls returns how many times operation was invoked.
func (t *Table) Calls(operation string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[operation]
}

// Writes returns the number of write calls of any kind.
func (t *Table) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls["PutItem"] + t.calls["UpdateItem"] + t.calls["DeleteItem"] + t.calls["BatchWriteItem"]
}

// Len returns the number of stored records.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Item returns a copy of the stored record for pk and sk.
func (t *Table) Item(pk, sk string) (map[string]types.AttributeValue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[storageKey(pk, sk)]
	return clone(item), ok
}

// Seed stores a raw record, bypassing any codec.
func (t *Table) Seed(item map[string]types.AttributeValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[keyOf(item)] = clone(item)
}

func (t *Table) enter(operation string) error {
	t.calls[operation]++
	return t.Errors[operation]
}

func (t *Table) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("GetItem"); err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: clone(t.items[keyOf(in.Key)])}, nil
}

func (t *Table) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("PutItem"); err != nil {
		return nil, err
	}
	t.items[keyOf(in.Item)] = clone(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (t *Table) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("DeleteItem"); err != nil {
		return nil, err
	}
	delete(t.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (t *Table) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("UpdateItem"); err != nil {
		return nil, err
	}

	key := keyOf(in.Key)
	item, exists := t.items[key]
	if cond := aws.ToString(in.ConditionExpression); cond != "" {
		for _, m := range existsPattern.FindAllStringSubmatch(cond, -1) {
			name := in.ExpressionAttributeNames[m[1]]
			if _, ok := item[name]; !exists || !ok {
				return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
			}
		}
	}
	if !exists {
		item = clone(in.Key)
	}

	expr := aws.ToString(in.UpdateExpression)
	bounds := clausePattern.FindAllStringSubmatchIndex(expr, -1)
	for i, b := range bounds {
		end := len(expr)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		mode, body := expr[b[2]:b[3]], expr[b[1]:end]
		switch mode {
		case "SET":
			for _, m := range eqPattern.FindAllStringSubmatch(body, -1) {
				item[in.ExpressionAttributeNames[m[1]]] = in.ExpressionAttributeValues[m[2]]
			}
		case "REMOVE":
			for _, n := range namePattern.FindAllString(body, -1) {
				delete(item, in.ExpressionAttributeNames[n])
			}
		default:
			return nil, fmt.Errorf("dynamotest: unsupported update clause %s", mode)
		}
	}
	t.items[key] = item
	return &dynamodb.UpdateItemOutput{}, nil
}

func (t *Table) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("BatchWriteItem"); err != nil {
		return nil, err
	}

	unprocessed := make(map[string][]types.WriteRequest)
	for table, requests := range in.RequestItems {
		if len(requests) > 25 {
			return nil, fmt.Errorf("dynamodb: batch of %d exceeds 25 requests", len(requests))
		}
		applied := len(requests) - t.UnprocessedPerBatch
		if applied < 0 {
			applied = 0
		}
		for _, req := range requests[:applied] {
			switch {
			case req.PutRequest != nil:
				t.items[keyOf(req.PutRequest.Item)] = clone(req.PutRequest.Item)
			case req.DeleteRequest != nil:
				delete(t.items, keyOf(req.DeleteRequest.Key))
			}
		}
		if applied < len(requests) {
			unprocessed[table] = requests[applied:]
		}
	}
	return &dynamodb.BatchWriteItemOutput{UnprocessedItems: unprocessed}, nil
}

func (t *Table) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("Query"); err != nil {
		return nil, err
	}

	pkAttr, skAttr := attrPK, attrSK
	if aws.ToString(in.IndexName) != "" {
		pkAttr, skAttr = attrGSI1PK, attrGSI1SK
	}

	cond := aws.ToString(in.KeyConditionExpression)
	resolve := func(m []string) (string, string) {
		return in.ExpressionAttributeNames[m[1]], stringValue(in.ExpressionAttributeValues[m[2]])
	}

	var partition, prefix, before string
	for _, m := range eqPattern.FindAllStringSubmatch(cond, -1) {
		if name, v := resolve(m); name == pkAttr {
			partition = v
		}
	}
	if m := prefixPattern.FindStringSubmatch(cond); m != nil {
		_, prefix = resolve(m)
	}
	if m := ltPattern.FindStringSubmatch(cond); m != nil {
		_, before = resolve(m)
	}

	var matched []map[string]types.AttributeValue
	for _, item := range t.items {
		if stringValue(item[pkAttr]) != partition {
			continue
		}
		sk, ok := item[skAttr]
		if !ok {
			continue
		}
		v := stringValue(sk)
		if prefix != "" && !strings.HasPrefix(v, prefix) {
			continue
		}
		if before != "" && v >= before {
			continue
		}
		matched = append(matched, item)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := stringValue(matched[i][skAttr]), stringValue(matched[j][skAttr])
		if a != b {
			return a < b
		}
		return keyOf(matched[i]) < keyOf(matched[j])
	})
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	start := 0
	if len(in.ExclusiveStartKey) > 0 {
		last := keyOf(in.ExclusiveStartKey)
		for i, item := range matched {
			if keyOf(item) == last {
				start = i + 1
				break
			}
		}
	}
	end := len(matched)
	if t.PageSize > 0 && start+t.PageSize < end {
		end = start + t.PageSize
	}

	out := &dynamodb.QueryOutput{}
	for _, item := range matched[start:end] {
		out.Items = append(out.Items, clone(item))
	}
	out.Count = int32(len(out.Items))
	if end < len(matched) {
		last := matched[end-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{attrPK: last[attrPK], attrSK: last[attrSK]}
	}
	return out, nil
}

func storageKey(pk, sk string) string {
	return pk + "\x00" + sk
}

func keyOf(item map[string]types.AttributeValue) string {
	return storageKey(stringValue(item[attrPK]), stringValue(item[attrSK]))
}

func stringValue(v types.AttributeValue) string {
	if s, ok := v.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
