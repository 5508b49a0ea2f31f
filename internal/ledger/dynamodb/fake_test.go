package dynamodb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDDB is an in-memory stand-in for the DynamoDB client. It implements
// just enough conditional-write semantics to cover the expressions the
// ledger issues.
type fakeDDB struct {
	mu    sync.Mutex
	items map[string]map[string]map[string]ddbtypes.AttributeValue // PK -> SK -> item
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[string]map[string]ddbtypes.AttributeValue)}
}

func itemKeyStrings(item map[string]ddbtypes.AttributeValue) (string, string) {
	pk := item["PK"].(*ddbtypes.AttributeValueMemberS).Value
	sk := item["SK"].(*ddbtypes.AttributeValueMemberS).Value
	return pk, sk
}

func (f *fakeDDB) get(pk, sk string) map[string]ddbtypes.AttributeValue {
	if row, ok := f.items[pk]; ok {
		return row[sk]
	}
	return nil
}

func (f *fakeDDB) put(item map[string]ddbtypes.AttributeValue) {
	pk, sk := itemKeyStrings(item)
	if _, ok := f.items[pk]; !ok {
		f.items[pk] = make(map[string]map[string]ddbtypes.AttributeValue)
	}
	f.items[pk][sk] = item
}

func strAttr(item map[string]ddbtypes.AttributeValue, name string) string {
	if a, ok := item[name].(*ddbtypes.AttributeValueMemberS); ok {
		return a.Value
	}
	return ""
}

func numAttr(item map[string]ddbtypes.AttributeValue, name string) string {
	if a, ok := item[name].(*ddbtypes.AttributeValueMemberN); ok {
		return a.Value
	}
	return ""
}

// checkCondition evaluates the condition expressions the ledger uses against
// an existing item (nil means absent).
func checkCondition(expr string, existing map[string]ddbtypes.AttributeValue, values map[string]ddbtypes.AttributeValue) bool {
	switch {
	case expr == "":
		return true
	case strings.Contains(expr, "attribute_not_exists(PK)"):
		if existing == nil {
			return true
		}
		if strings.Contains(expr, "outcome = :failed") {
			outcome := strAttr(existing, "outcome")
			return outcome == strAttr(values, ":failed") || outcome == strAttr(values, ":cancelled")
		}
		if strings.Contains(expr, "#ttl < :now") {
			// Numeric string compare is fine for same-width epochs.
			return numAttr(existing, "ttl") < numAttr(values, ":now")
		}
		return false
	case strings.Contains(expr, "#outcome = :pending"):
		return existing != nil && strAttr(existing, "outcome") == strAttr(values, ":pending")
	case strings.Contains(expr, "runId = :rid"):
		return existing != nil && strAttr(existing, "runId") == strAttr(values, ":rid")
	}
	return false
}

func strAttrFromValues(values map[string]ddbtypes.AttributeValue, key string) string {
	if a, ok := values[key].(*ddbtypes.AttributeValueMemberS); ok {
		return a.Value
	}
	return ""
}

func (f *fakeDDB) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, sk := itemKeyStrings(params.Key)
	return &dynamodb.GetItemOutput{Item: f.get(pk, sk)}, nil
}

func (f *fakeDDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk, sk := itemKeyStrings(params.Item)
	if !checkCondition(aws.ToString(params.ConditionExpression), f.get(pk, sk), params.ExpressionAttributeValues) {
		return nil, &ddbtypes.ConditionalCheckFailedException{}
	}
	f.put(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) UpdateItem(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk, sk := itemKeyStrings(params.Key)
	existing := f.get(pk, sk)
	if !checkCondition(aws.ToString(params.ConditionExpression), existing, params.ExpressionAttributeValues) {
		return nil, &ddbtypes.ConditionalCheckFailedException{}
	}
	if existing == nil {
		existing = map[string]ddbtypes.AttributeValue{"PK": params.Key["PK"], "SK": params.Key["SK"]}
	}
	values := params.ExpressionAttributeValues
	if v, ok := values[":data"]; ok {
		existing["data"] = v
	}
	if v, ok := values[":outcome"]; ok {
		existing["outcome"] = v
	}
	if v, ok := values[":ttl"]; ok {
		existing["ttl"] = v
	}
	f.put(existing)
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDDB) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, sk := itemKeyStrings(params.Key)
	if row, ok := f.items[pk]; ok {
		delete(row, sk)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk := strAttrFromValues(params.ExpressionAttributeValues, ":pk")
	prefix := strAttrFromValues(params.ExpressionAttributeValues, ":prefix")

	var sks []string
	for sk := range f.items[pk] {
		if strings.HasPrefix(sk, prefix) {
			sks = append(sks, sk)
		}
	}
	sort.Strings(sks)
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(sks)-1; i < j; i, j = i+1, j-1 {
			sks[i], sks[j] = sks[j], sks[i]
		}
	}
	limit := len(sks)
	if params.Limit != nil && int(*params.Limit) < limit {
		limit = int(*params.Limit)
	}

	out := &dynamodb.QueryOutput{}
	for _, sk := range sks[:limit] {
		out.Items = append(out.Items, f.items[pk][sk])
	}
	return out, nil
}

func (f *fakeDDB) TransactWriteItems(_ context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// All conditions must hold before any write lands.
	for _, item := range params.TransactItems {
		if item.Put == nil {
			continue
		}
		pk, sk := itemKeyStrings(item.Put.Item)
		if !checkCondition(aws.ToString(item.Put.ConditionExpression), f.get(pk, sk), item.Put.ExpressionAttributeValues) {
			code := "ConditionalCheckFailed"
			return nil, &ddbtypes.TransactionCanceledException{
				CancellationReasons: []ddbtypes.CancellationReason{{Code: &code}},
			}
		}
	}
	for _, item := range params.TransactItems {
		if item.Put != nil {
			f.put(item.Put.Item)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDDB) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, nil
}

func (f *fakeDDB) CreateTable(_ context.Context, _ *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDDB) UpdateTimeToLive(_ context.Context, _ *dynamodb.UpdateTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}
