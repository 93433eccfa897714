package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeTable is an in-memory stand-in for the handful of DynamoDB calls
// the adapters make. It understands only the expressions they build.
type fakeTable struct {
	mu          sync.Mutex
	items       map[string]map[string]types.AttributeValue
	pageSize    int
	unprocessed int // batch calls that bounce their last request
	batchCalls  int
	queryCalls  int
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: make(map[string]map[string]types.AttributeValue)}
}

func str(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func keyOf(m map[string]types.AttributeValue) string {
	return str(m["PK"]) + "|" + str(m["SK"])
}

func (f *fakeTable) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++

	var pk string
	for _, v := range in.ExpressionAttributeValues {
		pk = str(v)
	}
	partition := "PK"
	if in.IndexName != nil {
		partition = "GSI1PK"
	}
	var keys []string
	for k, it := range f.items {
		if str(it[partition]) == pk {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if in.ExclusiveStartKey != nil {
		after := keyOf(in.ExclusiveStartKey)
		i := sort.SearchStrings(keys, after)
		if i < len(keys) && keys[i] == after {
			i++
		}
		keys = keys[i:]
	}

	out := &dynamodb.QueryOutput{}
	for i, k := range keys {
		if f.pageSize > 0 && i == f.pageSize {
			last := out.Items[len(out.Items)-1]
			out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
			break
		}
		out.Items = append(out.Items, f.items[k])
	}
	return out, nil
}

func (f *fakeTable) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, reqs := range in.RequestItems {
		if len(reqs) > batchSize {
			return nil, errors.New("ValidationException: too many items")
		}
		seen := make(map[string]bool)
		for i, req := range reqs {
			var key string
			if req.PutRequest != nil {
				key = keyOf(req.PutRequest.Item)
			} else {
				key = keyOf(req.DeleteRequest.Key)
			}
			if seen[key] {
				return nil, fmt.Errorf("ValidationException: duplicate key %s", key)
			}
			seen[key] = true

			if f.unprocessed > 0 && i == len(reqs)-1 {
				f.unprocessed--
				out.UnprocessedItems[table] = append(out.UnprocessedItems[table], req)
				continue
			}
			if req.PutRequest != nil {
				f.items[key] = req.PutRequest.Item
			} else {
				delete(f.items, key)
			}
		}
	}
	return out, nil
}

func (f *fakeTable) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := keyOf(in.Key)
	it, ok := f.items[key]
	if !ok {
		it = map[string]types.AttributeValue{"PK": in.Key["PK"], "SK": in.Key["SK"]}
		f.items[key] = it
	}
	n, _ := strconv.ParseInt(str(it["Value"]), 10, 64)
	n++
	it["Value"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{"Value": it["Value"]}}, nil
}

// PutItem evaluates the lock condition: free, or expired before the
// single numeric value in the expression.
func (f *fakeTable) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := keyOf(in.Item)
	if existing, ok := f.items[key]; ok && in.ConditionExpression != nil {
		var now int64
		for _, v := range in.ExpressionAttributeValues {
			if n, ok := v.(*types.AttributeValueMemberN); ok {
				now, _ = strconv.ParseInt(n.Value, 10, 64)
			}
		}
		expires, _ := strconv.ParseInt(str(existing["ExpiresAt"]), 10, 64)
		if expires >= now {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("held")}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem deletes only when the item's LockID is one of the values.
// Unconditional deletes always succeed.
func (f *fakeTable) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := keyOf(in.Key)
	if in.ConditionExpression == nil {
		delete(f.items, key)
		return &dynamodb.DeleteItemOutput{}, nil
	}
	existing, ok := f.items[key]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("gone")}
	}
	match := false
	for _, v := range in.ExpressionAttributeValues {
		if str(v) == str(existing["LockID"]) {
			match = true
		}
	}
	if !match {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("not ours")}
	}
	delete(f.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeTable) has(pk, sk string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[pk+"|"+sk]
	return ok
}
