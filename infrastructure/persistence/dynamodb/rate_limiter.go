package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// RateLimiter counts requests per key in fixed windows stored in the
// table, so every Lambda container shares the same budget. Counters
// expire through the TTL attribute an hour after their window.
type RateLimiter struct {
	client    API
	tableName string
	limit     int
	window    time.Duration
	now       func() time.Time
}

// NewRateLimiter allows limit requests per key and window
func NewRateLimiter(client API, tableName string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:    client,
		tableName: tableName,
		limit:     limit,
		window:    window,
		now:       time.Now,
	}
}

type rateEntry struct {
	Value int `dynamodbav:"Value"`
}

// Allow increments the key's counter for the current window. Storage
// errors fail open: the request is allowed and the error returned.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := r.now().Truncate(r.window)
	expiresAt := windowStart.Add(r.window).Add(time.Hour)

	update := expression.Add(expression.Name("Value"), expression.Value(1)).
		Set(expression.Name("EntityType"), expression.Value(entityRate)).
		Set(expression.Name("TTL"), expression.Value(expiresAt.Unix()))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return true, fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("RATELIMIT#%s", key)},
			"SK": &types.AttributeValueMemberS{Value: "WINDOW#" + strconv.FormatInt(windowStart.Unix(), 10)},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return true, mapError("rate limit", err)
	}

	var entry rateEntry
	if err := attributevalue.UnmarshalMap(out.Attributes, &entry); err != nil {
		return true, fmt.Errorf("failed to parse rate limit entry: %w", err)
	}
	return entry.Value <= r.limit, nil
}
