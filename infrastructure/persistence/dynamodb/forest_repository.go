package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"go.uber.org/zap"
)

// DynamoDB limits a BatchWriteItem call to 25 requests
const batchSize = 25

// API is the subset of the DynamoDB client the adapters use
type API interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ForestRepository stores a user's forest in one partition of a single
// table: PK=USER#<id>, SK=NODE#, EDGE#, SKILL# or GROUP#.
type ForestRepository struct {
	client     API
	tableName  string
	logger     *zap.Logger
	maxRetries int
	backoff    time.Duration
}

// NewForestRepository creates a DynamoDB backed forest repository
func NewForestRepository(client API, tableName string, logger *zap.Logger) *ForestRepository {
	return &ForestRepository{
		client:     client,
		tableName:  tableName,
		logger:     logger,
		maxRetries: 5,
		backoff:    50 * time.Millisecond,
	}
}

// NextID increments the sequence item atomically and returns the new value
func (r *ForestRepository) NextID(ctx context.Context, seq aggregates.Sequence) (int64, error) {
	update := expression.Add(expression.Name("Value"), expression.Value(1)).
		Set(expression.Name("EntityType"), expression.Value(entitySeq))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: seqPK(seq)},
			"SK": &types.AttributeValueMemberS{Value: "SEQ"},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, mapError("next id", err)
	}

	v, ok := out.Attributes["Value"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("sequence %s returned no value", seq)
	}
	return strconv.ParseInt(v.Value, 10, 64)
}

// Load queries the user's partition page by page
func (r *ForestRepository) Load(ctx context.Context, userID valueobjects.UserID) (*aggregates.Forest, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(userPK(userID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var (
		nodes  []entities.Node
		edges  []entities.Edge
		skills []entities.Skill
		groups []entities.Group
		start  map[string]types.AttributeValue
	)
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, mapError("load forest", err)
		}

		for _, raw := range out.Items {
			var it item
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				r.logger.Warn("Failed to unmarshal item", zap.Error(err))
				continue
			}
			switch it.EntityType {
			case entityNode:
				n, err := it.node()
				if err != nil {
					r.logger.Warn("Skipping malformed node", zap.Int64("nodeID", it.NodeID), zap.Error(err))
					continue
				}
				nodes = append(nodes, n)
			case entityEdge:
				edges = append(edges, it.edge())
			case entitySkill:
				skills = append(skills, it.skill())
			case entityGroup:
				groups = append(groups, it.group())
			}
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}

	owned := make(map[valueobjects.NodeID]bool, len(nodes))
	for _, n := range nodes {
		owned[n.ID] = true
	}
	internal := edges[:0]
	for _, e := range edges {
		if owned[e.ParentID] && owned[e.ChildID] {
			internal = append(internal, e)
		}
	}

	r.logger.Debug("Loaded forest from DynamoDB",
		zap.String("userID", userID.String()),
		zap.Int("nodeCount", len(nodes)),
		zap.Int("edgeCount", len(internal)),
	)
	return aggregates.ReconstructForest(userID, nodes, internal, skills, groups), nil
}

// Save writes the pending changes in batches of 25. Several changes to
// the same row collapse into the last one, since a batch may not touch
// a key twice. Batches are not atomic with each other.
func (r *ForestRepository) Save(ctx context.Context, forest *aggregates.Forest) error {
	requests, err := r.writeRequests(forest)
	if err != nil {
		return err
	}

	for i := 0; i < len(requests); i += batchSize {
		end := i + batchSize
		if end > len(requests) {
			end = len(requests)
		}
		if err := r.writeBatch(ctx, requests[i:end]); err != nil {
			return fmt.Errorf("batch write failed for changes %d-%d: %w", i, end-1, err)
		}
	}

	r.logger.Debug("Saved forest to DynamoDB",
		zap.String("userID", forest.UserID().String()),
		zap.Int("writes", len(requests)),
	)
	forest.MarkCommitted()
	return nil
}

func (r *ForestRepository) writeRequests(forest *aggregates.Forest) ([]types.WriteRequest, error) {
	var order []string
	latest := make(map[string]types.WriteRequest)

	for _, c := range forest.Changes() {
		it, ok := changeItem(forest.UserID(), c)
		if !ok {
			continue
		}
		key := it.PK + "|" + it.SK

		var req types.WriteRequest
		if c.Op == aggregates.OpDelete {
			req.DeleteRequest = &types.DeleteRequest{Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: it.PK},
				"SK": &types.AttributeValueMemberS{Value: it.SK},
			}}
		} else {
			av, err := attributevalue.MarshalMap(it)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal %s: %w", it.SK, err)
			}
			req.PutRequest = &types.PutRequest{Item: av}
		}

		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = req
	}

	out := make([]types.WriteRequest, 0, len(order))
	for _, key := range order {
		out = append(out, latest[key])
	}
	return out, nil
}

// writeBatch retries unprocessed items with exponential backoff
func (r *ForestRepository) writeBatch(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.tableName: requests}
	delay := r.backoff

	for attempt := 0; ; attempt++ {
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return mapError("batch write", err)
		}
		if len(out.UnprocessedItems[r.tableName]) == 0 {
			return nil
		}
		if attempt >= r.maxRetries {
			return pkgerrors.ErrStorageUnavailable(
				fmt.Errorf("%d writes unprocessed after %d retries", len(out.UnprocessedItems[r.tableName]), attempt))
		}

		pending = out.UnprocessedItems
		r.logger.Debug("Retrying unprocessed writes",
			zap.Int("count", len(pending[r.tableName])),
			zap.Int("attempt", attempt+1),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// mapError translates throttling and service errors into storage errors.
// Context errors pass through untouched.
func mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var throughput *types.ProvisionedThroughputExceededException
	var limit *types.RequestLimitExceeded
	if errors.As(err, &throughput) || errors.As(err, &limit) {
		return pkgerrors.ErrStorageUnavailable(err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer {
		return pkgerrors.ErrStorageUnavailable(err)
	}
	return pkgerrors.NewDatabaseError(op, err)
}
