package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"go.uber.org/zap"
)

// DistributedLock serialises forest writes across processes with
// conditional writes on a LOCK#forest#<user> item. Expired locks may be
// taken over; the TTL attribute lets DynamoDB clean them up.
type DistributedLock struct {
	client    API
	tableName string
	owner     string
	lease     time.Duration
	wait      time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewDistributedLock creates a lock client. lease bounds how long a
// crashed writer can block others; wait bounds how long Lock retries.
func NewDistributedLock(client API, tableName string, lease, wait time.Duration, logger *zap.Logger) *DistributedLock {
	return &DistributedLock{
		client:    client,
		tableName: tableName,
		owner:     uuid.NewString(),
		lease:     lease,
		wait:      wait,
		logger:    logger,
		now:       time.Now,
	}
}

func lockKey(userID valueobjects.UserID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("LOCK#forest#%d", userID)},
		"SK": &types.AttributeValueMemberS{Value: "LOCK"},
	}
}

// Lock retries with growing intervals until the lock is acquired, the
// wait elapses or ctx ends.
func (dl *DistributedLock) Lock(ctx context.Context, userID valueobjects.UserID) (func(), error) {
	deadline := dl.now().Add(dl.wait)
	retryInterval := 25 * time.Millisecond

	for {
		lockID, err := dl.acquire(ctx, userID)
		if err == nil {
			return func() { dl.release(userID, lockID) }, nil
		}
		if !errors.Is(err, errLockHeld) {
			return nil, err
		}
		if !dl.now().Before(deadline) {
			return nil, pkgerrors.ErrConcurrentWrite(int64(userID))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
			if retryInterval < time.Second {
				retryInterval = time.Duration(float64(retryInterval) * 1.5)
			}
		}
	}
}

var errLockHeld = errors.New("lock already held")

func (dl *DistributedLock) acquire(ctx context.Context, userID valueobjects.UserID) (string, error) {
	now := dl.now()
	expiresAt := now.Add(dl.lease)
	lockID := uuid.NewString()

	cond := expression.AttributeNotExists(expression.Name("PK")).
		Or(expression.Name("ExpiresAt").LessThan(expression.Value(now.UnixMilli())))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return "", fmt.Errorf("failed to build expression: %w", err)
	}

	item := lockKey(userID)
	item["EntityType"] = &types.AttributeValueMemberS{Value: entityLock}
	item["LockID"] = &types.AttributeValueMemberS{Value: lockID}
	item["Owner"] = &types.AttributeValueMemberS{Value: dl.owner}
	item["ExpiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.UnixMilli(), 10)}
	item["TTL"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.Unix(), 10)}

	_, err = dl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(dl.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return "", errLockHeld
		}
		return "", mapError("acquire lock", err)
	}

	dl.logger.Debug("Lock acquired",
		zap.String("userID", userID.String()),
		zap.String("lockID", lockID),
		zap.Duration("lease", dl.lease),
	)
	return lockID, nil
}

// release deletes the lock only if it is still ours. It runs on a fresh
// context so a cancelled request does not leave the lock behind.
func (dl *DistributedLock) release(userID valueobjects.UserID, lockID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cond := expression.Name("LockID").Equal(expression.Value(lockID)).
		And(expression.Name("Owner").Equal(expression.Value(dl.owner)))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		dl.logger.Error("Failed to build release expression", zap.Error(err))
		return
	}

	_, err = dl.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(dl.tableName),
		Key:                       lockKey(userID),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			dl.logger.Warn("Lock already released or taken over",
				zap.String("userID", userID.String()),
				zap.String("lockID", lockID),
			)
			return
		}
		dl.logger.Error("Failed to release lock",
			zap.String("userID", userID.String()),
			zap.Error(err),
		)
	}
}
