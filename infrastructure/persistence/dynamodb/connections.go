package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

const (
	entityConnection = "CONNECTION"
	connectionTTL    = 24 * time.Hour
)

// Connection is an API Gateway WebSocket connection owned by a user
type Connection struct {
	ConnectionID string
	UserID       valueobjects.UserID
	Endpoint     string
	ConnectedAt  time.Time
}

type connectionItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	GSI1PK       string `dynamodbav:"GSI1PK"`
	GSI1SK       string `dynamodbav:"GSI1SK"`
	EntityType   string `dynamodbav:"EntityType"`
	ConnectionID string `dynamodbav:"ConnectionID"`
	UserID       int64  `dynamodbav:"UserID"`
	Endpoint     string `dynamodbav:"Endpoint"`
	ConnectedAt  string `dynamodbav:"ConnectedAt"`
	TTL          int64  `dynamodbav:"TTL"`
}

func connectionPK(id string) string { return "CONNECTION#" + id }

// ConnectionStore keeps connection records keyed PK=CONNECTION#<id>,
// SK=METADATA with GSI1PK=USER#<uid> for fan-out.
type ConnectionStore struct {
	client    API
	tableName string
	indexName string
}

// NewConnectionStore creates a store over the connections table
func NewConnectionStore(client API, tableName, indexName string) *ConnectionStore {
	return &ConnectionStore{client: client, tableName: tableName, indexName: indexName}
}

// Put records a connection. Records expire a day after they are written.
func (s *ConnectionStore) Put(ctx context.Context, conn Connection) error {
	av, err := attributevalue.MarshalMap(connectionItem{
		PK:           connectionPK(conn.ConnectionID),
		SK:           "METADATA",
		GSI1PK:       userPK(conn.UserID),
		GSI1SK:       connectionPK(conn.ConnectionID),
		EntityType:   entityConnection,
		ConnectionID: conn.ConnectionID,
		UserID:       int64(conn.UserID),
		Endpoint:     conn.Endpoint,
		ConnectedAt:  conn.ConnectedAt.UTC().Format(time.RFC3339),
		TTL:          conn.ConnectedAt.Add(connectionTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return mapError("put connection", err)
	}
	return nil
}

// Delete removes a connection record. Deleting a missing record is not an error.
func (s *ConnectionStore) Delete(ctx context.Context, connectionID string) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": connectionPK(connectionID),
		"SK": "METADATA",
	})
	if err != nil {
		return err
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       key,
	})
	if err != nil {
		return mapError("delete connection", err)
	}
	return nil
}

// ForUser lists the user's open connections through the user index
func (s *ConnectionStore) ForUser(ctx context.Context, userID valueobjects.UserID) ([]Connection, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(userPK(userID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var conns []Connection
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError("list connections", err)
		}
		var items []connectionItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connections: %w", err)
		}
		for _, it := range items {
			connectedAt, _ := time.Parse(time.RFC3339, it.ConnectedAt)
			conns = append(conns, Connection{
				ConnectionID: it.ConnectionID,
				UserID:       valueobjects.UserID(it.UserID),
				Endpoint:     it.Endpoint,
				ConnectedAt:  connectedAt,
			})
		}
	}
	return conns, nil
}
