// Package main implements the API Gateway WebSocket $connect and
// $disconnect handler. It records which user owns each connection so
// tree events can be fanned out by cmd/ws-notify.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/infrastructure/config"
	"github.com/nicobenz/flowpertoire/infrastructure/di"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/dynamodb"
	"github.com/nicobenz/flowpertoire/pkg/common"
)

var (
	store       *dynamodb.ConnectionStore
	logger      *zap.Logger
	allowHeader bool
)

func init() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err = di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	store = dynamodb.NewConnectionStore(
		awsdynamodb.NewFromConfig(awsCfg),
		cfg.Storage.ConnectionsTable,
		cfg.Storage.ConnectionsIndex,
	)
	allowHeader = cfg.Server.AllowUserHeader
}

func respond(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: status, Body: body}
}

// userID takes the user from the userId query parameter or the
// X-User-ID header when allowed, else the default user
func userID(req events.APIGatewayWebsocketProxyRequest) (valueobjects.UserID, error) {
	if !allowHeader {
		return valueobjects.DefaultUserID, nil
	}
	raw := req.QueryStringParameters["userId"]
	if raw == "" {
		raw = req.Headers[common.HeaderUserID]
	}
	if raw == "" {
		return valueobjects.DefaultUserID, nil
	}
	return valueobjects.ParseUserID(raw)
}

func handler(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID

	switch req.RequestContext.EventType {
	case "DISCONNECT":
		if err := store.Delete(ctx, connID); err != nil {
			logger.Error("Failed to remove connection", zap.String("connectionID", connID), zap.Error(err))
		}
		return respond(http.StatusOK, ""), nil

	case "CONNECT":
		uid, err := userID(req)
		if err != nil {
			logger.Warn("Rejected connection", zap.String("connectionID", connID), zap.Error(err))
			return respond(http.StatusBadRequest, `{"message":"invalid user id"}`), nil
		}

		conn := dynamodb.Connection{
			ConnectionID: connID,
			UserID:       uid,
			Endpoint:     fmt.Sprintf("%s/%s", req.RequestContext.DomainName, req.RequestContext.Stage),
			ConnectedAt:  time.Now(),
		}
		if err := store.Put(ctx, conn); err != nil {
			logger.Error("Failed to store connection", zap.String("connectionID", connID), zap.Error(err))
			return respond(http.StatusInternalServerError, `{"message":"internal server error"}`), nil
		}

		logger.Info("Connection established",
			zap.String("connectionID", connID),
			zap.Int64("userID", int64(uid)),
		)
		return respond(http.StatusOK, ""), nil
	}

	return respond(http.StatusBadRequest, `{"message":"unsupported route"}`), nil
}

func main() {
	lambda.Start(handler)
}
