// Package main implements the EventBridge target that tells API Gateway
// WebSocket clients to reload a tree after it changed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	domainevents "github.com/nicobenz/flowpertoire/domain/events"
	"github.com/nicobenz/flowpertoire/infrastructure/config"
	"github.com/nicobenz/flowpertoire/infrastructure/di"
	"github.com/nicobenz/flowpertoire/infrastructure/messaging/apigateway"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/dynamodb"
)

var (
	notifier *apigateway.Notifier
	logger   *zap.Logger
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

	store := dynamodb.NewConnectionStore(
		awsdynamodb.NewFromConfig(awsCfg),
		cfg.Storage.ConnectionsTable,
		cfg.Storage.ConnectionsIndex,
	)
	posters := apigateway.NewPosterFactory(awsCfg)
	if fixed := cfg.WebSocket.ManagementAPIURL; fixed != "" {
		// custom domains post through one endpoint, not the stage URL
		base := posters
		posters = func(string) apigateway.Poster { return base(fixed) }
	}
	notifier = apigateway.NewNotifier(store, posters, logger)
}

func handler(ctx context.Context, event events.CloudWatchEvent) error {
	if event.Source != domainevents.SourceForest {
		logger.Debug("Ignoring event", zap.String("source", event.Source))
		return nil
	}

	var env domainevents.Envelope
	if err := json.Unmarshal(event.Detail, &env); err != nil {
		return fmt.Errorf("failed to parse event detail: %w", err)
	}

	res, err := notifier.Notify(ctx, env)
	if err != nil {
		return err
	}
	logger.Info("Tree change delivered",
		zap.String("eventType", event.DetailType),
		zap.Int64("userID", int64(env.UserID)),
		zap.Int("sent", res.Sent),
		zap.Int("removed", res.Removed),
	)
	return nil
}

func main() {
	lambda.Start(handler)
}
