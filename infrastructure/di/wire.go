//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/infrastructure/config"
	"github.com/nicobenz/flowpertoire/infrastructure/layout/force"
)

// AWSSet provides the AWS SDK clients
var AWSSet = wire.NewSet(
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
)

// ObservabilitySet provides logging, metrics and tracing
var ObservabilitySet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideCloudWatchSink,
	ProvideTracer,
)

// ApplicationSet provides storage, buses and live sessions
var ApplicationSet = wire.NewSet(
	ProvideStorage,
	ProvideForestRepository,
	ProvideWriteLocker,
	ProvideRateLimiter,
	ProvideCache,
	wire.Bind(new(ports.Cache), new(*InMemoryCache)),
	ProvideHub,
	ProvideDispatcher,
	ProvideForestWriter,
	ProvideCommandBus,
	ProvideTreeReader,
	ProvideQueryBus,
	ProvideLayoutProvider,
	wire.Bind(new(ports.LayoutProvider), new(*force.Provider)),
	ProvideSessionOptions,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	AWSSet,
	ObservabilitySet,
	ApplicationSet,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
