package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nicobenz/flowpertoire/application/commands/bus"
	commandhandlers "github.com/nicobenz/flowpertoire/application/commands/handlers"
	"github.com/nicobenz/flowpertoire/application/ports"
	querybus "github.com/nicobenz/flowpertoire/application/queries/bus"
	queryhandlers "github.com/nicobenz/flowpertoire/application/queries/handlers"
	"github.com/nicobenz/flowpertoire/domain/core/aggregation"
	"github.com/nicobenz/flowpertoire/domain/projection"
	"github.com/nicobenz/flowpertoire/infrastructure/config"
	"github.com/nicobenz/flowpertoire/infrastructure/layout/force"
	"github.com/nicobenz/flowpertoire/infrastructure/messaging"
	"github.com/nicobenz/flowpertoire/infrastructure/messaging/eventbridge"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/decorators"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/dynamodb"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/memory"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/sqlite"
	"github.com/nicobenz/flowpertoire/interfaces/websocket"
	"github.com/nicobenz/flowpertoire/pkg/observability"
	"github.com/nicobenz/flowpertoire/pkg/ratelimit"
)

const serviceName = "flowpertoire"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName), zap.String("environment", cfg.Environment)), nil
}

// ProvideAWSConfig creates AWS configuration. Loading does not contact
// AWS, so local drivers pay nothing for it.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Storage.AWSRegion),
	)
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.Observability.TracingBackend == observability.BackendXRay {
		awsv2.AWSV2Instrumentor(&awsCfg.APIOptions)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector(serviceName)
}

// ProvideCloudWatchSink creates the business metrics sink. Outside
// Lambda the sink drops everything.
func ProvideCloudWatchSink(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.CloudWatchSink {
	namespace := fmt.Sprintf("%s/%s", cfg.Observability.CloudWatchNamespace, cfg.Environment)
	if !cfg.IsLambda {
		return observability.NewCloudWatchSink(namespace, nil, logger)
	}
	return observability.NewCloudWatchSink(namespace, client, logger)
}

// ProvideTracer creates the configured tracer. The cleanup flushes spans.
func ProvideTracer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (observability.Tracer, func(), error) {
	tracer, err := observability.NewTracer(ctx, observability.TracingConfig{
		Backend:     cfg.Observability.TracingBackend,
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Observability.OTLPEndpoint,
		SampleRate:  cfg.Observability.TraceSampleRate,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tracer, cleanup, nil
}

// Storage is the selected forest store with its readiness probe
type Storage struct {
	Driver     string
	Repository ports.ForestRepository
	Ready      func(ctx context.Context) error
}

// ProvideStorage opens the configured driver and decorates it
func ProvideStorage(
	cfg *config.Config,
	client *awsdynamodb.Client,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*Storage, func(), error) {
	storage := &Storage{
		Driver: cfg.Storage.Driver,
		Ready:  func(context.Context) error { return nil },
	}
	cleanup := func() {}

	var base ports.ForestRepository
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		base = memory.NewForestRepository()
	case config.DriverSQLite:
		repo, err := sqlite.Open(cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		base = repo
		storage.Ready = repo.Ping
		cleanup = func() {
			if err := repo.Close(); err != nil {
				logger.Warn("Failed to close sqlite store", zap.Error(err))
			}
		}
	case config.DriverDynamoDB:
		base = dynamodb.NewForestRepository(client, cfg.Storage.DynamoDBTable, logger)
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	chain := decorators.ChainConfig{
		Metrics: metrics,
		Logging: !cfg.IsProduction(),
	}
	if cfg.Storage.CircuitBreaker && cfg.Storage.Driver != config.DriverMemory {
		cb := decorators.DefaultCircuitBreakerConfig("forest-" + cfg.Storage.Driver)
		chain.CircuitBreaker = &cb
	}
	storage.Repository = decorators.Decorate(base, chain, logger)

	logger.Info("Storage ready", zap.String("driver", cfg.Storage.Driver))
	return storage, cleanup, nil
}

// ProvideForestRepository exposes the decorated repository
func ProvideForestRepository(s *Storage) ports.ForestRepository {
	return s.Repository
}

// ProvideWriteLocker returns the cross-process write lock, or nil when
// one process owns the store
func ProvideWriteLocker(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.WriteLocker {
	if cfg.Storage.Driver != config.DriverDynamoDB || !cfg.Storage.DistributedLock {
		return nil
	}
	return dynamodb.NewDistributedLock(client, cfg.Storage.DynamoDBTable, cfg.Storage.LockLease, cfg.Storage.LockWait, logger)
}

// ProvideRateLimiter returns the per-IP request limiter, or nil when
// limiting is off. Lambda containers share a DynamoDB counter; a
// long-running server keeps token buckets in memory.
func ProvideRateLimiter(cfg *config.Config, client *awsdynamodb.Client) (ratelimit.Limiter, func()) {
	perMinute := cfg.Server.RateLimitPerMinute
	if perMinute == 0 {
		return nil, func() {}
	}
	if cfg.IsLambda && cfg.Storage.Driver == config.DriverDynamoDB {
		return dynamodb.NewRateLimiter(client, cfg.Storage.DynamoDBTable, perMinute, time.Minute), func() {}
	}

	limiter := ratelimit.NewTokenBucketLimiter(perMinute)
	ctx, cancel := context.WithCancel(context.Background())
	go limiter.Run(ctx)
	return limiter, cancel
}

// ProvideCache creates the query cache
func ProvideCache(metrics *observability.Collector) (*InMemoryCache, func()) {
	cache := NewInMemoryCache(metrics)
	return cache, cache.Close
}

// ProvideHub creates the live session hub and runs it
func ProvideHub(cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) (*websocket.Hub, func()) {
	hub := websocket.NewHub(cfg.Layout, metrics, logger)
	go hub.Run()
	return hub, hub.Stop
}

// eventMetrics counts published events on every sink
type eventMetrics []messaging.EventMetrics

func (m eventMetrics) EventPublished(eventType string) {
	for _, sink := range m {
		sink.EventPublished(eventType)
	}
}

// ProvideDispatcher creates the in-process event dispatcher. Cached views
// are dropped before sessions hear about a change so they reload fresh
// data. EventBridge receives every event when enabled.
func ProvideDispatcher(
	cfg *config.Config,
	client *awseventbridge.Client,
	cache ports.Cache,
	hub *websocket.Hub,
	metrics *observability.Collector,
	sink *observability.CloudWatchSink,
	logger *zap.Logger,
) *messaging.Dispatcher {
	var downstream ports.EventPublisher
	if cfg.Events.EventBridgeEnabled {
		downstream = eventbridge.NewPublisher(client, cfg.Events.EventBusName, logger)
	}

	dispatcher := messaging.NewDispatcher(downstream, eventMetrics{metrics, sink}, logger)
	dispatcher.Subscribe(messaging.NewCacheInvalidator(cache))
	dispatcher.Subscribe(hub)
	return dispatcher
}

// ProvideForestWriter creates the write path shared by all commands
func ProvideForestWriter(
	cfg *config.Config,
	repo ports.ForestRepository,
	dispatcher *messaging.Dispatcher,
	locker ports.WriteLocker,
	logger *zap.Logger,
) *commandhandlers.ForestWriter {
	writer := commandhandlers.NewForestWriter(repo, dispatcher, cfg.Domain, logger)
	if locker != nil {
		writer.WithLocker(locker)
	}
	return writer
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	writer *commandhandlers.ForestWriter,
	sink *observability.CloudWatchSink,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(sink),
	)
	if err := commandhandlers.RegisterAll(commandBus, writer, logger); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideTreeReader creates the read path shared by all queries
func ProvideTreeReader(
	repo ports.ForestRepository,
	tracer observability.Tracer,
	metrics *observability.Collector,
	logger *zap.Logger,
) *queryhandlers.TreeReader {
	return queryhandlers.NewTreeReader(repo, tracer, metrics, logger)
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	cfg *config.Config,
	reader *queryhandlers.TreeReader,
	cache ports.Cache,
	metrics *observability.Collector,
) (*querybus.QueryBus, error) {
	middlewares := []queryhandlers.Middleware{querybus.NewMetricsMiddleware(metrics)}
	if cfg.Cache.Enabled {
		middlewares = append(middlewares, querybus.NewCachingMiddleware(cache, int(cfg.Cache.TTL/time.Second)))
	}

	queryBus := querybus.NewQueryBus()
	if err := queryhandlers.RegisterAll(queryBus, reader, cfg.Theme, middlewares...); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideLayoutProvider creates the force layout
func ProvideLayoutProvider(logger *zap.Logger) *force.Provider {
	return force.NewProvider(logger)
}

// ProvideSessionOptions configures live sessions
func ProvideSessionOptions(
	cfg *config.Config,
	queryBus *querybus.QueryBus,
	layout ports.LayoutProvider,
	reader *queryhandlers.TreeReader,
) websocket.Options {
	return websocket.Options{
		Source:          websocket.NewQuerySource(queryBus),
		Layout:          layout,
		Rules:           projection.DefaultStyleRules(cfg.Theme),
		Aggregation:     append([]aggregation.Option(nil), reader.Options()...),
		PositionsPerSec: cfg.WebSocket.PositionsPerSec,
		SendBuffer:      cfg.WebSocket.SendBuffer,
		PingInterval:    cfg.WebSocket.PingInterval,
		MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
	}
}
