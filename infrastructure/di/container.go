package di

import (
	"net/http"

	"github.com/nicobenz/flowpertoire/application/commands/bus"
	"github.com/nicobenz/flowpertoire/application/ports"
	querybus "github.com/nicobenz/flowpertoire/application/queries/bus"
	"github.com/nicobenz/flowpertoire/infrastructure/config"
	"github.com/nicobenz/flowpertoire/infrastructure/messaging"
	"github.com/nicobenz/flowpertoire/interfaces/http/rest"
	"github.com/nicobenz/flowpertoire/interfaces/websocket"
	"github.com/nicobenz/flowpertoire/pkg/observability"
	"github.com/nicobenz/flowpertoire/pkg/ratelimit"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	Storage        *Storage
	Repository     ports.ForestRepository
	Cache          *InMemoryCache
	Dispatcher     *messaging.Dispatcher
	CommandBus     *bus.CommandBus
	QueryBus       *querybus.QueryBus
	Hub            *websocket.Hub
	SessionOptions websocket.Options
	LayoutProvider ports.LayoutProvider
	Metrics        *observability.Collector
	CloudWatch     *observability.CloudWatchSink
	Tracer         observability.Tracer
	RateLimiter    ratelimit.Limiter
}

// HTTPHandler builds the REST router with the live session endpoint and
// readiness probe attached
func (c *Container) HTTPHandler() http.Handler {
	opts := []rest.Option{
		rest.WithReadiness(c.Storage.Ready),
		rest.WithRateLimiter(c.RateLimiter),
	}
	if c.Config.WebSocket.Enabled {
		opts = append(opts, rest.WithWebSocket(
			websocket.NewHandler(c.Hub, c.SessionOptions, c.Config.Server.AllowedOrigins, c.Logger),
		))
	}
	return rest.NewRouter(c.CommandBus, c.QueryBus, c.Metrics, c.Config, c.Logger, opts...).Setup()
}
