package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nicobenz/flowpertoire/application/commands/bus"
	querybus "github.com/nicobenz/flowpertoire/application/queries/bus"
	"github.com/nicobenz/flowpertoire/infrastructure/config"
	"github.com/nicobenz/flowpertoire/interfaces/http/rest/handlers"
	"github.com/nicobenz/flowpertoire/interfaces/http/rest/middleware"
	"github.com/nicobenz/flowpertoire/pkg/common"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"github.com/nicobenz/flowpertoire/pkg/observability"
	"github.com/nicobenz/flowpertoire/pkg/ratelimit"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	metrics    *observability.Collector
	cfg        config.ServerConfig
	debug      bool
	logger     *zap.Logger

	ready     func(ctx context.Context) error
	websocket http.Handler
	limiter   ratelimit.Limiter
}

// Option configures optional parts of the router
type Option func(*Router)

// WithReadiness makes /ready report the result of check
func WithReadiness(check func(ctx context.Context) error) Option {
	return func(rt *Router) { rt.ready = check }
}

// WithWebSocket mounts the live session endpoint on /ws
func WithWebSocket(h http.Handler) Option {
	return func(rt *Router) { rt.websocket = h }
}

// WithRateLimiter limits API requests per client IP
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(rt *Router) { rt.limiter = l }
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	metrics *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Router {
	rt := &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		metrics:    metrics,
		cfg:        cfg.Server,
		debug:      cfg.IsDevelopment(),
		logger:     logger.Named("http"),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errorHandler := pkgerrors.NewErrorHandler(rt.logger, rt.debug)

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "If-None-Match", "X-Request-ID", common.HeaderUserID},
			ExposedHeaders:   []string{"ETag", "Location", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	userMiddleware := middleware.User(rt.cfg.AllowUserHeader, errorHandler)

	if rt.websocket != nil {
		router.With(userMiddleware).Get("/ws", rt.websocket.ServeHTTP)
	}

	router.Route("/api/v1", func(r chi.Router) {
		if rt.limiter != nil {
			r.Use(middleware.RateLimit(rt.limiter, rt.logger))
		}
		r.Use(userMiddleware)

		treeHandler := handlers.NewTreeHandler(rt.commandBus, rt.queryBus, errorHandler, rt.logger)
		r.Route("/trees", func(r chi.Router) {
			r.Get("/", treeHandler.ListTrees)
			r.Post("/", treeHandler.CreateTree)
			r.Get("/by-slug/{slug}", treeHandler.GetTreeBySlug)
			r.Get("/{treeID}", treeHandler.GetTree)
			r.Delete("/{treeID}", treeHandler.DeleteTree)
			r.Get("/{treeID}/elements", treeHandler.GetElements)
			r.Get("/{treeID}/fills", treeHandler.GetFills)
		})

		nodeHandler := handlers.NewNodeHandler(rt.commandBus, errorHandler, rt.logger)
		r.Route("/nodes/{nodeID}", func(r chi.Router) {
			r.Post("/groups", nodeHandler.AddGroup)
			r.Post("/skills", nodeHandler.AddSkill)
			r.Patch("/skill", nodeHandler.UpdateSkill)
			r.Post("/concepts", nodeHandler.LinkConcept)
			r.Post("/children", nodeHandler.AttachChild)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports whether the store answers
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
