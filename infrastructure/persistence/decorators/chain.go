package decorators

import (
	"github.com/nicobenz/flowpertoire/application/ports"
	"go.uber.org/zap"
)

// ChainConfig selects the decorators to apply
type ChainConfig struct {
	CircuitBreaker *CircuitBreakerConfig
	Metrics        RepoMetrics
	Logging        bool
}

// Decorate applies the configured decorators.
// Order: Base -> Circuit Breaker -> Metrics -> Logging
func Decorate(base ports.ForestRepository, cfg ChainConfig, logger *zap.Logger) ports.ForestRepository {
	decorated := base

	if cfg.CircuitBreaker != nil {
		decorated = NewCircuitBreakerRepository(decorated, *cfg.CircuitBreaker, logger)
		logger.Debug("Applied circuit breaker decorator", zap.String("name", cfg.CircuitBreaker.Name))
	}
	if cfg.Metrics != nil {
		decorated = NewMetricsRepository(decorated, cfg.Metrics)
		logger.Debug("Applied metrics decorator")
	}
	if cfg.Logging {
		decorated = NewLoggingRepository(decorated, logger)
		logger.Debug("Applied logging decorator")
	}
	return decorated
}
