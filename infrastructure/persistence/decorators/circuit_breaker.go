// Package decorators wraps a ports.ForestRepository with cross-cutting
// concerns: circuit breaking, metrics and logging.
package decorators

import (
	"context"
	"errors"
	"time"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// CircuitBreakerConfig holds configuration for the repository breaker
type CircuitBreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// Trip when this share of at least MinRequests calls failed
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultCircuitBreakerConfig returns the production defaults
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// CircuitBreakerRepository fails fast while storage keeps failing
type CircuitBreakerRepository struct {
	inner ports.ForestRepository
	cb    *gobreaker.CircuitBreaker
}

// NewCircuitBreakerRepository wraps inner with a breaker
func NewCircuitBreakerRepository(inner ports.ForestRepository, config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreakerRepository {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: countsAsSuccess,
	})
	return &CircuitBreakerRepository{inner: inner, cb: cb}
}

// countsAsSuccess keeps cancelled requests and rejected input from
// tripping the breaker; only storage failures count.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch {
	case pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable),
		pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return pkgerrors.GetAppError(err) != nil
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) { return fn() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, pkgerrors.ErrStorageUnavailable(err)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

// State reports the breaker state
func (r *CircuitBreakerRepository) State() gobreaker.State {
	return r.cb.State()
}

func (r *CircuitBreakerRepository) NextID(ctx context.Context, seq aggregates.Sequence) (int64, error) {
	return execute(r.cb, func() (int64, error) { return r.inner.NextID(ctx, seq) })
}

func (r *CircuitBreakerRepository) Load(ctx context.Context, userID valueobjects.UserID) (*aggregates.Forest, error) {
	return execute(r.cb, func() (*aggregates.Forest, error) { return r.inner.Load(ctx, userID) })
}

func (r *CircuitBreakerRepository) Save(ctx context.Context, forest *aggregates.Forest) error {
	_, err := execute(r.cb, func() (struct{}, error) { return struct{}{}, r.inner.Save(ctx, forest) })
	return err
}
