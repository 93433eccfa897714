package decorators

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/memory"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/repotest"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingRepo struct {
	ports.ForestRepository
	err   error
	calls int
}

func (r *failingRepo) Load(ctx context.Context, userID valueobjects.UserID) (*aggregates.Forest, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.ForestRepository.Load(ctx, userID)
}

type recordedOp struct {
	op     string
	failed bool
}

type recordingMetrics struct {
	ops []recordedOp
}

func (m *recordingMetrics) RecordRepoOperation(op string, _ time.Duration, err error) {
	m.ops = append(m.ops, recordedOp{op: op, failed: err != nil})
}

func TestDecoratedRepositoryKeepsTheContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) ports.ForestRepository {
		cb := DefaultCircuitBreakerConfig("test")
		return Decorate(memory.NewForestRepository(), ChainConfig{
			CircuitBreaker: &cb,
			Metrics:        &recordingMetrics{},
			Logging:        true,
		}, zap.NewNop())
	})
}

func TestCircuitBreakerOpensOnStorageFailures(t *testing.T) {
	inner := &failingRepo{ForestRepository: memory.NewForestRepository(), err: pkgerrors.ErrStorageUnavailable(errors.New("throttled"))}
	cfg := DefaultCircuitBreakerConfig("forest")
	cfg.MinRequests = 3
	repo := NewCircuitBreakerRepository(inner, cfg, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Load(ctx, 1)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, repo.State())

	_, err := repo.Load(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStorageUnavailable, pkgerrors.GetAppError(err).Code)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls, "open breaker does not reach storage")
}

func TestCircuitBreakerIgnoresCallerErrors(t *testing.T) {
	inner := &failingRepo{ForestRepository: memory.NewForestRepository(), err: context.Canceled}
	cfg := DefaultCircuitBreakerConfig("forest")
	cfg.MinRequests = 1
	repo := NewCircuitBreakerRepository(inner, cfg, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := repo.Load(context.Background(), 1)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, repo.State())

	inner.err = pkgerrors.NewValidationError("bad input")
	_, err := repo.Load(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateClosed, repo.State())
}

func TestMetricsAndLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	metrics := &recordingMetrics{}
	inner := &failingRepo{ForestRepository: memory.NewForestRepository()}
	repo := Decorate(inner, ChainConfig{Metrics: metrics, Logging: true}, zap.New(core))
	ctx := context.Background()

	_, err := repo.NextID(ctx, aggregates.SeqNode)
	require.NoError(t, err)
	inner.err = errors.New("disk gone")
	_, err = repo.Load(ctx, 1)
	require.Error(t, err)

	assert.Equal(t, []recordedOp{{op: "next_id"}, {op: "load", failed: true}}, metrics.ops)
	assert.Equal(t, 1, logs.FilterMessage("Repository operation failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("Repository operation").Len())
}
