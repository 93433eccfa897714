package decorators

import (
	"context"
	"time"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// RepoMetrics records repository calls
type RepoMetrics interface {
	RecordRepoOperation(operation string, duration time.Duration, err error)
}

// MetricsRepository times every repository call
type MetricsRepository struct {
	inner   ports.ForestRepository
	metrics RepoMetrics
}

// NewMetricsRepository wraps inner with metrics
func NewMetricsRepository(inner ports.ForestRepository, metrics RepoMetrics) *MetricsRepository {
	return &MetricsRepository{inner: inner, metrics: metrics}
}

func (r *MetricsRepository) NextID(ctx context.Context, seq aggregates.Sequence) (int64, error) {
	start := time.Now()
	id, err := r.inner.NextID(ctx, seq)
	r.metrics.RecordRepoOperation("next_id", time.Since(start), err)
	return id, err
}

func (r *MetricsRepository) Load(ctx context.Context, userID valueobjects.UserID) (*aggregates.Forest, error) {
	start := time.Now()
	forest, err := r.inner.Load(ctx, userID)
	r.metrics.RecordRepoOperation("load", time.Since(start), err)
	return forest, err
}

func (r *MetricsRepository) Save(ctx context.Context, forest *aggregates.Forest) error {
	start := time.Now()
	err := r.inner.Save(ctx, forest)
	r.metrics.RecordRepoOperation("save", time.Since(start), err)
	return err
}
