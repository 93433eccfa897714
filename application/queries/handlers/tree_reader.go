package handlers

import (
	"context"
	"time"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/application/queries"
	"github.com/nicobenz/flowpertoire/domain/core/aggregation"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/pkg/observability"
	"go.uber.org/zap"
)

// ProjectionMetrics receives projection timings and data problems
type ProjectionMetrics interface {
	RecordProjection(structureOnly bool, nodeCount int, duration time.Duration)
	RecordMissingRecord(kind string)
}

// TreeReader loads forests and resolves tree references for the query
// handlers
type TreeReader struct {
	repo    ports.ForestRepository
	tracer  observability.Tracer
	metrics ProjectionMetrics
	logger  *zap.Logger
}

// NewTreeReader creates a new tree reader. metrics may be nil.
func NewTreeReader(
	repo ports.ForestRepository,
	tracer observability.Tracer,
	metrics ProjectionMetrics,
	logger *zap.Logger,
) *TreeReader {
	if tracer == nil {
		tracer = observability.NoopTracer{}
	}
	return &TreeReader{
		repo:    repo,
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Forest loads a user's forest inside a span
func (r *TreeReader) Forest(ctx context.Context, userID valueobjects.UserID) (*aggregates.Forest, error) {
	var forest *aggregates.Forest
	err := r.tracer.TraceFunction(ctx, "forest.load", func(ctx context.Context) error {
		r.tracer.AddAnnotation(ctx, "user_id", userID.String())
		var err error
		forest, err = r.repo.Load(ctx, userID)
		return err
	})
	return forest, err
}

// Tree loads the tree addressed by ref
func (r *TreeReader) Tree(ctx context.Context, userID valueobjects.UserID, ref queries.TreeRef) (entities.RootTree, entities.TreeData, error) {
	forest, err := r.Forest(ctx, userID)
	if err != nil {
		return entities.RootTree{}, entities.TreeData{}, err
	}

	var tree entities.RootTree
	if ref.ID > 0 {
		tree, err = findRoot(forest, ref.ID)
	} else {
		tree, err = forest.RootBySlug(ref.Slug)
	}
	if err != nil {
		return entities.RootTree{}, entities.TreeData{}, err
	}

	data, err := forest.TreeData(tree.ID)
	if err != nil {
		return entities.RootTree{}, entities.TreeData{}, err
	}
	return tree, data, nil
}

// Options returns the aggregation options that report missing records
func (r *TreeReader) Options() []aggregation.Option {
	return []aggregation.Option{
		aggregation.WithMissingRecordHook(func(m aggregation.MissingRecord) {
			r.logger.Warn("Node references a missing record",
				zap.Int64("nodeID", int64(m.NodeID)),
				zap.String("kind", string(m.Kind)),
				zap.Int64("refID", m.RefID),
			)
			if r.metrics != nil {
				r.metrics.RecordMissingRecord(string(m.Kind))
			}
		}),
	}
}

// Observe records how long a projection took
func (r *TreeReader) Observe(structureOnly bool, nodeCount int, start time.Time) {
	if r.metrics != nil {
		r.metrics.RecordProjection(structureOnly, nodeCount, time.Since(start))
	}
}

func findRoot(forest *aggregates.Forest, id valueobjects.NodeID) (entities.RootTree, error) {
	for _, t := range forest.RootTrees() {
		if t.ID == id {
			return t, nil
		}
	}
	// TreeData reports the not-found error with the right code
	_, err := forest.TreeData(id)
	return entities.RootTree{}, err
}
