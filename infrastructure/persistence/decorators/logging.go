package decorators

import (
	"context"
	"time"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"go.uber.org/zap"
)

// LoggingRepository logs every repository call with its duration
type LoggingRepository struct {
	inner  ports.ForestRepository
	logger *zap.Logger
}

// NewLoggingRepository wraps inner with logging
func NewLoggingRepository(inner ports.ForestRepository, logger *zap.Logger) *LoggingRepository {
	return &LoggingRepository{inner: inner, logger: logger.Named("repository")}
}

func (r *LoggingRepository) NextID(ctx context.Context, seq aggregates.Sequence) (int64, error) {
	start := time.Now()
	id, err := r.inner.NextID(ctx, seq)
	r.log("NextID", start, err, zap.String("sequence", string(seq)), zap.Int64("id", id))
	return id, err
}

func (r *LoggingRepository) Load(ctx context.Context, userID valueobjects.UserID) (*aggregates.Forest, error) {
	start := time.Now()
	forest, err := r.inner.Load(ctx, userID)
	r.log("Load", start, err, zap.String("userID", userID.String()))
	return forest, err
}

func (r *LoggingRepository) Save(ctx context.Context, forest *aggregates.Forest) error {
	start := time.Now()
	changes := len(forest.Changes())
	err := r.inner.Save(ctx, forest)
	r.log("Save", start, err, zap.String("userID", forest.UserID().String()), zap.Int("changes", changes))
	return err
}

func (r *LoggingRepository) log(op string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("operation", op), zap.Duration("duration", time.Since(start)))
	if err != nil {
		r.logger.Warn("Repository operation failed", append(fields, zap.Error(err))...)
		return
	}
	r.logger.Debug("Repository operation", fields...)
}
