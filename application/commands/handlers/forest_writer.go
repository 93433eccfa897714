package handlers

import (
	"context"
	"sync"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/config"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"go.uber.org/zap"
)

// ForestWriter runs one mutation of a user's forest: load, apply, save,
// publish. Writes for the same user are serialised within the process.
type ForestWriter struct {
	repo      ports.ForestRepository
	publisher ports.EventPublisher
	limits    *config.DomainConfig
	logger    *zap.Logger
	locker    ports.WriteLocker

	locks sync.Map // valueobjects.UserID -> *sync.Mutex
}

// NewForestWriter creates a new forest writer
func NewForestWriter(
	repo ports.ForestRepository,
	publisher ports.EventPublisher,
	limits *config.DomainConfig,
	logger *zap.Logger,
) *ForestWriter {
	return &ForestWriter{
		repo:      repo,
		publisher: publisher,
		limits:    limits,
		logger:    logger,
	}
}

// WithLocker adds a cross-process lock taken after the in-process one
func (w *ForestWriter) WithLocker(locker ports.WriteLocker) *ForestWriter {
	w.locker = locker
	return w
}

// Mutate applies fn to the user's forest and persists the outcome. When
// fn fails nothing is saved. Events are published after the save; a
// publish failure is logged because the write already happened.
func (w *ForestWriter) Mutate(
	ctx context.Context,
	userID valueobjects.UserID,
	fn func(forest *aggregates.Forest) (interface{}, error),
) (interface{}, error) {
	mu := w.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	if w.locker != nil {
		release, err := w.locker.Lock(ctx, userID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	forest, err := w.repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	forest.WithLimits(w.limits)

	result, err := fn(forest)
	if err != nil {
		return nil, err
	}

	events := forest.Events()
	if err := w.repo.Save(ctx, forest); err != nil {
		return nil, err
	}

	if len(events) > 0 && w.publisher != nil {
		if err := w.publisher.PublishBatch(ctx, events); err != nil {
			w.logger.Error("Failed to publish events",
				zap.String("userID", userID.String()),
				zap.Int("count", len(events)),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// IDs exposes the repository as the id allocator for aggregate methods
func (w *ForestWriter) IDs() aggregates.IDAllocator {
	return w.repo
}

func (w *ForestWriter) lockFor(userID valueobjects.UserID) *sync.Mutex {
	mu, _ := w.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
