package ports

import (
	"context"

	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/domain/events"
)

// ForestRepository persists Forest aggregates
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type ForestRepository interface {
	aggregates.IDAllocator

	// Load reads every node, edge and record of a user. A user without
	// data gets an empty forest, never a not-found error.
	Load(ctx context.Context, userID valueobjects.UserID) (*aggregates.Forest, error)

	// Save applies the forest's pending changes and marks them committed
	Save(ctx context.Context, forest *aggregates.Forest) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// EventHandler defines the interface for handling domain events
type EventHandler interface {
	// Handle processes an event
	Handle(ctx context.Context, event events.DomainEvent) error

	// CanHandle checks if this handler can process the event
	CanHandle(eventType string) bool
}

// EventBus is an EventPublisher with in-process subscribers
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler)
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}

// WriteLocker serialises forest writes for one user across processes.
// The returned release function must be called exactly once.
type WriteLocker interface {
	Lock(ctx context.Context, userID valueobjects.UserID) (release func(), err error)
}
