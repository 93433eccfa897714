// Package messaging fans domain events out to in-process subscribers and,
// optionally, to an external publisher.
package messaging

import (
	"context"
	"sync"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/events"
	"go.uber.org/zap"
)

// EventMetrics counts published events
type EventMetrics interface {
	EventPublished(eventType string)
}

// Dispatcher is the in-process ports.EventBus. Subscribers run
// synchronously in subscription order; their errors are logged and do
// not stop delivery.
type Dispatcher struct {
	mu         sync.RWMutex
	handlers   []ports.EventHandler
	downstream ports.EventPublisher
	metrics    EventMetrics
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher. downstream and metrics may be nil.
func NewDispatcher(downstream ports.EventPublisher, metrics EventMetrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		downstream: downstream,
		metrics:    metrics,
		logger:     logger,
	}
}

// Subscribe adds a handler
func (d *Dispatcher) Subscribe(handler ports.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, handler)
}

// Publish dispatches a single event
func (d *Dispatcher) Publish(ctx context.Context, event events.DomainEvent) error {
	return d.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch delivers every event to the local handlers, then forwards
// the batch downstream. Only a downstream failure is returned.
func (d *Dispatcher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	d.mu.RLock()
	handlers := append([]ports.EventHandler(nil), d.handlers...)
	d.mu.RUnlock()

	for _, event := range batch {
		for _, h := range handlers {
			if !h.CanHandle(event.GetEventType()) {
				continue
			}
			if err := h.Handle(ctx, event); err != nil {
				d.logger.Error("Event handler failed",
					zap.String("eventType", event.GetEventType()),
					zap.String("aggregateID", event.GetAggregateID()),
					zap.Error(err),
				)
			}
		}
		if d.metrics != nil {
			d.metrics.EventPublished(event.GetEventType())
		}
	}

	if d.downstream == nil || len(batch) == 0 {
		return nil
	}
	return d.downstream.PublishBatch(ctx, batch)
}

// HandlerFunc adapts a function into a ports.EventHandler. An empty
// Types list handles every event.
type HandlerFunc struct {
	Types []string
	Fn    func(ctx context.Context, event events.DomainEvent) error
}

// Handle implements ports.EventHandler
func (h HandlerFunc) Handle(ctx context.Context, event events.DomainEvent) error {
	return h.Fn(ctx, event)
}

// CanHandle implements ports.EventHandler
func (h HandlerFunc) CanHandle(eventType string) bool {
	if len(h.Types) == 0 {
		return true
	}
	for _, t := range h.Types {
		if t == eventType {
			return true
		}
	}
	return false
}
