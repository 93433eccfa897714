package messaging

import (
	"context"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/application/queries"
	"github.com/nicobenz/flowpertoire/domain/events"
)

// NewCacheInvalidator drops every cached view of the event's user
func NewCacheInvalidator(cache ports.Cache) ports.EventHandler {
	return HandlerFunc{
		Fn: func(ctx context.Context, event events.DomainEvent) error {
			return cache.DeletePrefix(ctx, queries.UserCachePrefix(event.GetUserID()))
		},
	}
}
