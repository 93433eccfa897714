package handlers

import (
	"github.com/nicobenz/flowpertoire/application/queries"
	"github.com/nicobenz/flowpertoire/application/queries/bus"
	"github.com/nicobenz/flowpertoire/domain/projection"
)

// Middleware decorates a query handler
type Middleware interface {
	Wrap(next bus.QueryHandler) bus.QueryHandler
}

// RegisterAll wires every query handler into the bus. Middlewares wrap
// each handler, the first one outermost.
func RegisterAll(b *bus.QueryBus, reader *TreeReader, theme projection.Theme, middlewares ...Middleware) error {
	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandler
	}{
		{queries.ListTreesQuery{}, NewListTreesHandler(reader)},
		{queries.GetTreeQuery{}, NewGetTreeHandler(reader)},
		{queries.GetElementsQuery{}, NewGetElementsHandler(reader, theme)},
		{queries.GetFillsQuery{}, NewGetFillsHandler(reader)},
	}

	for _, r := range registrations {
		handler := r.handler
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i].Wrap(handler)
		}
		if err := b.Register(r.query, handler); err != nil {
			return err
		}
	}
	return nil
}
