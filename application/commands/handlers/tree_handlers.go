package handlers

import (
	"context"

	"github.com/nicobenz/flowpertoire/application/commands"
	"github.com/nicobenz/flowpertoire/application/commands/bus"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"go.uber.org/zap"
)

// CreateTreeHandler handles CreateTreeCommand
type CreateTreeHandler struct {
	writer *ForestWriter
	logger *zap.Logger
}

// NewCreateTreeHandler creates a new handler instance
func NewCreateTreeHandler(writer *ForestWriter, logger *zap.Logger) *CreateTreeHandler {
	return &CreateTreeHandler{writer: writer, logger: logger}
}

// Handle creates the root group and returns the new entities.RootTree
func (h *CreateTreeHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.CreateTreeCommand)
	return h.writer.Mutate(ctx, cmd.UserID, func(f *aggregates.Forest) (interface{}, error) {
		tree, err := f.CreateRootTree(ctx, h.writer.IDs(), cmd.Label, cmd.Description)
		if err != nil {
			return nil, err
		}
		h.logger.Info("Tree created",
			zap.Int64("treeID", int64(tree.ID)),
			zap.String("slug", tree.Slug),
		)
		return tree, nil
	})
}

// DeleteTreeHandler handles DeleteTreeCommand
type DeleteTreeHandler struct {
	writer *ForestWriter
	logger *zap.Logger
}

// NewDeleteTreeHandler creates a new handler instance
func NewDeleteTreeHandler(writer *ForestWriter, logger *zap.Logger) *DeleteTreeHandler {
	return &DeleteTreeHandler{writer: writer, logger: logger}
}

// Handle removes the tree; the result is the list of deleted node ids
func (h *DeleteTreeHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.DeleteTreeCommand)
	return h.writer.Mutate(ctx, cmd.UserID, func(f *aggregates.Forest) (interface{}, error) {
		removed, err := f.DeleteRootTree(cmd.TreeID)
		if err != nil {
			return nil, err
		}
		h.logger.Info("Tree deleted",
			zap.Int64("treeID", int64(cmd.TreeID)),
			zap.Int("removedNodes", len(removed)),
		)
		return removed, nil
	})
}
