package handlers

import (
	"context"

	"github.com/nicobenz/flowpertoire/application/commands"
	"github.com/nicobenz/flowpertoire/application/commands/bus"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
)

// AddGroupHandler handles AddGroupCommand
type AddGroupHandler struct {
	writer *ForestWriter
}

func NewAddGroupHandler(writer *ForestWriter) *AddGroupHandler {
	return &AddGroupHandler{writer: writer}
}

// Handle returns the new group node
func (h *AddGroupHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.AddGroupCommand)
	return h.writer.Mutate(ctx, cmd.UserID, func(f *aggregates.Forest) (interface{}, error) {
		return f.AddChildGroup(ctx, h.writer.IDs(), cmd.ParentNodeID, cmd.Label, cmd.Description)
	})
}

// AddSkillHandler handles AddSkillCommand
type AddSkillHandler struct {
	writer *ForestWriter
}

func NewAddSkillHandler(writer *ForestWriter) *AddSkillHandler {
	return &AddSkillHandler{writer: writer}
}

// Handle returns the new skill node
func (h *AddSkillHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.AddSkillCommand)
	return h.writer.Mutate(ctx, cmd.UserID, func(f *aggregates.Forest) (interface{}, error) {
		return f.AddChildSkill(ctx, h.writer.IDs(), cmd.ParentNodeID, cmd.Title)
	})
}

// UpdateSkillHandler handles UpdateSkillCommand
type UpdateSkillHandler struct {
	writer *ForestWriter
}

func NewUpdateSkillHandler(writer *ForestWriter) *UpdateSkillHandler {
	return &UpdateSkillHandler{writer: writer}
}

// Handle returns the updated skill record
func (h *UpdateSkillHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.UpdateSkillCommand)
	return h.writer.Mutate(ctx, cmd.UserID, func(f *aggregates.Forest) (interface{}, error) {
		return f.UpdateSkill(cmd.NodeID, aggregates.SkillPatch{
			Title:           cmd.Title,
			Rating:          cmd.Rating,
			Status:          cmd.Status,
			FirstAchievedAt: cmd.FirstAchievedAt,
		})
	})
}

// LinkConceptHandler handles LinkConceptCommand
type LinkConceptHandler struct {
	writer *ForestWriter
}

func NewLinkConceptHandler(writer *ForestWriter) *LinkConceptHandler {
	return &LinkConceptHandler{writer: writer}
}

// Handle returns the new concept edge
func (h *LinkConceptHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.LinkConceptCommand)
	return h.writer.Mutate(ctx, cmd.UserID, func(f *aggregates.Forest) (interface{}, error) {
		return f.LinkConcept(cmd.NodeA, cmd.NodeB)
	})
}

// AttachChildHandler handles AttachChildCommand
type AttachChildHandler struct {
	writer *ForestWriter
}

func NewAttachChildHandler(writer *ForestWriter) *AttachChildHandler {
	return &AttachChildHandler{writer: writer}
}

// Handle returns the new parent edge
func (h *AttachChildHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(commands.AttachChildCommand)
	return h.writer.Mutate(ctx, cmd.UserID, func(f *aggregates.Forest) (interface{}, error) {
		return f.AttachChild(cmd.ParentNodeID, cmd.ChildNodeID)
	})
}
