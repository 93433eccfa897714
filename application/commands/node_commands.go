package commands

import (
	"strings"
	"time"

	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
)

// AddGroupCommand adds a group below an existing group
type AddGroupCommand struct {
	UserID       valueobjects.UserID `json:"user_id"`
	ParentNodeID valueobjects.NodeID `json:"parent_node_id"`
	Label        string              `json:"label"`
	Description  *string             `json:"description,omitempty"`
}

// Validate validates the command
func (cmd AddGroupCommand) Validate() error {
	if cmd.UserID <= 0 {
		return pkgerrors.NewValidationError("user ID is required")
	}
	if cmd.ParentNodeID <= 0 || strings.TrimSpace(cmd.Label) == "" {
		return pkgerrors.ErrParentAndLabelRequired()
	}
	return nil
}

// AddSkillCommand adds a skill below an existing group
type AddSkillCommand struct {
	UserID       valueobjects.UserID `json:"user_id"`
	ParentNodeID valueobjects.NodeID `json:"parent_node_id"`
	Title        string              `json:"title"`
}

// Validate validates the command
func (cmd AddSkillCommand) Validate() error {
	if cmd.UserID <= 0 {
		return pkgerrors.NewValidationError("user ID is required")
	}
	if cmd.ParentNodeID <= 0 || strings.TrimSpace(cmd.Title) == "" {
		return pkgerrors.ErrParentAndTitleRequired()
	}
	return nil
}

// UpdateSkillCommand edits the skill record behind a node. Nil fields
// are left unchanged.
type UpdateSkillCommand struct {
	UserID          valueobjects.UserID       `json:"user_id"`
	NodeID          valueobjects.NodeID       `json:"node_id"`
	Rating          *int                      `json:"rating,omitempty"`
	Status          *valueobjects.SkillStatus `json:"status,omitempty"`
	FirstAchievedAt *time.Time                `json:"first_achieved_at,omitempty"`
	Title           *string                   `json:"title,omitempty"`
}

// Validate validates the command
func (cmd UpdateSkillCommand) Validate() error {
	if cmd.UserID <= 0 {
		return pkgerrors.NewValidationError("user ID is required")
	}
	if cmd.NodeID <= 0 {
		return pkgerrors.NewValidationError("node ID is required")
	}
	if cmd.Rating == nil && cmd.Status == nil && cmd.FirstAchievedAt == nil && cmd.Title == nil {
		return pkgerrors.NewValidationError("nothing to update")
	}
	if cmd.Rating != nil {
		if _, err := valueobjects.NewRating(*cmd.Rating); err != nil {
			return pkgerrors.NewValidationError(err.Error()).WithCode(pkgerrors.CodeInvalidRating)
		}
	}
	if cmd.Status != nil {
		if _, err := valueobjects.ParseSkillStatus(string(*cmd.Status)); err != nil {
			return pkgerrors.NewValidationError(err.Error()).WithCode(pkgerrors.CodeInvalidStatus)
		}
	}
	if cmd.Title != nil && strings.TrimSpace(*cmd.Title) == "" {
		return pkgerrors.NewValidationError("title cannot be empty")
	}
	return nil
}

// LinkConceptCommand links two nodes with an undirected concept edge
type LinkConceptCommand struct {
	UserID valueobjects.UserID `json:"user_id"`
	NodeA  valueobjects.NodeID `json:"node_a"`
	NodeB  valueobjects.NodeID `json:"node_b"`
}

// Validate validates the command
func (cmd LinkConceptCommand) Validate() error {
	if cmd.UserID <= 0 {
		return pkgerrors.NewValidationError("user ID is required")
	}
	if cmd.NodeA <= 0 || cmd.NodeB <= 0 {
		return pkgerrors.NewValidationError("both node IDs are required")
	}
	if cmd.NodeA == cmd.NodeB {
		return pkgerrors.ErrSelfReferentialEdge()
	}
	return nil
}

// AttachChildCommand adds an extra parent edge to an existing node
type AttachChildCommand struct {
	UserID       valueobjects.UserID `json:"user_id"`
	ParentNodeID valueobjects.NodeID `json:"parent_node_id"`
	ChildNodeID  valueobjects.NodeID `json:"child_node_id"`
}

// Validate validates the command
func (cmd AttachChildCommand) Validate() error {
	if cmd.UserID <= 0 {
		return pkgerrors.NewValidationError("user ID is required")
	}
	if cmd.ParentNodeID <= 0 || cmd.ChildNodeID <= 0 {
		return pkgerrors.NewValidationError("parent and child node IDs are required")
	}
	if cmd.ParentNodeID == cmd.ChildNodeID {
		return pkgerrors.ErrSelfReferentialEdge()
	}
	return nil
}
