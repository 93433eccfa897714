package commands

import (
	"strings"

	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
)

// CreateTreeCommand creates a new root tree
type CreateTreeCommand struct {
	UserID      valueobjects.UserID `json:"user_id"`
	Label       string              `json:"label"`
	Description *string             `json:"description,omitempty"`
}

// Validate validates the command
func (cmd CreateTreeCommand) Validate() error {
	if cmd.UserID <= 0 {
		return pkgerrors.NewValidationError("user ID is required")
	}
	if strings.TrimSpace(cmd.Label) == "" {
		return pkgerrors.ErrLabelRequired()
	}
	return nil
}

// DeleteTreeCommand removes a root tree and everything below it
type DeleteTreeCommand struct {
	UserID valueobjects.UserID `json:"user_id"`
	TreeID valueobjects.NodeID `json:"tree_id"`
}

// Validate validates the command
func (cmd DeleteTreeCommand) Validate() error {
	if cmd.UserID <= 0 {
		return pkgerrors.NewValidationError("user ID is required")
	}
	if cmd.TreeID <= 0 {
		return pkgerrors.NewValidationError("tree ID is required")
	}
	return nil
}
