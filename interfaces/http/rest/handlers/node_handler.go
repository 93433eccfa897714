package handlers

import (
	"net/http"
	"time"

	"github.com/nicobenz/flowpertoire/application/commands"
	"github.com/nicobenz/flowpertoire/application/commands/bus"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/pkg/common"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"go.uber.org/zap"
)

// NodeHandler handles the node mutations below a tree
type NodeHandler struct {
	commandBus *bus.CommandBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(commandBus *bus.CommandBus, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{
		commandBus: commandBus,
		errors:     errors,
		logger:     logger,
	}
}

// AddGroupRequest represents the request body for adding a group
type AddGroupRequest struct {
	Label       string  `json:"label" validate:"required,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// AddSkillRequest represents the request body for adding a skill
type AddSkillRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// UpdateSkillRequest carries the skill fields to change; absent fields
// stay as they are
type UpdateSkillRequest struct {
	Title           *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Rating          *int       `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Status          *string    `json:"status,omitempty" validate:"omitempty,oneof=wishlist learning mastered"`
	FirstAchievedAt *time.Time `json:"firstAchievedAt,omitempty"`
}

// LinkConceptRequest names the node on the other end of a concept edge
type LinkConceptRequest struct {
	NodeID int64 `json:"nodeId" validate:"required,gt=0"`
}

// AttachChildRequest names an existing node to place below the group
type AttachChildRequest struct {
	ChildID int64 `json:"childId" validate:"required,gt=0"`
}

// AddGroup handles POST /nodes/{nodeID}/groups
func (h *NodeHandler) AddGroup(w http.ResponseWriter, r *http.Request) {
	parentID, err := nodeParam(r, "nodeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req AddGroupRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.execute(w, r, http.StatusCreated, commands.AddGroupCommand{
		UserID:       common.UserIDFrom(r.Context()),
		ParentNodeID: parentID,
		Label:        req.Label,
		Description:  req.Description,
	})
}

// AddSkill handles POST /nodes/{nodeID}/skills
func (h *NodeHandler) AddSkill(w http.ResponseWriter, r *http.Request) {
	parentID, err := nodeParam(r, "nodeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req AddSkillRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.execute(w, r, http.StatusCreated, commands.AddSkillCommand{
		UserID:       common.UserIDFrom(r.Context()),
		ParentNodeID: parentID,
		Title:        req.Title,
	})
}

// UpdateSkill handles PATCH /nodes/{nodeID}/skill
func (h *NodeHandler) UpdateSkill(w http.ResponseWriter, r *http.Request) {
	nodeID, err := nodeParam(r, "nodeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req UpdateSkillRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	cmd := commands.UpdateSkillCommand{
		UserID:          common.UserIDFrom(r.Context()),
		NodeID:          nodeID,
		Rating:          req.Rating,
		FirstAchievedAt: req.FirstAchievedAt,
		Title:           req.Title,
	}
	if req.Status != nil {
		status := valueobjects.SkillStatus(*req.Status)
		cmd.Status = &status
	}
	h.execute(w, r, http.StatusOK, cmd)
}

// LinkConcept handles POST /nodes/{nodeID}/concepts
func (h *NodeHandler) LinkConcept(w http.ResponseWriter, r *http.Request) {
	nodeID, err := nodeParam(r, "nodeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req LinkConceptRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.execute(w, r, http.StatusCreated, commands.LinkConceptCommand{
		UserID: common.UserIDFrom(r.Context()),
		NodeA:  nodeID,
		NodeB:  valueobjects.NodeID(req.NodeID),
	})
}

// AttachChild handles POST /nodes/{nodeID}/children
func (h *NodeHandler) AttachChild(w http.ResponseWriter, r *http.Request) {
	parentID, err := nodeParam(r, "nodeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req AttachChildRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.execute(w, r, http.StatusCreated, commands.AttachChildCommand{
		UserID:       common.UserIDFrom(r.Context()),
		ParentNodeID: parentID,
		ChildNodeID:  valueobjects.NodeID(req.ChildID),
	})
}

func (h *NodeHandler) execute(w http.ResponseWriter, r *http.Request, status int, cmd bus.Command) {
	result, err := h.commandBus.Execute(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondWithMeta(w, status, result, common.Meta(r))
}
