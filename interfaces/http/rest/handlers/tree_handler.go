package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/nicobenz/flowpertoire/application/commands"
	"github.com/nicobenz/flowpertoire/application/commands/bus"
	"github.com/nicobenz/flowpertoire/application/queries"
	querybus "github.com/nicobenz/flowpertoire/application/queries/bus"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/pkg/common"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"go.uber.org/zap"
)

// TreeHandler handles root tree HTTP requests
type TreeHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *TreeHandler {
	return &TreeHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errors,
		logger:     logger,
	}
}

// CreateTreeRequest represents the request body for creating a tree
type CreateTreeRequest struct {
	Label       string  `json:"label" validate:"required,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// DeleteTreeResponse lists the nodes removed with the tree
type DeleteTreeResponse struct {
	TreeID  valueobjects.NodeID   `json:"treeId"`
	Removed []valueobjects.NodeID `json:"removed"`
}

// ListTrees handles GET /trees
func (h *TreeHandler) ListTrees(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.ListTreesQuery{
		UserID: common.UserIDFrom(r.Context()),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	trees, _ := result.([]entities.RootTree)
	if trees == nil {
		trees = []entities.RootTree{}
	}
	common.RespondJSON(w, http.StatusOK, trees)
}

// CreateTree handles POST /trees
func (h *TreeHandler) CreateTree(w http.ResponseWriter, r *http.Request) {
	var req CreateTreeRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	userID := common.UserIDFrom(r.Context())
	result, err := h.commandBus.Execute(r.Context(), commands.CreateTreeCommand{
		UserID:      userID,
		Label:       req.Label,
		Description: req.Description,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	tree := result.(entities.RootTree)
	h.logger.Debug("Tree created over HTTP",
		zap.Int64("userID", int64(userID)),
		zap.Int64("treeID", int64(tree.ID)),
	)
	w.Header().Set("Location", fmt.Sprintf("%s/%d", strings.TrimSuffix(r.URL.Path, "/"), tree.ID))
	common.RespondWithMeta(w, http.StatusCreated, tree, common.Meta(r))
}

// GetTree handles GET /trees/{treeID}
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	treeID, err := nodeParam(r, "treeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondTree(w, r, queries.TreeRef{ID: treeID})
}

// GetTreeBySlug handles GET /trees/by-slug/{slug}
func (h *TreeHandler) GetTreeBySlug(w http.ResponseWriter, r *http.Request) {
	h.respondTree(w, r, queries.TreeRef{Slug: chi.URLParam(r, "slug")})
}

func (h *TreeHandler) respondTree(w http.ResponseWriter, r *http.Request, ref queries.TreeRef) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetTreeQuery{
		UserID: common.UserIDFrom(r.Context()),
		Tree:   ref,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// DeleteTree handles DELETE /trees/{treeID}
func (h *TreeHandler) DeleteTree(w http.ResponseWriter, r *http.Request) {
	treeID, err := nodeParam(r, "treeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Execute(r.Context(), commands.DeleteTreeCommand{
		UserID: common.UserIDFrom(r.Context()),
		TreeID: treeID,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	removed, _ := result.([]valueobjects.NodeID)
	common.RespondJSON(w, http.StatusOK, DeleteTreeResponse{TreeID: treeID, Removed: removed})
}

// GetElements handles GET /trees/{treeID}/elements. The ETag is the
// fingerprint of the returned elements.
func (h *TreeHandler) GetElements(w http.ResponseWriter, r *http.Request) {
	treeID, err := nodeParam(r, "treeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	structureOnly, err := boolQuery(r, "structureOnly")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetElementsQuery{
		UserID:        common.UserIDFrom(r.Context()),
		Tree:          queries.TreeRef{ID: treeID},
		StructureOnly: structureOnly,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	view := result.(queries.ElementsView)
	etag := `"` + view.Fingerprint + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// GetFills handles GET /trees/{treeID}/fills
func (h *TreeHandler) GetFills(w http.ResponseWriter, r *http.Request) {
	treeID, err := nodeParam(r, "treeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetFillsQuery{
		UserID: common.UserIDFrom(r.Context()),
		Tree:   queries.TreeRef{ID: treeID},
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// etagMatches implements the If-None-Match comparison, including lists
// and the * wildcard
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
