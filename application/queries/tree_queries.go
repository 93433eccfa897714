package queries

import (
	"fmt"
	"strings"

	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/domain/projection"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
)

// UserCachePrefix is the cache key prefix of every cached view of a user
func UserCachePrefix(userID valueobjects.UserID) string {
	return fmt.Sprintf("user:%d:", userID)
}

func validateUser(userID valueobjects.UserID) error {
	if userID <= 0 {
		return pkgerrors.NewValidationError("user ID is required")
	}
	return nil
}

// TreeRef addresses a root tree by id or, when ID is zero, by slug
type TreeRef struct {
	ID   valueobjects.NodeID `json:"id,omitempty"`
	Slug string              `json:"slug,omitempty"`
}

func (r TreeRef) validate() error {
	if r.ID <= 0 && strings.TrimSpace(r.Slug) == "" {
		return pkgerrors.NewValidationError("tree ID or slug is required")
	}
	return nil
}

func (r TreeRef) String() string {
	if r.ID > 0 {
		return r.ID.String()
	}
	return r.Slug
}

// ListTreesQuery lists the root trees of a user
type ListTreesQuery struct {
	UserID valueobjects.UserID `json:"user_id"`
}

func (q ListTreesQuery) Validate() error  { return validateUser(q.UserID) }
func (q ListTreesQuery) CacheKey() string { return UserCachePrefix(q.UserID) + "trees" }

// GetTreeQuery loads one tree with its resolved nodes
type GetTreeQuery struct {
	UserID valueobjects.UserID `json:"user_id"`
	Tree   TreeRef             `json:"tree"`
}

// Validate validates the query
func (q GetTreeQuery) Validate() error {
	if err := validateUser(q.UserID); err != nil {
		return err
	}
	return q.Tree.validate()
}

func (q GetTreeQuery) CacheKey() string {
	return UserCachePrefix(q.UserID) + "tree:" + q.Tree.String()
}

// TreeView is a tree with everything a client needs to draw it.
// Fingerprint identifies the structure-only projection.
type TreeView struct {
	Tree        entities.RootTree       `json:"tree"`
	Data        entities.TreeData       `json:"data"`
	Structure   entities.GraphStructure `json:"structure"`
	Nodes       []entities.ResolvedNode `json:"nodes"`
	Fingerprint string                  `json:"fingerprint"`
}

// GetElementsQuery projects a tree into diagram elements
type GetElementsQuery struct {
	UserID        valueobjects.UserID `json:"user_id"`
	Tree          TreeRef             `json:"tree"`
	StructureOnly bool                `json:"structure_only"`
}

// Validate validates the query
func (q GetElementsQuery) Validate() error {
	if err := validateUser(q.UserID); err != nil {
		return err
	}
	return q.Tree.validate()
}

func (q GetElementsQuery) CacheKey() string {
	return fmt.Sprintf("%selements:%s:%t", UserCachePrefix(q.UserID), q.Tree, q.StructureOnly)
}

// ElementsView is a projection ready to mount
type ElementsView struct {
	Elements    []projection.Element   `json:"elements"`
	Styles      []projection.StyleRule `json:"styles"`
	Fingerprint string                 `json:"fingerprint"`
}

// GetFillsQuery returns the current fill of every node of a tree
type GetFillsQuery struct {
	UserID valueobjects.UserID `json:"user_id"`
	Tree   TreeRef             `json:"tree"`
}

// Validate validates the query
func (q GetFillsQuery) Validate() error {
	if err := validateUser(q.UserID); err != nil {
		return err
	}
	return q.Tree.validate()
}

func (q GetFillsQuery) CacheKey() string {
	return UserCachePrefix(q.UserID) + "fills:" + q.Tree.String()
}

// FillsView maps node ids to fills. A nil fill means the attribute is
// absent and should be removed.
type FillsView map[valueobjects.NodeID]*float64
