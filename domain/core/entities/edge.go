package entities

import (
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// EdgeType distinguishes structural edges from semantic links
type EdgeType string

const (
	// EdgeTypeParent is directed and defines the DAG
	EdgeTypeParent EdgeType = "parent"
	// EdgeTypeConcept links the same underlying skill across groups. Undirected.
	EdgeTypeConcept EdgeType = "concept"
)

// Edge connects two nodes. An empty Type is read as parent.
type Edge struct {
	ParentID  valueobjects.NodeID `json:"parentId"`
	ChildID   valueobjects.NodeID `json:"childId"`
	Type      EdgeType            `json:"type,omitempty"`
	SortOrder int                 `json:"sortOrder"`
}

// EffectiveType resolves the empty type to parent
func (e Edge) EffectiveType() EdgeType {
	if e.Type == "" {
		return EdgeTypeParent
	}
	return e.Type
}

func (e Edge) IsParent() bool {
	return e.EffectiveType() == EdgeTypeParent
}

// Touches reports whether id is one of the endpoints
func (e Edge) Touches(id valueobjects.NodeID) bool {
	return e.ParentID == id || e.ChildID == id
}

// SameLink reports whether both edges describe the same relation.
// Concept links match regardless of direction.
func (e Edge) SameLink(o Edge) bool {
	if e.EffectiveType() != o.EffectiveType() {
		return false
	}
	if e.ParentID == o.ParentID && e.ChildID == o.ChildID {
		return true
	}
	return e.EffectiveType() == EdgeTypeConcept && e.ParentID == o.ChildID && e.ChildID == o.ParentID
}
