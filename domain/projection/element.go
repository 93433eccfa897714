// Package projection turns tree data into the renderer-neutral element
// list a graph front end draws, and patches fills on live elements.
package projection

import (
	"fmt"

	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// ElementGroup tells nodes from edges
type ElementGroup string

const (
	GroupNodes ElementGroup = "nodes"
	GroupEdges ElementGroup = "edges"
)

// Data keys addressable on live elements
const (
	KeyFill = "fill"
)

// flagTrue is how boolean flags are written so that attribute selectors
// like node[isRoot="true"] match. False flags are omitted.
const flagTrue = "true"

// ElementData carries node or edge attributes. Node elements use Label,
// IsRoot, IsNonRootContainer and Fill; edge elements use Source, Target
// and EdgeType.
type ElementData struct {
	ID                 string   `json:"id"`
	Label              string   `json:"label,omitempty"`
	IsRoot             string   `json:"isRoot,omitempty"`
	IsNonRootContainer string   `json:"isNonRootContainer,omitempty"`
	Fill               *float64 `json:"fill,omitempty"`
	Source             string   `json:"source,omitempty"`
	Target             string   `json:"target,omitempty"`
	EdgeType           string   `json:"edgeType,omitempty"`
}

// Element is one node or edge of the projected graph
type Element struct {
	Group ElementGroup `json:"group"`
	Data  ElementData  `json:"data"`
}

func (e Element) IsNode() bool { return e.Group == GroupNodes }
func (e Element) IsEdge() bool { return e.Group == GroupEdges }

// ConceptEdgeID is symmetric in its arguments
func ConceptEdgeID(a, b valueobjects.NodeID) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("e-concept-%d-%d", a, b)
}

// ParentEdgeID is directed
func ParentEdgeID(parent, child valueobjects.NodeID) string {
	return fmt.Sprintf("e-parent-%d-%d", parent, child)
}
