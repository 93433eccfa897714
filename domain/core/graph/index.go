// Package graph derives structure from the flat edge list of a tree:
// adjacency, roots and descendant sets. Everything here is pure and
// considers parent edges only.
package graph

import (
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// Adjacency maps a parent id to its children in edge order
type Adjacency map[valueobjects.NodeID][]valueobjects.NodeID

// Index is the derived structure of one edge list
type Index struct {
	ChildIDsByParent Adjacency
	RootIDs          []valueobjects.NodeID

	childIDs IDSet
}

// BuildIndex computes adjacency and roots in O(N+E). Roots keep the
// order of nodeIDs.
func BuildIndex(nodeIDs []valueobjects.NodeID, edges []entities.Edge) *Index {
	idx := &Index{
		ChildIDsByParent: ChildIDsByParent(edges),
		childIDs:         make(IDSet),
	}
	for _, e := range edges {
		if e.IsParent() {
			idx.childIDs.Add(e.ChildID)
		}
	}
	for _, id := range nodeIDs {
		if !idx.childIDs.Has(id) {
			idx.RootIDs = append(idx.RootIDs, id)
		}
	}
	return idx
}

// IsRoot reports whether id never appears as the child of a parent edge
func (idx *Index) IsRoot(id valueobjects.NodeID) bool {
	return !idx.childIDs.Has(id)
}

// Descendants is DescendantsOf over this index
func (idx *Index) Descendants(start valueobjects.NodeID) IDSet {
	return DescendantsOf(start, idx.ChildIDsByParent)
}

// ChildIDsByParent builds the parent adjacency. Concept edges are ignored.
func ChildIDsByParent(edges []entities.Edge) Adjacency {
	adj := make(Adjacency)
	for _, e := range edges {
		if !e.IsParent() {
			continue
		}
		adj[e.ParentID] = append(adj[e.ParentID], e.ChildID)
	}
	return adj
}
