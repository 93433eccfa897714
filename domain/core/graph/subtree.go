package graph

import (
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// DescendantsOf returns every id reachable from start by one or more
// parent hops. start is never part of the result, even when malformed
// input loops back to it, and each id is expanded at most once so the
// walk terminates on any input.
func DescendantsOf(start valueobjects.NodeID, childIDsByParent Adjacency) IDSet {
	out := make(IDSet)
	for _, id := range walk(start, childIDsByParent)[1:] {
		out.Add(id)
	}
	return out
}

// SubtreeOf returns start followed by its descendants in breadth-first order
func SubtreeOf(start valueobjects.NodeID, childIDsByParent Adjacency) []valueobjects.NodeID {
	return walk(start, childIDsByParent)
}

func walk(start valueobjects.NodeID, adj Adjacency) []valueobjects.NodeID {
	visited := NewIDSet(start)
	order := []valueobjects.NodeID{start}

	for i := 0; i < len(order); i++ {
		for _, child := range adj[order[i]] {
			if visited.Has(child) {
				continue
			}
			visited.Add(child)
			order = append(order, child)
		}
	}
	return order
}
