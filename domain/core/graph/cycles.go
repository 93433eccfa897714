package graph

import (
	"fmt"
	"strings"

	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// CycleError describes the first parent cycle found
type CycleError struct {
	Path []valueobjects.NodeID
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = id.String()
	}
	return fmt.Sprintf("cycle detected: %s", strings.Join(parts, " -> "))
}

// DetectCycles runs a three-colour depth-first search over parent edges.
// It returns a *CycleError for the first cycle found, nil otherwise.
// Nodes are visited in nodeIDs order so the reported path is stable.
func DetectCycles(nodeIDs []valueobjects.NodeID, edges []entities.Edge) error {
	adj := ChildIDsByParent(edges)

	const (
		white = iota
		grey
		black
	)
	colour := make(map[valueobjects.NodeID]int)
	var stack []valueobjects.NodeID

	var visit func(id valueobjects.NodeID) error
	visit = func(id valueobjects.NodeID) error {
		switch colour[id] {
		case black:
			return nil
		case grey:
			// id is on the stack: the cycle is the suffix starting at it
			for i, s := range stack {
				if s == id {
					path := append([]valueobjects.NodeID{}, stack[i:]...)
					return &CycleError{Path: append(path, id)}
				}
			}
			return &CycleError{Path: []valueobjects.NodeID{id, id}}
		}

		colour[id] = grey
		stack = append(stack, id)
		for _, child := range adj[id] {
			if err := visit(child); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		colour[id] = black
		return nil
	}

	for _, id := range nodeIDs {
		if colour[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}
