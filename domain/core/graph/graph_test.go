package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

type nid = valueobjects.NodeID

func parent(p, c nid) entities.Edge {
	return entities.Edge{ParentID: p, ChildID: c, Type: entities.EdgeTypeParent}
}

func concept(a, b nid) entities.Edge {
	return entities.Edge{ParentID: a, ChildID: b, Type: entities.EdgeTypeConcept}
}

func TestBuildIndex(t *testing.T) {
	tests := []struct {
		name      string
		nodes     []nid
		edges     []entities.Edge
		wantRoots []nid
	}{
		{
			name:      "single parent edge",
			nodes:     []nid{1, 2},
			edges:     []entities.Edge{parent(1, 2)},
			wantRoots: []nid{1},
		},
		{
			name:      "concept edge does not make a child",
			nodes:     []nid{1, 2},
			edges:     []entities.Edge{concept(1, 2)},
			wantRoots: []nid{1, 2},
		},
		{
			name:      "empty type is parent",
			nodes:     []nid{5, 6},
			edges:     []entities.Edge{{ParentID: 5, ChildID: 6}},
			wantRoots: []nid{5},
		},
		{
			name:      "forest keeps node order",
			nodes:     []nid{9, 3, 4, 7},
			edges:     []entities.Edge{parent(3, 4)},
			wantRoots: []nid{9, 3, 7},
		},
		{
			name:  "no roots in a pure cycle",
			nodes: []nid{1, 2},
			edges: []entities.Edge{parent(1, 2), parent(2, 1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := BuildIndex(tt.nodes, tt.edges)
			assert.Equal(t, tt.wantRoots, idx.RootIDs)

			children := NewIDSet()
			for _, e := range tt.edges {
				if e.IsParent() {
					children.Add(e.ChildID)
				}
			}
			for _, n := range tt.nodes {
				assert.Equal(t, !children.Has(n), idx.IsRoot(n), "root invariant for %d", n)
			}
		})
	}
}

func TestChildIDsByParentPreservesEdgeOrder(t *testing.T) {
	adj := ChildIDsByParent([]entities.Edge{parent(1, 4), concept(1, 9), parent(1, 2), parent(1, 3)})
	assert.Equal(t, []nid{4, 2, 3}, adj[1])
}

func TestDescendantsOf(t *testing.T) {
	adj := ChildIDsByParent([]entities.Edge{
		parent(1, 2), parent(2, 3), parent(2, 4), parent(1, 5), parent(5, 4),
	})

	t.Run("full subtree", func(t *testing.T) {
		got := DescendantsOf(1, adj)
		assert.Equal(t, []nid{2, 3, 4, 5}, got.Sorted())
		assert.False(t, got.Has(1))
	})

	t.Run("leaf has no descendants", func(t *testing.T) {
		assert.Equal(t, 0, DescendantsOf(3, adj).Len())
	})

	t.Run("unknown start", func(t *testing.T) {
		assert.Equal(t, 0, DescendantsOf(42, adj).Len())
	})

	t.Run("cycle back to start terminates without start", func(t *testing.T) {
		cyclic := ChildIDsByParent([]entities.Edge{parent(1, 2), parent(2, 3), parent(3, 1)})
		got := DescendantsOf(1, cyclic)
		assert.Equal(t, []nid{2, 3}, got.Sorted())
	})

	t.Run("self loop", func(t *testing.T) {
		got := DescendantsOf(7, ChildIDsByParent([]entities.Edge{parent(7, 7)}))
		assert.Equal(t, 0, got.Len())
	})

	t.Run("concept edges are never crossed", func(t *testing.T) {
		edges := []entities.Edge{concept(1, 2)}
		idx := BuildIndex([]nid{1, 2}, edges)
		assert.Equal(t, []nid{1, 2}, idx.RootIDs)
		assert.Equal(t, 0, idx.Descendants(1).Len())
		assert.Equal(t, 0, idx.Descendants(2).Len())
	})
}

func TestSubtreeOf(t *testing.T) {
	adj := ChildIDsByParent([]entities.Edge{parent(1, 2), parent(1, 3), parent(2, 4), parent(3, 4)})
	assert.Equal(t, []nid{1, 2, 3, 4}, SubtreeOf(1, adj))
	assert.Equal(t, []nid{4}, SubtreeOf(4, adj))
}

func TestDetectCycles(t *testing.T) {
	t.Run("dag with shared child", func(t *testing.T) {
		err := DetectCycles([]nid{1, 2, 3, 4}, []entities.Edge{parent(1, 2), parent(1, 3), parent(2, 4), parent(3, 4)})
		assert.NoError(t, err)
	})

	t.Run("concept loops are fine", func(t *testing.T) {
		err := DetectCycles([]nid{1, 2}, []entities.Edge{parent(1, 2), concept(2, 1)})
		assert.NoError(t, err)
	})

	t.Run("reports the cycle path", func(t *testing.T) {
		err := DetectCycles([]nid{1, 2, 3}, []entities.Edge{parent(1, 2), parent(2, 3), parent(3, 2)})
		require.Error(t, err)

		var cycleErr *CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []nid{2, 3, 2}, cycleErr.Path)
		assert.Equal(t, "cycle detected: 2 -> 3 -> 2", err.Error())
	})
}
