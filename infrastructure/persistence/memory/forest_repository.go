// Package memory keeps forests in process memory. It backs the tests and
// the default development store.
package memory

import (
	"context"
	"sync"

	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

type edgeKey struct {
	typ    entities.EdgeType
	parent valueobjects.NodeID
	child  valueobjects.NodeID
}

func keyOf(e entities.Edge) edgeKey {
	return edgeKey{typ: e.EffectiveType(), parent: e.ParentID, child: e.ChildID}
}

// ForestRepository is a map-backed ports.ForestRepository
type ForestRepository struct {
	mu     sync.RWMutex
	nodes  map[valueobjects.NodeID]entities.Node
	edges  map[edgeKey]entities.Edge
	skills map[valueobjects.SkillID]entities.Skill
	groups map[valueobjects.GroupID]entities.Group
	seqs   map[aggregates.Sequence]int64
}

// NewForestRepository creates an empty store
func NewForestRepository() *ForestRepository {
	return &ForestRepository{
		nodes:  make(map[valueobjects.NodeID]entities.Node),
		edges:  make(map[edgeKey]entities.Edge),
		skills: make(map[valueobjects.SkillID]entities.Skill),
		groups: make(map[valueobjects.GroupID]entities.Group),
		seqs:   make(map[aggregates.Sequence]int64),
	}
}

// NextID returns the next value of the named sequence, starting at 1
func (r *ForestRepository) NextID(ctx context.Context, seq aggregates.Sequence) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs[seq]++
	return r.seqs[seq], nil
}

// Load returns the user's nodes, the edges between them and the records
// they reference
func (r *ForestRepository) Load(ctx context.Context, userID valueobjects.UserID) (*aggregates.Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		nodes  []entities.Node
		edges  []entities.Edge
		skills []entities.Skill
		groups []entities.Group
	)
	owned := make(map[valueobjects.NodeID]bool)
	for id, n := range r.nodes {
		if n.UserID != userID {
			continue
		}
		owned[id] = true
		nodes = append(nodes, n)
		switch v := n.Variant.(type) {
		case entities.SkillRef:
			if s, ok := r.skills[v.SkillID]; ok {
				skills = append(skills, s)
			}
		case entities.GroupRef:
			if g, ok := r.groups[v.GroupID]; ok {
				groups = append(groups, g)
			}
		}
	}
	for _, e := range r.edges {
		if owned[e.ParentID] && owned[e.ChildID] {
			edges = append(edges, e)
		}
	}

	return aggregates.ReconstructForest(userID, nodes, edges, skills, groups), nil
}

// Save applies the forest's pending changes atomically
func (r *ForestRepository) Save(ctx context.Context, forest *aggregates.Forest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range forest.Changes() {
		r.apply(c)
	}
	forest.MarkCommitted()
	return nil
}

func (r *ForestRepository) apply(c aggregates.Change) {
	del := c.Op == aggregates.OpDelete
	switch {
	case c.Node != nil:
		if del {
			delete(r.nodes, c.Node.ID)
		} else {
			r.nodes[c.Node.ID] = *c.Node
		}
	case c.Edge != nil:
		if del {
			delete(r.edges, keyOf(*c.Edge))
		} else {
			r.edges[keyOf(*c.Edge)] = *c.Edge
		}
	case c.Skill != nil:
		if del {
			delete(r.skills, c.Skill.ID)
		} else {
			r.skills[c.Skill.ID] = *c.Skill
		}
	case c.Group != nil:
		if del {
			delete(r.groups, c.Group.ID)
		} else {
			r.groups[c.Group.ID] = *c.Group
		}
	}
}
