// Package aggregation derives proficiency values for the nodes of a tree.
// A leaf's fill comes from its own rating; a container's fill is the
// mean of the leaf ratings anywhere below it.
package aggregation

import (
	"fmt"

	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/graph"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

const maxFill = 100.0

// LeafFill maps a rating onto [0,100]. Out of range ratings are clamped.
func LeafFill(r valueobjects.Rating) float64 {
	return r.Clamped() / valueobjects.MaxRating * maxFill
}

// MissingRecord is reported when a node references a record that is not
// part of the loaded tree.
type MissingRecord struct {
	NodeID valueobjects.NodeID
	Kind   entities.NodeKind
	RefID  int64
}

func (m MissingRecord) String() string {
	return fmt.Sprintf("node %d references missing %s %d", m.NodeID, m.Kind, m.RefID)
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithMissingRecordHook registers a callback for dangling references.
// The hook may fire more than once for the same node.
func WithMissingRecordHook(fn func(MissingRecord)) Option {
	return func(a *Aggregator) {
		a.onMissing = fn
	}
}

// Aggregator answers fill queries for one TreeData. It indexes the data
// once; build a new one when the data changes.
type Aggregator struct {
	nodes  map[valueobjects.NodeID]entities.Node
	skills map[valueobjects.SkillID]entities.Skill
	groups map[valueobjects.GroupID]entities.Group
	index  *graph.Index
	order  []valueobjects.NodeID

	onMissing func(MissingRecord)
}

// New indexes data. Nodes without an id are ignored.
func New(data entities.TreeData, opts ...Option) *Aggregator {
	a := &Aggregator{
		nodes:  make(map[valueobjects.NodeID]entities.Node, len(data.Nodes)),
		skills: make(map[valueobjects.SkillID]entities.Skill, len(data.Skills)),
		groups: make(map[valueobjects.GroupID]entities.Group, len(data.Groups)),
		order:  data.NodeIDs(),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, n := range data.Nodes {
		if !n.ID.IsZero() {
			a.nodes[n.ID] = n
		}
	}
	for _, s := range data.Skills {
		a.skills[s.ID] = s
	}
	for _, g := range data.Groups {
		a.groups[g.ID] = g
	}
	a.index = graph.BuildIndex(a.order, data.Edges)
	return a
}

// Index exposes the structural index built from the data
func (a *Aggregator) Index() *graph.Index {
	return a.index
}

// Skill looks up the record of a skill node
func (a *Aggregator) Skill(n entities.Node) (entities.Skill, bool) {
	ref, ok := n.Variant.(entities.SkillRef)
	if !ok {
		return entities.Skill{}, false
	}
	s, ok := a.skills[ref.SkillID]
	if !ok {
		a.report(MissingRecord{NodeID: n.ID, Kind: entities.NodeKindSkill, RefID: int64(ref.SkillID)})
	}
	return s, ok
}

// Group looks up the record of a group node
func (a *Aggregator) Group(n entities.Node) (entities.Group, bool) {
	ref, ok := n.Variant.(entities.GroupRef)
	if !ok {
		return entities.Group{}, false
	}
	g, ok := a.groups[ref.GroupID]
	if !ok {
		a.report(MissingRecord{NodeID: n.ID, Kind: entities.NodeKindGroup, RefID: int64(ref.GroupID)})
	}
	return g, ok
}

// ContainerFill is the mean clamped rating of the skills below nodeID,
// scaled to [0,100]. Nested groups contribute only through their own
// skills. A subtree without rated skills yields 0.
func (a *Aggregator) ContainerFill(nodeID valueobjects.NodeID) float64 {
	var sum float64
	var count int
	for id := range a.index.Descendants(nodeID) {
		n, ok := a.nodes[id]
		if !ok || !n.IsSkill() {
			continue
		}
		s, ok := a.Skill(n)
		if !ok {
			continue
		}
		sum += s.Rating.Clamped()
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) / valueobjects.MaxRating * maxFill
}

// AggregateRating converts ContainerFill back to the 0..5 scale
func (a *Aggregator) AggregateRating(nodeID valueobjects.NodeID) float64 {
	return a.ContainerFill(nodeID) / maxFill * valueobjects.MaxRating
}

// Fill is the fill of any node. ok is false for a skill whose record is
// missing or a node that is not part of the data.
func (a *Aggregator) Fill(nodeID valueobjects.NodeID) (float64, bool) {
	n, ok := a.nodes[nodeID]
	if !ok {
		return 0, false
	}
	switch n.Variant.(type) {
	case entities.SkillRef:
		s, ok := a.Skill(n)
		if !ok {
			return 0, false
		}
		return LeafFill(s.Rating), true
	case entities.GroupRef:
		return a.ContainerFill(nodeID), true
	default:
		return 0, false
	}
}

// Fills computes the fill of every node in one pass. Nodes without a
// determinable fill map to nil.
func (a *Aggregator) Fills() map[valueobjects.NodeID]*float64 {
	out := make(map[valueobjects.NodeID]*float64, len(a.order))
	for _, id := range a.order {
		if v, ok := a.Fill(id); ok {
			out[id] = &v
		} else {
			out[id] = nil
		}
	}
	return out
}

// Label is the display name of a node, falling back to "Node <id>"
func (a *Aggregator) Label(n entities.Node) string {
	switch n.Variant.(type) {
	case entities.SkillRef:
		if s, ok := a.Skill(n); ok {
			return s.Title
		}
	case entities.GroupRef:
		if g, ok := a.Group(n); ok {
			return g.Label
		}
	}
	return fmt.Sprintf("Node %d", n.ID)
}

// Resolve joins a node with its display data
func (a *Aggregator) Resolve(n entities.Node) entities.ResolvedNode {
	r := entities.ResolvedNode{Node: n, Label: a.Label(n)}
	switch v := n.Variant.(type) {
	case entities.SkillRef:
		if s, ok := a.skills[v.SkillID]; ok {
			rating, status := s.Rating, s.Status
			r.Rating = &rating
			r.Status = &status
		}
	case entities.GroupRef:
		if g, ok := a.groups[v.GroupID]; ok {
			r.Description = g.Description
		}
		agg := a.AggregateRating(n.ID)
		r.AggregateRating = &agg
	}
	return r
}

// ResolveAll resolves every saved node in input order
func (a *Aggregator) ResolveAll() []entities.ResolvedNode {
	out := make([]entities.ResolvedNode, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.Resolve(a.nodes[id]))
	}
	return out
}

func (a *Aggregator) report(m MissingRecord) {
	if a.onMissing != nil {
		a.onMissing(m)
	}
}
