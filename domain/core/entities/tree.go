package entities

import (
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// TreeData is everything needed to project one tree
type TreeData struct {
	Nodes  []Node  `json:"nodes"`
	Edges  []Edge  `json:"edges"`
	Skills []Skill `json:"skills"`
	Groups []Group `json:"groups"`
}

// GraphStructure is TreeData without ratings, so that rating edits
// cannot perturb anything keyed on it.
type GraphStructure struct {
	Nodes  []Node           `json:"nodes"`
	Edges  []Edge           `json:"edges"`
	Skills []StructureSkill `json:"skills"`
	Groups []Group          `json:"groups"`
}

// Structure strips the tree down to its GraphStructure
func (d TreeData) Structure() GraphStructure {
	skills := make([]StructureSkill, len(d.Skills))
	for i, s := range d.Skills {
		skills[i] = StructureSkill{ID: s.ID, Title: s.Title}
	}
	return GraphStructure{
		Nodes:  d.Nodes,
		Edges:  d.Edges,
		Skills: skills,
		Groups: d.Groups,
	}
}

// TreeData widens a structure back to TreeData with zero ratings.
// Only structure-only projection should consume the result.
func (s GraphStructure) TreeData() TreeData {
	skills := make([]Skill, len(s.Skills))
	for i, sk := range s.Skills {
		skills[i] = Skill{ID: sk.ID, Title: sk.Title, Status: valueobjects.StatusWishlist}
	}
	return TreeData{
		Nodes:  s.Nodes,
		Edges:  s.Edges,
		Skills: skills,
		Groups: s.Groups,
	}
}

// NodeIDs lists the ids of all saved nodes in input order
func (d TreeData) NodeIDs() []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		if !n.ID.IsZero() {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// RootTree summarises a tree for listings
type RootTree struct {
	ID   valueobjects.NodeID `json:"id"`
	Name string              `json:"name"`
	Slug string              `json:"slug"`
}

// ResolvedNode is a node joined with its display data.
// Rating is set for skills, Description and AggregateRating for groups.
type ResolvedNode struct {
	Node            Node                      `json:"node"`
	Label           string                    `json:"label"`
	Rating          *valueobjects.Rating      `json:"rating,omitempty"`
	Status          *valueobjects.SkillStatus `json:"status,omitempty"`
	Description     *string                   `json:"description,omitempty"`
	AggregateRating *float64                  `json:"aggregateRating,omitempty"`
}
