package projection

import (
	"github.com/nicobenz/flowpertoire/domain/core/aggregation"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
)

// Project converts tree data to elements: nodes first, then edges, each
// in input order. With structureOnly no fill is written, so the output
// only changes when nodes, edges or labels change.
func Project(data entities.TreeData, structureOnly bool, opts ...aggregation.Option) []Element {
	agg := aggregation.New(data, opts...)
	return project(data, agg, structureOnly)
}

// ProjectStructure is the structure-only projection of a GraphStructure
func ProjectStructure(s entities.GraphStructure, opts ...aggregation.Option) []Element {
	return Project(s.TreeData(), true, opts...)
}

func project(data entities.TreeData, agg *aggregation.Aggregator, structureOnly bool) []Element {
	idx := agg.Index()
	elements := make([]Element, 0, len(data.Nodes)+len(data.Edges))

	for _, n := range data.Nodes {
		if n.ID.IsZero() {
			continue
		}
		isRoot := idx.IsRoot(n.ID)
		d := ElementData{
			ID:    n.ID.String(),
			Label: agg.Label(n),
		}
		if isRoot {
			d.IsRoot = flagTrue
		}
		if n.IsGroup() && !isRoot {
			d.IsNonRootContainer = flagTrue
		}
		if !structureOnly {
			if v, ok := agg.Fill(n.ID); ok {
				d.Fill = &v
			}
		}
		elements = append(elements, Element{Group: GroupNodes, Data: d})
	}

	seen := make(map[string]struct{}, len(data.Edges))
	for _, e := range data.Edges {
		var id string
		if e.IsParent() {
			id = ParentEdgeID(e.ParentID, e.ChildID)
		} else {
			id = ConceptEdgeID(e.ParentID, e.ChildID)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		elements = append(elements, Element{
			Group: GroupEdges,
			Data: ElementData{
				ID:       id,
				Source:   e.ParentID.String(),
				Target:   e.ChildID.String(),
				EdgeType: string(e.EffectiveType()),
			},
		})
	}
	return elements
}
