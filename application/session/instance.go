package session

import (
	"sort"

	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/graph"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/domain/projection"
)

type liveElement struct {
	element  projection.Element
	classes  map[string]bool
	selected bool
}

// instance is one mounted graph. It implements projection.LiveElements
// and mirrors every mutation to the renderer.
type instance struct {
	renderer Renderer
	order    []string
	byID     map[string]*liveElement
}

func newInstance(renderer Renderer, elements []projection.Element) *instance {
	inst := &instance{
		renderer: renderer,
		order:    make([]string, 0, len(elements)),
		byID:     make(map[string]*liveElement, len(elements)),
	}
	for _, e := range elements {
		if _, dup := inst.byID[e.Data.ID]; dup {
			continue
		}
		inst.order = append(inst.order, e.Data.ID)
		inst.byID[e.Data.ID] = &liveElement{element: e, classes: make(map[string]bool)}
	}
	return inst
}

func (i *instance) HasElement(id string) bool {
	_, ok := i.byID[id]
	return ok
}

// hasNode reports whether id is a mounted node, not an edge
func (i *instance) hasNode(id string) bool {
	le, ok := i.byID[id]
	return ok && le.element.IsNode()
}

func (i *instance) SetData(id, key string, value interface{}) {
	le, ok := i.byID[id]
	if !ok {
		return
	}
	if key == projection.KeyFill {
		if v, ok := value.(float64); ok {
			le.element.Data.Fill = &v
		}
	}
	i.renderer.PatchData(id, key, value)
}

func (i *instance) RemoveData(id, key string) {
	le, ok := i.byID[id]
	if !ok {
		return
	}
	if key == projection.KeyFill {
		le.element.Data.Fill = nil
	}
	i.renderer.PatchData(id, key, nil)
}

// elements returns the current elements in mount order
func (i *instance) elements() []projection.Element {
	out := make([]projection.Element, 0, len(i.order))
	for _, id := range i.order {
		out = append(out, i.byID[id].element)
	}
	return out
}

// setClass turns class on or off for one element and reports the new
// class list when it changed
func (i *instance) setClass(le *liveElement, class string, on bool) bool {
	if le.classes[class] == on {
		return false
	}
	if on {
		le.classes[class] = true
	} else {
		delete(le.classes, class)
	}
	return true
}

func (i *instance) publishClasses(id string, le *liveElement) {
	classes := make([]string, 0, len(le.classes))
	for c := range le.classes {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	i.renderer.SetClasses(id, classes)
}

// highlight marks the subtree of root and the parent edges inside it,
// dimming everything else
func (i *instance) highlight(root string) {
	members := make(map[string]bool)
	if rootID, err := valueobjects.ParseNodeID(root); err == nil {
		for _, id := range graph.SubtreeOf(rootID, i.parentAdjacency()) {
			members[id.String()] = true
		}
	} else {
		members[root] = true
	}

	for _, id := range i.order {
		le := i.byID[id]
		in := members[id]
		if le.element.IsEdge() {
			in = le.element.Data.EdgeType == string(entities.EdgeTypeParent) &&
				members[le.element.Data.Source] && members[le.element.Data.Target]
		}
		changed := i.setClass(le, ClassHighlight, in)
		changed = i.setClass(le, ClassDimmed, !in) || changed
		if changed {
			i.publishClasses(id, le)
		}
	}
}

// clearHighlight removes both hover classes everywhere
func (i *instance) clearHighlight() {
	for _, id := range i.order {
		le := i.byID[id]
		changed := i.setClass(le, ClassHighlight, false)
		changed = i.setClass(le, ClassDimmed, false) || changed
		if changed {
			i.publishClasses(id, le)
		}
	}
}

// parentAdjacency rebuilds the parent adjacency from the live edges
func (i *instance) parentAdjacency() graph.Adjacency {
	var edges []entities.Edge
	for _, id := range i.order {
		e := i.byID[id].element
		if !e.IsEdge() || e.Data.EdgeType != string(entities.EdgeTypeParent) {
			continue
		}
		parent, err := valueobjects.ParseNodeID(e.Data.Source)
		if err != nil {
			continue
		}
		child, err := valueobjects.ParseNodeID(e.Data.Target)
		if err != nil {
			continue
		}
		edges = append(edges, entities.Edge{ParentID: parent, ChildID: child, Type: entities.EdgeTypeParent})
	}
	return graph.ChildIDsByParent(edges)
}

func (i *instance) selectNode(id string, on bool) {
	le, ok := i.byID[id]
	if !ok || le.selected == on {
		return
	}
	le.selected = on
	i.renderer.SetSelected(id, on)
}

func (i *instance) selectedIDs() []string {
	var out []string
	for _, id := range i.order {
		if i.byID[id].selected {
			out = append(out, id)
		}
	}
	return out
}
