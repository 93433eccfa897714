package aggregates

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nicobenz/flowpertoire/domain/config"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/graph"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/domain/events"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
)

// Sequence names an id counter
type Sequence string

const (
	SeqNode  Sequence = "node"
	SeqSkill Sequence = "skill"
	SeqGroup Sequence = "group"
)

// IDAllocator hands out ids for new records
type IDAllocator interface {
	NextID(ctx context.Context, seq Sequence) (int64, error)
}

// Forest is the aggregate root for all skill trees of one user. It is
// loaded in one read, enforces the structural rules on every write and
// records what changed for the repository to persist.
type Forest struct {
	userID valueobjects.UserID
	nodes  map[valueobjects.NodeID]entities.Node
	edges  []entities.Edge
	skills map[valueobjects.SkillID]entities.Skill
	groups map[valueobjects.GroupID]entities.Group

	changes []Change
	events  []events.DomainEvent
	limits  *config.DomainConfig
	now     func() time.Time
}

// NewForest creates an empty forest
func NewForest(userID valueobjects.UserID) *Forest {
	return &Forest{
		userID: userID,
		nodes:  make(map[valueobjects.NodeID]entities.Node),
		skills: make(map[valueobjects.SkillID]entities.Skill),
		groups: make(map[valueobjects.GroupID]entities.Group),
		limits: config.DefaultDomainConfig(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ReconstructForest rebuilds a forest from stored records without
// recording changes. Nodes of other users are ignored.
func ReconstructForest(
	userID valueobjects.UserID,
	nodes []entities.Node,
	edges []entities.Edge,
	skills []entities.Skill,
	groups []entities.Group,
) *Forest {
	f := NewForest(userID)
	for _, n := range nodes {
		if n.UserID == userID && !n.ID.IsZero() {
			f.nodes[n.ID] = n
		}
	}
	for _, e := range edges {
		if _, ok := f.nodes[e.ParentID]; !ok {
			continue
		}
		if _, ok := f.nodes[e.ChildID]; !ok {
			continue
		}
		f.edges = append(f.edges, e)
	}
	for _, s := range skills {
		f.skills[s.ID] = s
	}
	for _, g := range groups {
		f.groups[g.ID] = g
	}
	return f
}

// WithLimits replaces the default forest limits
func (f *Forest) WithLimits(limits *config.DomainConfig) *Forest {
	if limits != nil {
		f.limits = limits
	}
	return f
}

// WithClock replaces the time source, for tests
func (f *Forest) WithClock(now func() time.Time) *Forest {
	f.now = now
	return f
}

func (f *Forest) UserID() valueobjects.UserID { return f.userID }

// Snapshot returns every record, nodes ordered by id and edges in
// canonical order.
func (f *Forest) Snapshot() entities.TreeData {
	data := entities.TreeData{
		Nodes: f.sortedNodes(func(entities.Node) bool { return true }),
		Edges: sortEdges(append([]entities.Edge(nil), f.edges...)),
	}
	for _, s := range f.skills {
		data.Skills = append(data.Skills, s)
	}
	for _, g := range f.groups {
		data.Groups = append(data.Groups, g)
	}
	sort.Slice(data.Skills, func(i, j int) bool { return data.Skills[i].ID < data.Skills[j].ID })
	sort.Slice(data.Groups, func(i, j int) bool { return data.Groups[i].ID < data.Groups[j].ID })
	return data
}

// Node looks up a node of this forest
func (f *Forest) Node(id valueobjects.NodeID) (entities.Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// RootTrees lists the root groups ordered by id
func (f *Forest) RootTrees() []entities.RootTree {
	children := f.parentChildSet()
	roots := f.sortedNodes(func(n entities.Node) bool {
		return n.IsGroup() && !children.Has(n.ID)
	})

	out := make([]entities.RootTree, 0, len(roots))
	for _, n := range roots {
		name := f.groupLabel(n)
		out = append(out, entities.RootTree{ID: n.ID, Name: name, Slug: valueobjects.Slugify(name)})
	}
	return out
}

// RootBySlug finds the first root, by id, whose slug matches
func (f *Forest) RootBySlug(slug string) (entities.RootTree, error) {
	for _, r := range f.RootTrees() {
		if r.Slug == slug {
			return r, nil
		}
	}
	return entities.RootTree{}, pkgerrors.ErrTreeNotFound(slug)
}

// TreeData returns the root, its descendants, the edges with both ends
// inside and the records they reference.
func (f *Forest) TreeData(rootID valueobjects.NodeID) (entities.TreeData, error) {
	if !f.isRootGroup(rootID) {
		return entities.TreeData{}, pkgerrors.ErrTreeNotFound(rootID.String())
	}

	members := graph.NewIDSet(graph.SubtreeOf(rootID, graph.ChildIDsByParent(f.edges))...)
	data := entities.TreeData{
		Nodes: f.sortedNodes(func(n entities.Node) bool { return members.Has(n.ID) }),
	}
	for _, e := range f.edges {
		if members.Has(e.ParentID) && members.Has(e.ChildID) {
			data.Edges = append(data.Edges, e)
		}
	}
	data.Edges = sortEdges(data.Edges)

	for _, n := range data.Nodes {
		switch v := n.Variant.(type) {
		case entities.SkillRef:
			if s, ok := f.skills[v.SkillID]; ok {
				data.Skills = append(data.Skills, s)
			}
		case entities.GroupRef:
			if g, ok := f.groups[v.GroupID]; ok {
				data.Groups = append(data.Groups, g)
			}
		}
	}
	return data, nil
}

// CreateRootTree creates a new top-level group
func (f *Forest) CreateRootTree(ctx context.Context, ids IDAllocator, label string, description *string) (entities.RootTree, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return entities.RootTree{}, pkgerrors.ErrLabelRequired()
	}
	if err := checkLength("label", label, f.limits.MaxLabelLength); err != nil {
		return entities.RootTree{}, err
	}
	description, err := f.cleanDescription(description)
	if err != nil {
		return entities.RootTree{}, err
	}

	node, _, err := f.newGroup(ctx, ids, label, description)
	if err != nil {
		return entities.RootTree{}, err
	}

	tree := entities.RootTree{ID: node.ID, Name: label, Slug: valueobjects.Slugify(label)}
	f.raise(events.NewTreeCreated(f.userID, tree.ID, tree.Name, tree.Slug, f.now()))
	return tree, nil
}

// AddChildGroup creates a group below parentID
func (f *Forest) AddChildGroup(ctx context.Context, ids IDAllocator, parentID valueobjects.NodeID, label string, description *string) (entities.Node, error) {
	label = strings.TrimSpace(label)
	if parentID.IsZero() || label == "" {
		return entities.Node{}, pkgerrors.ErrParentAndLabelRequired()
	}
	if err := checkLength("label", label, f.limits.MaxLabelLength); err != nil {
		return entities.Node{}, err
	}
	description, err := f.cleanDescription(description)
	if err != nil {
		return entities.Node{}, err
	}
	if err := f.checkCanAddChild(parentID); err != nil {
		return entities.Node{}, err
	}

	node, group, err := f.newGroup(ctx, ids, label, description)
	if err != nil {
		return entities.Node{}, err
	}
	f.addParentEdge(parentID, node.ID)

	f.raise(events.NewGroupAdded(f.userID, f.treeIDsOf(node.ID), node.ID, parentID, group.ID, label, f.now()))
	return node, nil
}

// AddChildSkill creates an unrated wishlist skill below parentID
func (f *Forest) AddChildSkill(ctx context.Context, ids IDAllocator, parentID valueobjects.NodeID, title string) (entities.Node, error) {
	title = strings.TrimSpace(title)
	if parentID.IsZero() || title == "" {
		return entities.Node{}, pkgerrors.ErrParentAndTitleRequired()
	}
	if err := checkLength("title", title, f.limits.MaxTitleLength); err != nil {
		return entities.Node{}, err
	}
	if err := f.checkCanAddChild(parentID); err != nil {
		return entities.Node{}, err
	}

	skillID, err := ids.NextID(ctx, SeqSkill)
	if err != nil {
		return entities.Node{}, pkgerrors.Wrap(err, "allocate skill id")
	}
	nodeID, err := ids.NextID(ctx, SeqNode)
	if err != nil {
		return entities.Node{}, pkgerrors.Wrap(err, "allocate node id")
	}

	now := f.now()
	skill := entities.Skill{
		ID:        valueobjects.SkillID(skillID),
		Title:     title,
		Rating:    0,
		Status:    valueobjects.StatusWishlist,
		CreatedAt: now,
		UpdatedAt: now,
	}
	node := entities.NewSkillNode(f.userID, skill.ID)
	node.ID = valueobjects.NodeID(nodeID)
	node.CreatedAt, node.UpdatedAt = now, now

	f.skills[skill.ID] = skill
	f.nodes[node.ID] = node
	f.record(Change{Op: OpInsert, Skill: &skill})
	f.record(Change{Op: OpInsert, Node: &node})
	f.addParentEdge(parentID, node.ID)

	f.raise(events.NewSkillAdded(f.userID, f.treeIDsOf(node.ID), node.ID, parentID, skill.ID, title, now))
	return node, nil
}

// SkillPatch lists the skill fields to change. Nil fields are kept.
type SkillPatch struct {
	Title           *string
	Rating          *int
	Status          *valueobjects.SkillStatus
	FirstAchievedAt *time.Time
}

// UpdateSkill applies patch to the skill behind nodeID. Reaching
// mastered without a recorded date stamps FirstAchievedAt.
func (f *Forest) UpdateSkill(nodeID valueobjects.NodeID, patch SkillPatch) (entities.Skill, error) {
	n, ok := f.nodes[nodeID]
	if !ok {
		return entities.Skill{}, pkgerrors.ErrNodeNotFound(int64(nodeID))
	}
	ref, ok := n.Variant.(entities.SkillRef)
	if !ok {
		return entities.Skill{}, pkgerrors.ErrNotASkill(int64(nodeID))
	}
	skill, ok := f.skills[ref.SkillID]
	if !ok {
		return entities.Skill{}, pkgerrors.NewNotFoundError("skill record").
			WithCode(pkgerrors.CodeNodeNotFound).
			WithDetail("skill_id", int64(ref.SkillID))
	}

	titleChanged := false
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return entities.Skill{}, pkgerrors.NewValidationError("Title is required").WithCode(pkgerrors.CodeLabelRequired)
		}
		if err := checkLength("title", title, f.limits.MaxTitleLength); err != nil {
			return entities.Skill{}, err
		}
		titleChanged = title != skill.Title
		skill.Title = title
	}
	if patch.Rating != nil {
		r, err := valueobjects.NewRating(*patch.Rating)
		if err != nil {
			return entities.Skill{}, pkgerrors.NewValidationError(err.Error()).WithCode(pkgerrors.CodeInvalidRating)
		}
		skill.Rating = r
	}
	if patch.Status != nil {
		s, err := valueobjects.ParseSkillStatus(string(*patch.Status))
		if err != nil {
			return entities.Skill{}, pkgerrors.NewValidationError(err.Error()).WithCode(pkgerrors.CodeInvalidStatus)
		}
		skill.Status = s
	}
	now := f.now()
	if patch.FirstAchievedAt != nil {
		at := patch.FirstAchievedAt.UTC()
		skill.FirstAchievedAt = &at
	}
	if skill.Status == valueobjects.StatusMastered && skill.FirstAchievedAt == nil {
		stamp := now
		skill.FirstAchievedAt = &stamp
	}
	skill.UpdatedAt = now

	f.skills[skill.ID] = skill
	f.record(Change{Op: OpUpdate, Skill: &skill})
	f.raise(events.NewSkillUpdated(f.userID, f.treeIDsOf(nodeID), nodeID, skill.ID, skill.Rating, skill.Status, titleChanged, now))
	return skill, nil
}

// LinkConcept adds an undirected concept edge between two nodes
func (f *Forest) LinkConcept(a, b valueobjects.NodeID) (entities.Edge, error) {
	if err := f.requireNode(a); err != nil {
		return entities.Edge{}, err
	}
	if err := f.requireNode(b); err != nil {
		return entities.Edge{}, err
	}
	if a == b {
		return entities.Edge{}, pkgerrors.ErrSelfReferentialEdge()
	}

	edge := entities.Edge{ParentID: a, ChildID: b, Type: entities.EdgeTypeConcept}
	if f.hasLink(edge) {
		return entities.Edge{}, pkgerrors.ErrDuplicateEdge()
	}
	if len(f.edges) >= f.limits.MaxEdgesPerForest {
		return entities.Edge{}, pkgerrors.ErrLimitExceeded("edges", f.limits.MaxEdgesPerForest)
	}
	f.edges = append(f.edges, edge)
	f.record(Change{Op: OpInsert, Edge: &edge})

	trees := mergeIDs(f.treeIDsOf(a), f.treeIDsOf(b))
	f.raise(events.NewConceptLinked(f.userID, trees, a, b, f.now()))
	return edge, nil
}

// AttachChild gives an existing node another parent group
func (f *Forest) AttachChild(parentID, childID valueobjects.NodeID) (entities.Edge, error) {
	if err := f.requireGroup(parentID); err != nil {
		return entities.Edge{}, err
	}
	if err := f.requireNode(childID); err != nil {
		return entities.Edge{}, err
	}
	if parentID == childID {
		return entities.Edge{}, pkgerrors.ErrSelfReferentialEdge()
	}

	candidate := entities.Edge{ParentID: parentID, ChildID: childID, Type: entities.EdgeTypeParent}
	if f.hasLink(candidate) {
		return entities.Edge{}, pkgerrors.ErrDuplicateEdge()
	}
	if err := f.checkEdgeLimits(parentID); err != nil {
		return entities.Edge{}, err
	}
	if err := graph.DetectCycles(f.nodeIDs(), append(append([]entities.Edge(nil), f.edges...), candidate)); err != nil {
		return entities.Edge{}, pkgerrors.ErrCyclicDependency().WithCause(err)
	}

	edge := f.addParentEdge(parentID, childID)
	f.raise(events.NewChildAttached(f.userID, f.treeIDsOf(childID), parentID, childID, f.now()))
	return edge, nil
}

// DeleteRootTree removes a root with its whole subtree, every edge that
// touches a removed node and the records the removed nodes own.
func (f *Forest) DeleteRootTree(rootID valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	if !f.isRootGroup(rootID) {
		return nil, pkgerrors.ErrTreeNotOwned(rootID.String())
	}

	removed := graph.SubtreeOf(rootID, graph.ChildIDsByParent(f.edges))
	gone := graph.NewIDSet(removed...)

	kept := f.edges[:0]
	for _, e := range f.edges {
		if gone.Has(e.ParentID) || gone.Has(e.ChildID) {
			f.record(Change{Op: OpDelete, Edge: &e})
			continue
		}
		kept = append(kept, e)
	}
	f.edges = kept

	for _, id := range removed {
		n := f.nodes[id]
		delete(f.nodes, id)
		f.record(Change{Op: OpDelete, Node: &n})

		switch v := n.Variant.(type) {
		case entities.SkillRef:
			if s, ok := f.skills[v.SkillID]; ok {
				delete(f.skills, v.SkillID)
				f.record(Change{Op: OpDelete, Skill: &s})
			}
		case entities.GroupRef:
			if g, ok := f.groups[v.GroupID]; ok {
				delete(f.groups, v.GroupID)
				f.record(Change{Op: OpDelete, Group: &g})
			}
		}
	}

	f.raise(events.NewTreeDeleted(f.userID, rootID, removed, f.now()))
	return removed, nil
}

// Changes returns the writes recorded since the last commit
func (f *Forest) Changes() []Change {
	out := make([]Change, len(f.changes))
	copy(out, f.changes)
	return out
}

// Events returns the domain events raised since the last commit
func (f *Forest) Events() []events.DomainEvent {
	out := make([]events.DomainEvent, len(f.events))
	copy(out, f.events)
	return out
}

// MarkCommitted clears changes and events once they are persisted
func (f *Forest) MarkCommitted() {
	f.changes = nil
	f.events = nil
}

func (f *Forest) newGroup(ctx context.Context, ids IDAllocator, label string, description *string) (entities.Node, entities.Group, error) {
	if len(f.nodes) >= f.limits.MaxNodesPerForest {
		return entities.Node{}, entities.Group{}, pkgerrors.ErrLimitExceeded("nodes", f.limits.MaxNodesPerForest)
	}
	groupID, err := ids.NextID(ctx, SeqGroup)
	if err != nil {
		return entities.Node{}, entities.Group{}, pkgerrors.Wrap(err, "allocate group id")
	}
	nodeID, err := ids.NextID(ctx, SeqNode)
	if err != nil {
		return entities.Node{}, entities.Group{}, pkgerrors.Wrap(err, "allocate node id")
	}

	now := f.now()
	group := entities.Group{
		ID:          valueobjects.GroupID(groupID),
		Label:       label,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	node := entities.NewGroupNode(f.userID, group.ID)
	node.ID = valueobjects.NodeID(nodeID)
	node.CreatedAt, node.UpdatedAt = now, now

	f.groups[group.ID] = group
	f.nodes[node.ID] = node
	f.record(Change{Op: OpInsert, Group: &group})
	f.record(Change{Op: OpInsert, Node: &node})
	return node, group, nil
}

func (f *Forest) addParentEdge(parentID, childID valueobjects.NodeID) entities.Edge {
	edge := entities.Edge{
		ParentID:  parentID,
		ChildID:   childID,
		Type:      entities.EdgeTypeParent,
		SortOrder: len(graph.ChildIDsByParent(f.edges)[parentID]),
	}
	f.edges = append(f.edges, edge)
	f.record(Change{Op: OpInsert, Edge: &edge})
	return edge
}

// checkCanAddChild verifies parentID is a group with room for another
// child and the forest has room for another node.
func (f *Forest) checkCanAddChild(parentID valueobjects.NodeID) error {
	if err := f.requireGroup(parentID); err != nil {
		return err
	}
	if len(f.nodes) >= f.limits.MaxNodesPerForest {
		return pkgerrors.ErrLimitExceeded("nodes", f.limits.MaxNodesPerForest)
	}
	return f.checkEdgeLimits(parentID)
}

func (f *Forest) checkEdgeLimits(parentID valueobjects.NodeID) error {
	if len(f.edges) >= f.limits.MaxEdgesPerForest {
		return pkgerrors.ErrLimitExceeded("edges", f.limits.MaxEdgesPerForest)
	}
	if n := len(graph.ChildIDsByParent(f.edges)[parentID]); n >= f.limits.MaxChildrenPerGroup {
		return pkgerrors.ErrLimitExceeded("children", f.limits.MaxChildrenPerGroup)
	}
	return nil
}

func (f *Forest) requireNode(id valueobjects.NodeID) error {
	if _, ok := f.nodes[id]; !ok {
		return pkgerrors.ErrNodeNotFound(int64(id))
	}
	return nil
}

func (f *Forest) requireGroup(id valueobjects.NodeID) error {
	n, ok := f.nodes[id]
	if !ok {
		return pkgerrors.ErrNodeNotFound(int64(id))
	}
	if !n.IsGroup() {
		return pkgerrors.ErrParentNotGroup(int64(id))
	}
	return nil
}

func (f *Forest) isRootGroup(id valueobjects.NodeID) bool {
	n, ok := f.nodes[id]
	return ok && n.IsGroup() && !f.parentChildSet().Has(id)
}

func (f *Forest) hasLink(edge entities.Edge) bool {
	for _, e := range f.edges {
		if e.SameLink(edge) {
			return true
		}
	}
	return false
}

func (f *Forest) parentChildSet() graph.IDSet {
	set := graph.NewIDSet()
	for _, e := range f.edges {
		if e.IsParent() {
			set.Add(e.ChildID)
		}
	}
	return set
}

// treeIDsOf walks parent edges upwards and returns the roots above id,
// id itself included when it is a root.
func (f *Forest) treeIDsOf(id valueobjects.NodeID) []valueobjects.NodeID {
	parents := make(graph.Adjacency)
	for _, e := range f.edges {
		if e.IsParent() {
			parents[e.ChildID] = append(parents[e.ChildID], e.ParentID)
		}
	}

	var roots []valueobjects.NodeID
	for _, a := range graph.SubtreeOf(id, parents) {
		if len(parents[a]) == 0 {
			roots = append(roots, a)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

func (f *Forest) groupLabel(n entities.Node) string {
	if ref, ok := n.Variant.(entities.GroupRef); ok {
		if g, ok := f.groups[ref.GroupID]; ok {
			return g.Label
		}
	}
	return "Node " + n.ID.String()
}

func (f *Forest) nodeIDs() []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, 0, len(f.nodes))
	for id := range f.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *Forest) sortedNodes(keep func(entities.Node) bool) []entities.Node {
	var out []entities.Node
	for _, id := range f.nodeIDs() {
		if n := f.nodes[id]; keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func (f *Forest) record(c Change) {
	f.changes = append(f.changes, c)
}

func (f *Forest) raise(e events.DomainEvent) {
	f.events = append(f.events, e)
}

// cleanDescription trims a description; blank becomes nil
func (f *Forest) cleanDescription(description *string) (*string, error) {
	if description == nil {
		return nil, nil
	}
	d := strings.TrimSpace(*description)
	if err := checkLength("description", d, f.limits.MaxDescriptionLength); err != nil {
		return nil, err
	}
	if d == "" {
		return nil, nil
	}
	return &d, nil
}

func checkLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return pkgerrors.ErrTextTooLong(field, limit)
	}
	return nil
}

// sortEdges orders edges by parent, then sibling order, then child and type.
func sortEdges(edges []entities.Edge) []entities.Edge {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if a.ChildID != b.ChildID {
			return a.ChildID < b.ChildID
		}
		return a.EffectiveType() < b.EffectiveType()
	})
	return edges
}

func mergeIDs(a, b []valueobjects.NodeID) []valueobjects.NodeID {
	set := graph.NewIDSet(a...)
	for _, id := range b {
		set.Add(id)
	}
	return set.Sorted()
}
