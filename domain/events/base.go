package events

import (
	"time"

	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// Event type names. They double as EventBridge detail types.
const (
	TypeTreeCreated   = "tree.created"
	TypeTreeDeleted   = "tree.deleted"
	TypeGroupAdded    = "group.added"
	TypeSkillAdded    = "skill.added"
	TypeSkillUpdated  = "skill.updated"
	TypeConceptLinked = "concept.linked"
	TypeChildAttached = "child.attached"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
	GetUserID() valueobjects.UserID
	// GetTreeIDs lists the roots whose trees the event touched
	GetTreeIDs() []valueobjects.NodeID
	// Structural is true when projected elements change, false when only
	// fills do
	Structural() bool
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string                `json:"aggregate_id"`
	EventType   string                `json:"event_type"`
	Timestamp   time.Time             `json:"timestamp"`
	Version     int                   `json:"version"`
	UserID      valueobjects.UserID   `json:"user_id"`
	TreeIDs     []valueobjects.NodeID `json:"tree_ids,omitempty"`
}

func (e BaseEvent) GetAggregateID() string            { return e.AggregateID }
func (e BaseEvent) GetEventType() string              { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time           { return e.Timestamp }
func (e BaseEvent) GetVersion() int                   { return e.Version }
func (e BaseEvent) GetUserID() valueobjects.UserID    { return e.UserID }
func (e BaseEvent) GetTreeIDs() []valueobjects.NodeID { return e.TreeIDs }

func newBase(eventType string, userID valueobjects.UserID, trees []valueobjects.NodeID, at time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: "forest-" + userID.String(),
		EventType:   eventType,
		Timestamp:   at,
		Version:     1,
		UserID:      userID,
		TreeIDs:     trees,
	}
}

// Tree events

// TreeCreated is raised when a new root group is created
type TreeCreated struct {
	BaseEvent
	TreeID valueobjects.NodeID `json:"tree_id"`
	Name   string              `json:"name"`
	Slug   string              `json:"slug"`
}

func (TreeCreated) Structural() bool { return true }

func NewTreeCreated(userID valueobjects.UserID, treeID valueobjects.NodeID, name, slug string, at time.Time) TreeCreated {
	return TreeCreated{
		BaseEvent: newBase(TypeTreeCreated, userID, []valueobjects.NodeID{treeID}, at),
		TreeID:    treeID,
		Name:      name,
		Slug:      slug,
	}
}

// TreeDeleted is raised after a root and its whole subtree were removed
type TreeDeleted struct {
	BaseEvent
	TreeID         valueobjects.NodeID   `json:"tree_id"`
	RemovedNodeIDs []valueobjects.NodeID `json:"removed_node_ids"`
}

func (TreeDeleted) Structural() bool { return true }

func NewTreeDeleted(userID valueobjects.UserID, treeID valueobjects.NodeID, removed []valueobjects.NodeID, at time.Time) TreeDeleted {
	return TreeDeleted{
		BaseEvent:      newBase(TypeTreeDeleted, userID, []valueobjects.NodeID{treeID}, at),
		TreeID:         treeID,
		RemovedNodeIDs: removed,
	}
}

// Node events

// GroupAdded is raised when a group is created below a parent
type GroupAdded struct {
	BaseEvent
	NodeID   valueobjects.NodeID  `json:"node_id"`
	ParentID valueobjects.NodeID  `json:"parent_id"`
	GroupID  valueobjects.GroupID `json:"group_id"`
	Label    string               `json:"label"`
}

func (GroupAdded) Structural() bool { return true }

func NewGroupAdded(userID valueobjects.UserID, trees []valueobjects.NodeID, nodeID, parentID valueobjects.NodeID, groupID valueobjects.GroupID, label string, at time.Time) GroupAdded {
	return GroupAdded{
		BaseEvent: newBase(TypeGroupAdded, userID, trees, at),
		NodeID:    nodeID,
		ParentID:  parentID,
		GroupID:   groupID,
		Label:     label,
	}
}

// SkillAdded is raised when a skill is created below a parent
type SkillAdded struct {
	BaseEvent
	NodeID   valueobjects.NodeID  `json:"node_id"`
	ParentID valueobjects.NodeID  `json:"parent_id"`
	SkillID  valueobjects.SkillID `json:"skill_id"`
	Title    string               `json:"title"`
}

func (SkillAdded) Structural() bool { return true }

func NewSkillAdded(userID valueobjects.UserID, trees []valueobjects.NodeID, nodeID, parentID valueobjects.NodeID, skillID valueobjects.SkillID, title string, at time.Time) SkillAdded {
	return SkillAdded{
		BaseEvent: newBase(TypeSkillAdded, userID, trees, at),
		NodeID:    nodeID,
		ParentID:  parentID,
		SkillID:   skillID,
		Title:     title,
	}
}

// SkillUpdated is raised when rating, status or title of a skill change.
// Only a title change alters the structure, since titles are labels.
type SkillUpdated struct {
	BaseEvent
	NodeID       valueobjects.NodeID      `json:"node_id"`
	SkillID      valueobjects.SkillID     `json:"skill_id"`
	Rating       valueobjects.Rating      `json:"rating"`
	Status       valueobjects.SkillStatus `json:"status"`
	TitleChanged bool                     `json:"title_changed"`
}

func (e SkillUpdated) Structural() bool { return e.TitleChanged }

func NewSkillUpdated(userID valueobjects.UserID, trees []valueobjects.NodeID, nodeID valueobjects.NodeID, skillID valueobjects.SkillID, rating valueobjects.Rating, status valueobjects.SkillStatus, titleChanged bool, at time.Time) SkillUpdated {
	return SkillUpdated{
		BaseEvent:    newBase(TypeSkillUpdated, userID, trees, at),
		NodeID:       nodeID,
		SkillID:      skillID,
		Rating:       rating,
		Status:       status,
		TitleChanged: titleChanged,
	}
}

// Edge events

// ConceptLinked is raised when two nodes are marked as the same concept
type ConceptLinked struct {
	BaseEvent
	NodeA valueobjects.NodeID `json:"node_a"`
	NodeB valueobjects.NodeID `json:"node_b"`
}

func (ConceptLinked) Structural() bool { return true }

func NewConceptLinked(userID valueobjects.UserID, trees []valueobjects.NodeID, a, b valueobjects.NodeID, at time.Time) ConceptLinked {
	return ConceptLinked{
		BaseEvent: newBase(TypeConceptLinked, userID, trees, at),
		NodeA:     a,
		NodeB:     b,
	}
}

// ChildAttached is raised when an existing node gains another parent
type ChildAttached struct {
	BaseEvent
	ParentID valueobjects.NodeID `json:"parent_id"`
	ChildID  valueobjects.NodeID `json:"child_id"`
}

func (ChildAttached) Structural() bool { return true }

func NewChildAttached(userID valueobjects.UserID, trees []valueobjects.NodeID, parentID, childID valueobjects.NodeID, at time.Time) ChildAttached {
	return ChildAttached{
		BaseEvent: newBase(TypeChildAttached, userID, trees, at),
		ParentID:  parentID,
		ChildID:   childID,
	}
}
