package dynamodb

import (
	"fmt"
	"time"

	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// Entity types stored in the single table
const (
	entityNode  = "NODE"
	entityEdge  = "EDGE"
	entitySkill = "SKILL"
	entityGroup = "GROUP"
	entitySeq   = "SEQUENCE"
	entityLock  = "LOCK"
	entityRate  = "RATELIMIT"
)

func userPK(userID valueobjects.UserID) string {
	return fmt.Sprintf("USER#%d", userID)
}

func nodeSK(id valueobjects.NodeID) string   { return fmt.Sprintf("NODE#%d", id) }
func skillSK(id valueobjects.SkillID) string { return fmt.Sprintf("SKILL#%d", id) }
func groupSK(id valueobjects.GroupID) string { return fmt.Sprintf("GROUP#%d", id) }

func edgeSK(e entities.Edge) string {
	return fmt.Sprintf("EDGE#%s#%d#%d", e.EffectiveType(), e.ParentID, e.ChildID)
}

func seqPK(seq aggregates.Sequence) string {
	return fmt.Sprintf("SEQ#%s", seq)
}

// item is the union of every attribute a row can carry. EntityType
// decides which are meaningful.
type item struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`

	NodeID      int64  `dynamodbav:"NodeID,omitempty"`
	UserID      int64  `dynamodbav:"UserID,omitempty"`
	NodeType    string `dynamodbav:"NodeType,omitempty"`
	SkillID     *int64 `dynamodbav:"SkillID,omitempty"`
	GroupID     *int64 `dynamodbav:"GroupID,omitempty"`
	ShowInGraph bool   `dynamodbav:"ShowInGraph,omitempty"`
	ShowInList  bool   `dynamodbav:"ShowInList,omitempty"`
	SortOrder   int    `dynamodbav:"SortOrder,omitempty"`

	ParentID int64  `dynamodbav:"ParentID,omitempty"`
	ChildID  int64  `dynamodbav:"ChildID,omitempty"`
	EdgeType string `dynamodbav:"EdgeType,omitempty"`

	RecordID        int64   `dynamodbav:"RecordID,omitempty"`
	ConceptID       *int64  `dynamodbav:"ConceptID,omitempty"`
	Title           string  `dynamodbav:"Title,omitempty"`
	Rating          int     `dynamodbav:"Rating"`
	Status          string  `dynamodbav:"Status,omitempty"`
	FirstAchievedAt string  `dynamodbav:"FirstAchievedAt,omitempty"`
	Label           string  `dynamodbav:"Label,omitempty"`
	Description     *string `dynamodbav:"Description,omitempty"`

	CreatedAt string `dynamodbav:"CreatedAt,omitempty"`
	UpdatedAt string `dynamodbav:"UpdatedAt,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nodeItem(n entities.Node) item {
	it := item{
		PK:          userPK(n.UserID),
		SK:          nodeSK(n.ID),
		EntityType:  entityNode,
		NodeID:      int64(n.ID),
		UserID:      int64(n.UserID),
		NodeType:    string(n.Variant.Kind()),
		ShowInGraph: n.ShowInGraph,
		ShowInList:  n.ShowInList,
		SortOrder:   n.SortOrder,
		CreatedAt:   formatTime(n.CreatedAt),
		UpdatedAt:   formatTime(n.UpdatedAt),
	}
	switch v := n.Variant.(type) {
	case entities.SkillRef:
		id := int64(v.SkillID)
		it.SkillID = &id
	case entities.GroupRef:
		id := int64(v.GroupID)
		it.GroupID = &id
	}
	return it
}

func (it item) node() (entities.Node, error) {
	var skillID *valueobjects.SkillID
	var groupID *valueobjects.GroupID
	if it.SkillID != nil {
		id := valueobjects.SkillID(*it.SkillID)
		skillID = &id
	}
	if it.GroupID != nil {
		id := valueobjects.GroupID(*it.GroupID)
		groupID = &id
	}
	variant, err := entities.VariantFromParts(entities.NodeKind(it.NodeType), skillID, groupID)
	if err != nil {
		return entities.Node{}, fmt.Errorf("node %d: %w", it.NodeID, err)
	}
	return entities.Node{
		ID:          valueobjects.NodeID(it.NodeID),
		UserID:      valueobjects.UserID(it.UserID),
		Variant:     variant,
		ShowInGraph: it.ShowInGraph,
		ShowInList:  it.ShowInList,
		SortOrder:   it.SortOrder,
		CreatedAt:   parseTime(it.CreatedAt),
		UpdatedAt:   parseTime(it.UpdatedAt),
	}, nil
}

func edgeItem(userID valueobjects.UserID, e entities.Edge) item {
	return item{
		PK:         userPK(userID),
		SK:         edgeSK(e),
		EntityType: entityEdge,
		ParentID:   int64(e.ParentID),
		ChildID:    int64(e.ChildID),
		EdgeType:   string(e.EffectiveType()),
		SortOrder:  e.SortOrder,
	}
}

func (it item) edge() entities.Edge {
	return entities.Edge{
		ParentID:  valueobjects.NodeID(it.ParentID),
		ChildID:   valueobjects.NodeID(it.ChildID),
		Type:      entities.EdgeType(it.EdgeType),
		SortOrder: it.SortOrder,
	}
}

func skillItem(userID valueobjects.UserID, s entities.Skill) item {
	it := item{
		PK:         userPK(userID),
		SK:         skillSK(s.ID),
		EntityType: entitySkill,
		RecordID:   int64(s.ID),
		ConceptID:  s.ConceptID,
		Title:      s.Title,
		Rating:     int(s.Rating),
		Status:     string(s.Status),
		CreatedAt:  formatTime(s.CreatedAt),
		UpdatedAt:  formatTime(s.UpdatedAt),
	}
	if s.FirstAchievedAt != nil {
		it.FirstAchievedAt = formatTime(*s.FirstAchievedAt)
	}
	return it
}

func (it item) skill() entities.Skill {
	s := entities.Skill{
		ID:        valueobjects.SkillID(it.RecordID),
		ConceptID: it.ConceptID,
		Title:     it.Title,
		Rating:    valueobjects.Rating(it.Rating),
		Status:    valueobjects.SkillStatus(it.Status),
		CreatedAt: parseTime(it.CreatedAt),
		UpdatedAt: parseTime(it.UpdatedAt),
	}
	if it.FirstAchievedAt != "" {
		t := parseTime(it.FirstAchievedAt)
		s.FirstAchievedAt = &t
	}
	return s
}

func groupItem(userID valueobjects.UserID, g entities.Group) item {
	return item{
		PK:          userPK(userID),
		SK:          groupSK(g.ID),
		EntityType:  entityGroup,
		RecordID:    int64(g.ID),
		Label:       g.Label,
		Description: g.Description,
		CreatedAt:   formatTime(g.CreatedAt),
		UpdatedAt:   formatTime(g.UpdatedAt),
	}
}

func (it item) group() entities.Group {
	return entities.Group{
		ID:          valueobjects.GroupID(it.RecordID),
		Label:       it.Label,
		Description: it.Description,
		CreatedAt:   parseTime(it.CreatedAt),
		UpdatedAt:   parseTime(it.UpdatedAt),
	}
}

// changeItem maps a pending change to its row
func changeItem(userID valueobjects.UserID, c aggregates.Change) (item, bool) {
	switch {
	case c.Node != nil:
		return nodeItem(*c.Node), true
	case c.Edge != nil:
		return edgeItem(userID, *c.Edge), true
	case c.Skill != nil:
		return skillItem(userID, *c.Skill), true
	case c.Group != nil:
		return groupItem(userID, *c.Group), true
	}
	return item{}, false
}
