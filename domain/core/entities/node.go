package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// NodeKind names the variant in the wire form
type NodeKind string

const (
	NodeKindSkill NodeKind = "skill"
	NodeKindGroup NodeKind = "group"
)

// NodeVariant is the payload of a node. It is sealed: only SkillRef and
// GroupRef implement it, and consumers switch over both.
type NodeVariant interface {
	Kind() NodeKind
	isNodeVariant()
}

// SkillRef marks a leaf node backed by a skill record.
type SkillRef struct {
	SkillID valueobjects.SkillID
}

func (SkillRef) Kind() NodeKind { return NodeKindSkill }
func (SkillRef) isNodeVariant() {}

// GroupRef marks a container node backed by a group record.
type GroupRef struct {
	GroupID valueobjects.GroupID
}

func (GroupRef) Kind() NodeKind { return NodeKindGroup }
func (GroupRef) isNodeVariant() {}

// Node is a vertex of the skill DAG
type Node struct {
	ID          valueobjects.NodeID
	UserID      valueobjects.UserID
	Variant     NodeVariant
	ShowInGraph bool
	ShowInList  bool
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewSkillNode creates an unsaved leaf node
func NewSkillNode(userID valueobjects.UserID, skillID valueobjects.SkillID) Node {
	return newNode(userID, SkillRef{SkillID: skillID})
}

// NewGroupNode creates an unsaved container node
func NewGroupNode(userID valueobjects.UserID, groupID valueobjects.GroupID) Node {
	return newNode(userID, GroupRef{GroupID: groupID})
}

func newNode(userID valueobjects.UserID, v NodeVariant) Node {
	now := time.Now().UTC()
	return Node{
		UserID:      userID,
		Variant:     v,
		ShowInGraph: true,
		ShowInList:  true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsSkill reports whether the node is a leaf
func (n Node) IsSkill() bool {
	_, ok := n.Variant.(SkillRef)
	return ok
}

// IsGroup reports whether the node is a container
func (n Node) IsGroup() bool {
	_, ok := n.Variant.(GroupRef)
	return ok
}

type nodeJSON struct {
	ID          valueobjects.NodeID   `json:"id"`
	UserID      valueobjects.UserID   `json:"userId"`
	NodeType    NodeKind              `json:"nodeType"`
	SkillID     *valueobjects.SkillID `json:"skillId"`
	GroupID     *valueobjects.GroupID `json:"groupId"`
	ShowInGraph bool                  `json:"showInGraph"`
	ShowInList  bool                  `json:"showInList"`
	SortOrder   int                   `json:"sortOrder"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// MarshalJSON flattens the variant into nodeType plus one of skillId/groupId.
func (n Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{
		ID:          n.ID,
		UserID:      n.UserID,
		ShowInGraph: n.ShowInGraph,
		ShowInList:  n.ShowInList,
		SortOrder:   n.SortOrder,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
	switch v := n.Variant.(type) {
	case SkillRef:
		out.NodeType = NodeKindSkill
		out.SkillID = &v.SkillID
	case GroupRef:
		out.NodeType = NodeKindGroup
		out.GroupID = &v.GroupID
	default:
		return nil, fmt.Errorf("node %d has no variant", n.ID)
	}
	return json.Marshal(out)
}

// UnmarshalJSON rejects hybrid and untyped nodes.
func (n *Node) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	variant, err := VariantFromParts(in.NodeType, in.SkillID, in.GroupID)
	if err != nil {
		return err
	}
	*n = Node{
		ID:          in.ID,
		UserID:      in.UserID,
		Variant:     variant,
		ShowInGraph: in.ShowInGraph,
		ShowInList:  in.ShowInList,
		SortOrder:   in.SortOrder,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}
	return nil
}

// VariantFromParts rebuilds a variant from its stored columns. Storage
// adapters use it so that a row carrying both or neither reference is
// rejected at the boundary.
func VariantFromParts(kind NodeKind, skillID *valueobjects.SkillID, groupID *valueobjects.GroupID) (NodeVariant, error) {
	switch kind {
	case NodeKindSkill:
		if skillID == nil || groupID != nil {
			return nil, fmt.Errorf("skill node must reference exactly one skill")
		}
		return SkillRef{SkillID: *skillID}, nil
	case NodeKindGroup:
		if groupID == nil || skillID != nil {
			return nil, fmt.Errorf("group node must reference exactly one group")
		}
		return GroupRef{GroupID: *groupID}, nil
	default:
		return nil, fmt.Errorf("unknown node type %q", kind)
	}
}
