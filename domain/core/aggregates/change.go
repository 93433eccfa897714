package aggregates

import (
	"github.com/nicobenz/flowpertoire/domain/core/entities"
)

// ChangeOp is the kind of write a Change describes
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// Change is one pending write. Exactly one of the record fields is set.
type Change struct {
	Op    ChangeOp
	Node  *entities.Node
	Edge  *entities.Edge
	Skill *entities.Skill
	Group *entities.Group
}

// Kind names the record the change applies to
func (c Change) Kind() string {
	switch {
	case c.Node != nil:
		return "node"
	case c.Edge != nil:
		return "edge"
	case c.Skill != nil:
		return "skill"
	case c.Group != nil:
		return "group"
	default:
		return "unknown"
	}
}
