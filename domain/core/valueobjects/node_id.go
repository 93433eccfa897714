package valueobjects

import (
	"errors"
	"strconv"
)

// NodeID identifies a node within a user's forest.
// Zero is reserved for nodes that have not been persisted yet.
type NodeID int64

// SkillID identifies a skill record.
type SkillID int64

// GroupID identifies a group record.
type GroupID int64

// UserID identifies the owner of nodes.
type UserID int64

// DefaultUserID is used by every transport until authentication exists.
const DefaultUserID UserID = 1

// ParseNodeID parses the decimal form produced by NodeID.String
func ParseNodeID(s string) (NodeID, error) {
	if s == "" {
		return 0, errors.New("node ID cannot be empty")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("node ID must be an integer")
	}
	if v <= 0 {
		return 0, errors.New("node ID must be positive")
	}
	return NodeID(v), nil
}

// String returns the decimal representation used as element id
func (id NodeID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsZero reports whether the node has not been persisted
func (id NodeID) IsZero() bool {
	return id == 0
}

// ParseUserID parses a user id, rejecting non-positive values
func ParseUserID(s string) (UserID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.New("user ID must be a positive integer")
	}
	return UserID(v), nil
}

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}
