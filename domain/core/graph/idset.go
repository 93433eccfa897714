package graph

import (
	"sort"

	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// IDSet is a set of node ids
type IDSet map[valueobjects.NodeID]struct{}

func NewIDSet(ids ...valueobjects.NodeID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) Add(id valueobjects.NodeID) { s[id] = struct{}{} }

func (s IDSet) Has(id valueobjects.NodeID) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Len() int { return len(s) }

// Sorted returns the members in ascending order
func (s IDSet) Sorted() []valueobjects.NodeID {
	out := make([]valueobjects.NodeID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
