package projection

import (
	"github.com/nicobenz/flowpertoire/domain/core/aggregation"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// LiveElements is the mutable element store of a rendered graph.
// SetData and RemoveData are only called for ids HasElement accepts.
type LiveElements interface {
	HasElement(id string) bool
	SetData(id, key string, value interface{})
	RemoveData(id, key string)
}

// RefreshFills rewrites the fill of every node of data that is live, in
// node order. Elements are never added or removed; a node without a
// determinable fill loses the attribute instead of carrying a stale value.
func RefreshFills(live LiveElements, data entities.TreeData, opts ...aggregation.Option) {
	fills := FillPatch(data, opts...)
	for _, id := range data.NodeIDs() {
		key := id.String()
		if !live.HasElement(key) {
			continue
		}
		if fill := fills[id]; fill != nil {
			live.SetData(key, KeyFill, *fill)
		} else {
			live.RemoveData(key, KeyFill)
		}
	}
}

// FillPatch computes the fill of every saved node. A nil value means the
// attribute must be removed.
func FillPatch(data entities.TreeData, opts ...aggregation.Option) map[valueobjects.NodeID]*float64 {
	return aggregation.New(data, opts...).Fills()
}
