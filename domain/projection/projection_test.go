package projection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicobenz/flowpertoire/domain/core/aggregation"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

func groupNode(id int64) entities.Node {
	return entities.Node{ID: valueobjects.NodeID(id), Variant: entities.GroupRef{GroupID: valueobjects.GroupID(id)}}
}

func skillNode(id int64) entities.Node {
	return entities.Node{ID: valueobjects.NodeID(id), Variant: entities.SkillRef{SkillID: valueobjects.SkillID(id)}}
}

func parentEdge(p, c int64) entities.Edge {
	return entities.Edge{ParentID: valueobjects.NodeID(p), ChildID: valueobjects.NodeID(c), Type: entities.EdgeTypeParent}
}

func conceptEdge(a, b int64) entities.Edge {
	return entities.Edge{ParentID: valueobjects.NodeID(a), ChildID: valueobjects.NodeID(b), Type: entities.EdgeTypeConcept}
}

// Calisthenics -> Push-ups -> {Regular 5, Diamond 4}, plus an unsaved node
// and a concept link between the two leaves.
func sampleTree() entities.TreeData {
	return entities.TreeData{
		Nodes: []entities.Node{groupNode(1), groupNode(2), skillNode(3), skillNode(4), {Variant: entities.SkillRef{SkillID: 50}}},
		Edges: []entities.Edge{parentEdge(1, 2), parentEdge(2, 3), parentEdge(2, 4), conceptEdge(4, 3)},
		Skills: []entities.Skill{
			{ID: 3, Title: "Regular Push-up", Rating: 5},
			{ID: 4, Title: "Diamond Push-up", Rating: 4},
		},
		Groups: []entities.Group{{ID: 1, Label: "Calisthenics"}, {ID: 2, Label: "Push-up variations"}},
	}
}

func byID(elements []Element) map[string]Element {
	out := make(map[string]Element, len(elements))
	for _, e := range elements {
		out[e.Data.ID] = e
	}
	return out
}

func TestProject(t *testing.T) {
	elements := Project(sampleTree(), false)
	els := byID(elements)

	t.Run("unsaved nodes are skipped", func(t *testing.T) {
		assert.Len(t, elements, 4+4)
	})

	t.Run("root and container flags", func(t *testing.T) {
		assert.Equal(t, "true", els["1"].Data.IsRoot)
		assert.Empty(t, els["1"].Data.IsNonRootContainer)
		assert.Equal(t, "true", els["2"].Data.IsNonRootContainer)
		assert.Empty(t, els["2"].Data.IsRoot)
		assert.Empty(t, els["3"].Data.IsNonRootContainer)
	})

	t.Run("fills", func(t *testing.T) {
		require.NotNil(t, els["3"].Data.Fill)
		assert.Equal(t, 100.0, *els["3"].Data.Fill)
		assert.Equal(t, 80.0, *els["4"].Data.Fill)
		assert.Equal(t, 90.0, *els["2"].Data.Fill)
		assert.Equal(t, 90.0, *els["1"].Data.Fill)
	})

	t.Run("edges", func(t *testing.T) {
		e := els["e-parent-1-2"]
		assert.True(t, e.IsEdge())
		assert.Equal(t, "1", e.Data.Source)
		assert.Equal(t, "2", e.Data.Target)
		assert.Equal(t, "parent", e.Data.EdgeType)

		c := els["e-concept-3-4"]
		assert.Equal(t, "concept", c.Data.EdgeType)
		assert.Equal(t, "4", c.Data.Source)
	})

	t.Run("nodes precede edges in input order", func(t *testing.T) {
		var ids []string
		for _, e := range elements {
			ids = append(ids, e.Data.ID)
		}
		assert.Equal(t, []string{"1", "2", "3", "4", "e-parent-1-2", "e-parent-2-3", "e-parent-2-4", "e-concept-3-4"}, ids)
	})
}

func TestProjectWireShape(t *testing.T) {
	raw, err := json.Marshal(Project(sampleTree(), false)[:2])
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"group":"nodes","data":{"id":"1","label":"Calisthenics","isRoot":"true","fill":90}},
		{"group":"nodes","data":{"id":"2","label":"Push-up variations","isNonRootContainer":"true","fill":90}}
	]`, string(raw))
}

func TestProjectDeterminism(t *testing.T) {
	data := sampleTree()
	first, err := json.Marshal(Project(data, false))
	require.NoError(t, err)
	second, err := json.Marshal(Project(data, false))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStructureOnlyStability(t *testing.T) {
	data := sampleTree()
	before := Project(data, true)

	data.Skills[0].Rating = 1
	data.Skills[1].Rating = 0
	after := Project(data, true)

	assert.Equal(t, before, after)
	for _, e := range after {
		assert.Nil(t, e.Data.Fill)
	}

	fpBefore, err := Fingerprint(before)
	require.NoError(t, err)
	fpAfter, err := Fingerprint(after)
	require.NoError(t, err)
	assert.Equal(t, fpBefore, fpAfter)
	assert.Len(t, fpBefore, 64)
}

func TestProjectStructureMatchesStructureOnly(t *testing.T) {
	data := sampleTree()
	assert.Equal(t, Project(data, true), ProjectStructure(data.Structure()))
}

func TestFingerprintChangesWithStructure(t *testing.T) {
	data := sampleTree()
	a, err := Fingerprint(Project(data, true))
	require.NoError(t, err)

	data.Groups[1].Label = "Pushing"
	b, err := Fingerprint(Project(data, true))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestConceptEdgeIDSymmetry(t *testing.T) {
	for _, pair := range [][2]valueobjects.NodeID{{1, 2}, {10, 3}, {7, 7}} {
		assert.Equal(t, ConceptEdgeID(pair[0], pair[1]), ConceptEdgeID(pair[1], pair[0]))
	}
	assert.NotEqual(t, ParentEdgeID(1, 2), ParentEdgeID(2, 1))
}

func TestDuplicateEdgeIDsAreDropped(t *testing.T) {
	data := entities.TreeData{
		Nodes: []entities.Node{skillNode(1), skillNode(2)},
		Edges: []entities.Edge{conceptEdge(1, 2), conceptEdge(2, 1), parentEdge(1, 2), parentEdge(1, 2)},
	}
	elements := Project(data, true)

	var edges []string
	for _, e := range elements {
		if e.IsEdge() {
			edges = append(edges, e.Data.ID+":"+e.Data.Source)
		}
	}
	assert.Equal(t, []string{"e-concept-1-2:1", "e-parent-1-2:1"}, edges)
}

func TestScenarioDConceptOnlyNodesAreRoots(t *testing.T) {
	data := entities.TreeData{
		Nodes:  []entities.Node{skillNode(1), skillNode(2)},
		Edges:  []entities.Edge{conceptEdge(1, 2)},
		Skills: []entities.Skill{{ID: 1, Title: "a", Rating: 5}, {ID: 2, Title: "b", Rating: 0}},
	}
	els := byID(Project(data, false))
	assert.Equal(t, "true", els["1"].Data.IsRoot)
	assert.Equal(t, "true", els["2"].Data.IsRoot)
}

func TestMissingRecordProjection(t *testing.T) {
	data := sampleTree()
	data.Skills = data.Skills[:1]

	var reported []aggregation.MissingRecord
	els := byID(Project(data, false, aggregation.WithMissingRecordHook(func(m aggregation.MissingRecord) {
		reported = append(reported, m)
	})))

	assert.Nil(t, els["4"].Data.Fill, "skill without record has no fill")
	assert.Equal(t, "Node 4", els["4"].Data.Label)
	require.NotNil(t, els["2"].Data.Fill, "groups always have a fill")
	assert.Equal(t, 100.0, *els["2"].Data.Fill)
	assert.NotEmpty(t, reported)
}

// recordingLive is a LiveElements backed by projected elements.
type recordingLive struct {
	data  map[string]map[string]interface{}
	order []string
	calls []string
}

func newRecordingLive(elements []Element) *recordingLive {
	l := &recordingLive{data: make(map[string]map[string]interface{})}
	for _, e := range elements {
		l.data[e.Data.ID] = map[string]interface{}{}
		if e.Data.Fill != nil {
			l.data[e.Data.ID][KeyFill] = *e.Data.Fill
		}
		l.order = append(l.order, e.Data.ID)
	}
	return l
}

func (l *recordingLive) HasElement(id string) bool {
	_, ok := l.data[id]
	return ok
}

func (l *recordingLive) SetData(id, key string, value interface{}) {
	l.data[id][key] = value
	l.calls = append(l.calls, "set:"+id)
}

func (l *recordingLive) RemoveData(id, key string) {
	delete(l.data[id], key)
	l.calls = append(l.calls, "remove:"+id)
}

func TestRefreshFills(t *testing.T) {
	data := sampleTree()
	live := newRecordingLive(Project(data, true))
	live.data["99"] = map[string]interface{}{KeyFill: 12.0}
	idsBefore := len(live.data)

	data.Skills[1].Rating = 2
	RefreshFills(live, data)

	t.Run("identity set unchanged", func(t *testing.T) {
		assert.Len(t, live.data, idsBefore)
	})

	t.Run("fills match a fresh projection", func(t *testing.T) {
		for _, e := range Project(data, false) {
			if !e.IsNode() {
				continue
			}
			require.NotNil(t, e.Data.Fill)
			assert.Equal(t, *e.Data.Fill, live.data[e.Data.ID][KeyFill], "node %s", e.Data.ID)
		}
		assert.Equal(t, 70.0, live.data["1"][KeyFill])
	})

	t.Run("elements absent from data are untouched", func(t *testing.T) {
		assert.Equal(t, 12.0, live.data["99"][KeyFill])
	})

	t.Run("edges are never written", func(t *testing.T) {
		assert.Empty(t, live.data["e-parent-1-2"])
	})

	t.Run("lost record removes the attribute", func(t *testing.T) {
		data.Skills = data.Skills[:1]
		RefreshFills(live, data)
		_, has := live.data["4"][KeyFill]
		assert.False(t, has)
		assert.Contains(t, live.calls, "remove:4")
	})
}

func TestFillPatch(t *testing.T) {
	patch := FillPatch(sampleTree())
	require.Len(t, patch, 4)
	assert.Equal(t, 100.0, *patch[3])
}

func TestDefaultStyleRules(t *testing.T) {
	rules := DefaultStyleRules(Theme{Primary: "#111", Accent: "#f00", GradientBackground: "#fff", Border: "#ccc"})

	selectors := make(map[string]StyleRule)
	for _, r := range rules {
		selectors[r.Selector] = r
	}
	for _, s := range []string{
		"node", `node[isRoot="true"]`, `node[isNonRootContainer="true"]`, "node.dimmed",
		"node.highlight", "node:selected", "edge", "edge.dimmed", "edge.highlight", `edge[edgeType="concept"]`,
	} {
		assert.Contains(t, selectors, s)
	}
	assert.Equal(t, "round-diamond", selectors[`node[isRoot="true"]`].Style["shape"])
	assert.Equal(t, 0.2, selectors["edge.dimmed"].Style["line-opacity"])
	assert.Equal(t, KeyFill, selectors["node[fill]"].Bind["background-gradient-stop-positions"])
}
