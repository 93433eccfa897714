package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

func group(id int64) entities.Node {
	return entities.Node{ID: valueobjects.NodeID(id), Variant: entities.GroupRef{GroupID: valueobjects.GroupID(id)}}
}

func skill(id int64) entities.Node {
	return entities.Node{ID: valueobjects.NodeID(id), Variant: entities.SkillRef{SkillID: valueobjects.SkillID(id)}}
}

func rated(id int64, rating int) entities.Skill {
	return entities.Skill{ID: valueobjects.SkillID(id), Title: "skill", Rating: valueobjects.Rating(rating)}
}

func edge(p, c int64) entities.Edge {
	return entities.Edge{ParentID: valueobjects.NodeID(p), ChildID: valueobjects.NodeID(c), Type: entities.EdgeTypeParent}
}

func TestLeafFill(t *testing.T) {
	assert.Equal(t, 0.0, LeafFill(0))
	assert.Equal(t, 100.0, LeafFill(5))
	assert.Equal(t, 100.0, LeafFill(11))
	assert.Equal(t, 0.0, LeafFill(-4))

	prev := -1.0
	for r := -2; r <= 8; r++ {
		f := LeafFill(valueobjects.Rating(r))
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 100.0)
		assert.GreaterOrEqual(t, f, prev)
		prev = f
	}
}

func TestScenarios(t *testing.T) {
	t.Run("A: one container one leaf", func(t *testing.T) {
		a := New(entities.TreeData{
			Nodes:  []entities.Node{group(1), skill(2)},
			Edges:  []entities.Edge{edge(1, 2)},
			Skills: []entities.Skill{rated(2, 4)},
			Groups: []entities.Group{{ID: 1, Label: "Root"}},
		})

		assert.Equal(t, []valueobjects.NodeID{1}, a.Index().RootIDs)
		fill, ok := a.Fill(2)
		require.True(t, ok)
		assert.Equal(t, 80.0, fill)
		assert.Equal(t, 80.0, a.ContainerFill(1))
		assert.Equal(t, 4.0, a.AggregateRating(1))
	})

	t.Run("B: nested containers do not dilute the mean", func(t *testing.T) {
		a := New(entities.TreeData{
			Nodes:  []entities.Node{group(1), group(2), skill(3), skill(4)},
			Edges:  []entities.Edge{edge(1, 2), edge(2, 3), edge(2, 4)},
			Skills: []entities.Skill{rated(3, 2), rated(4, 4)},
		})

		assert.Equal(t, 60.0, a.ContainerFill(2))
		assert.Equal(t, 60.0, a.ContainerFill(1))
	})

	t.Run("shared leaf counts once", func(t *testing.T) {
		a := New(entities.TreeData{
			Nodes:  []entities.Node{group(1), group(2), group(3), skill(4), skill(5)},
			Edges:  []entities.Edge{edge(1, 2), edge(1, 3), edge(2, 4), edge(3, 4), edge(3, 5)},
			Skills: []entities.Skill{rated(4, 5), rated(5, 0)},
		})

		assert.Equal(t, 100.0, a.ContainerFill(2))
		assert.Equal(t, 50.0, a.ContainerFill(3))
		assert.Equal(t, 50.0, a.ContainerFill(1))
		assert.Equal(t, 2.5, a.AggregateRating(1))
	})

	t.Run("C: container without leaves", func(t *testing.T) {
		a := New(entities.TreeData{
			Nodes: []entities.Node{group(1), group(2)},
			Edges: []entities.Edge{edge(1, 2)},
		})

		assert.Equal(t, 0.0, a.ContainerFill(1))
		assert.Equal(t, 0.0, a.AggregateRating(1))
	})
}

func TestAggregateRatingConsistency(t *testing.T) {
	a := New(entities.TreeData{
		Nodes:  []entities.Node{group(1), skill(2), skill(3), skill(4), group(5), skill(6)},
		Edges:  []entities.Edge{edge(1, 2), edge(1, 3), edge(1, 5), edge(5, 4), edge(5, 6)},
		Skills: []entities.Skill{rated(2, 1), rated(3, 5), rated(4, 3), rated(6, 9)},
	})

	for _, id := range []valueobjects.NodeID{1, 5} {
		assert.Equal(t, a.ContainerFill(id)/100*5, a.AggregateRating(id))
	}
	// rating 9 is clamped to 5
	assert.Equal(t, 80.0, a.ContainerFill(5))
}

func TestMissingRecords(t *testing.T) {
	var missing []MissingRecord
	a := New(entities.TreeData{
		Nodes:  []entities.Node{group(1), skill(2), skill(3)},
		Edges:  []entities.Edge{edge(1, 2), edge(1, 3)},
		Skills: []entities.Skill{rated(2, 5)},
	}, WithMissingRecordHook(func(m MissingRecord) {
		missing = append(missing, m)
	}))

	t.Run("dangling skill is skipped in the mean", func(t *testing.T) {
		assert.Equal(t, 100.0, a.ContainerFill(1))
		require.NotEmpty(t, missing)
		assert.Equal(t, valueobjects.NodeID(3), missing[0].NodeID)
		assert.Equal(t, entities.NodeKindSkill, missing[0].Kind)
	})

	t.Run("dangling skill has no fill", func(t *testing.T) {
		_, ok := a.Fill(3)
		assert.False(t, ok)
		fills := a.Fills()
		assert.Nil(t, fills[3])
		require.NotNil(t, fills[2])
		assert.Equal(t, 100.0, *fills[2])
	})

	t.Run("label falls back to node id", func(t *testing.T) {
		assert.Equal(t, "Node 3", a.Label(skill(3)))
		assert.Equal(t, "Node 1", a.Label(group(1)))
	})
}

func TestResolveAll(t *testing.T) {
	desc := "Bodyweight strength skills"
	a := New(entities.TreeData{
		Nodes:  []entities.Node{group(1), skill(2), {Variant: entities.SkillRef{SkillID: 99}}},
		Edges:  []entities.Edge{edge(1, 2)},
		Skills: []entities.Skill{{ID: 2, Title: "Regular Push-up", Rating: 5, Status: valueobjects.StatusMastered}},
		Groups: []entities.Group{{ID: 1, Label: "Calisthenics", Description: &desc}},
	})

	resolved := a.ResolveAll()
	require.Len(t, resolved, 2, "unsaved nodes are skipped")

	root := resolved[0]
	assert.Equal(t, "Calisthenics", root.Label)
	assert.Equal(t, &desc, root.Description)
	require.NotNil(t, root.AggregateRating)
	assert.Equal(t, 5.0, *root.AggregateRating)
	assert.Nil(t, root.Rating)

	leaf := resolved[1]
	assert.Equal(t, "Regular Push-up", leaf.Label)
	require.NotNil(t, leaf.Rating)
	assert.Equal(t, valueobjects.Rating(5), *leaf.Rating)
	assert.Nil(t, leaf.AggregateRating)
}
