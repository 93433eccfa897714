// Package repotest holds the behaviour every ports.ForestRepository
// adapter must share. Adapter tests call Run with their own factory.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clock = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

// Run exercises repo against the shared contract. newRepo must return an
// empty store on every call.
func Run(t *testing.T, newRepo func(t *testing.T) ports.ForestRepository) {
	t.Run("unknown user loads an empty forest", func(t *testing.T) {
		repo := newRepo(t)
		forest, err := repo.Load(context.Background(), 42)
		require.NoError(t, err)
		assert.Empty(t, forest.RootTrees())
	})

	t.Run("sequences are independent and increasing", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		a, err := repo.NextID(ctx, aggregates.SeqNode)
		require.NoError(t, err)
		b, err := repo.NextID(ctx, aggregates.SeqNode)
		require.NoError(t, err)
		s, err := repo.NextID(ctx, aggregates.SeqSkill)
		require.NoError(t, err)

		assert.Greater(t, b, a)
		assert.Equal(t, int64(1), s)
	})

	t.Run("saved trees survive a reload", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		rootID, skillNode := seedTree(t, repo)

		forest, err := repo.Load(ctx, valueobjects.DefaultUserID)
		require.NoError(t, err)

		trees := forest.RootTrees()
		require.Len(t, trees, 1)
		assert.Equal(t, "Calisthenics", trees[0].Name)
		assert.Equal(t, "calisthenics", trees[0].Slug)

		data, err := forest.TreeData(rootID)
		require.NoError(t, err)
		assert.Len(t, data.Nodes, 4)
		assert.Len(t, data.Edges, 3)
		assert.Len(t, data.Groups, 2)
		require.Len(t, data.Skills, 2)

		n, ok := forest.Node(skillNode)
		require.True(t, ok)
		assert.True(t, n.IsSkill())
		assert.Empty(t, forest.Changes())
	})

	t.Run("updates and concept links persist", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		rootID, skillNode := seedTree(t, repo)

		forest, err := repo.Load(ctx, valueobjects.DefaultUserID)
		require.NoError(t, err)
		forest.WithClock(clock)
		rating := 4
		status := valueobjects.StatusMastered
		_, err = forest.UpdateSkill(skillNode, aggregates.SkillPatch{Rating: &rating, Status: &status})
		require.NoError(t, err)
		_, err = forest.LinkConcept(skillNode, rootID)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, forest))

		reloaded, err := repo.Load(ctx, valueobjects.DefaultUserID)
		require.NoError(t, err)
		data, err := reloaded.TreeData(rootID)
		require.NoError(t, err)

		var updated entities.Skill
		for _, s := range data.Skills {
			if s.Title == "Regular Push-up" {
				updated = s
			}
		}
		assert.Equal(t, valueobjects.Rating(4), updated.Rating)
		assert.Equal(t, valueobjects.StatusMastered, updated.Status)
		require.NotNil(t, updated.FirstAchievedAt)
		assert.True(t, clock().Equal(*updated.FirstAchievedAt))

		concepts := 0
		for _, e := range data.Edges {
			if !e.IsParent() {
				concepts++
			}
		}
		assert.Equal(t, 1, concepts)
	})

	t.Run("deleting a tree removes its records", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		rootID, _ := seedTree(t, repo)

		forest, err := repo.Load(ctx, valueobjects.DefaultUserID)
		require.NoError(t, err)
		_, err = forest.DeleteRootTree(rootID)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, forest))

		reloaded, err := repo.Load(ctx, valueobjects.DefaultUserID)
		require.NoError(t, err)
		assert.Empty(t, reloaded.RootTrees())
		assert.Empty(t, reloaded.Snapshot().Nodes)
		assert.Empty(t, reloaded.Snapshot().Edges)
	})

	t.Run("sibling order survives a reload", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		rootID, regular := seedTree(t, repo)

		forest, err := repo.Load(ctx, valueobjects.DefaultUserID)
		require.NoError(t, err)
		pulling, err := forest.AddChildGroup(ctx, repo, rootID, "Pulling", nil)
		require.NoError(t, err)
		row, err := forest.AddChildSkill(ctx, repo, pulling.ID, "Ring Row")
		require.NoError(t, err)
		// the older node goes last among the new group's children
		_, err = forest.AttachChild(pulling.ID, regular)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, forest))

		reloaded, err := repo.Load(ctx, valueobjects.DefaultUserID)
		require.NoError(t, err)
		data, err := reloaded.TreeData(rootID)
		require.NoError(t, err)

		var children []valueobjects.NodeID
		for _, e := range data.Edges {
			if e.ParentID == pulling.ID {
				children = append(children, e.ChildID)
			}
		}
		assert.Equal(t, []valueobjects.NodeID{row.ID, regular}, children)
	})

	t.Run("forests are isolated per user", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		seedTree(t, repo)

		other, err := repo.Load(ctx, 2)
		require.NoError(t, err)
		assert.Empty(t, other.RootTrees())
	})
}

// seedTree stores Calisthenics > Push-ups > {Regular, Diamond} for the
// default user and returns the root and the Regular Push-up node.
func seedTree(t *testing.T, repo ports.ForestRepository) (valueobjects.NodeID, valueobjects.NodeID) {
	t.Helper()
	ctx := context.Background()

	forest, err := repo.Load(ctx, valueobjects.DefaultUserID)
	require.NoError(t, err)
	forest.WithClock(clock)

	root, err := forest.CreateRootTree(ctx, repo, "Calisthenics", nil)
	require.NoError(t, err)
	group, err := forest.AddChildGroup(ctx, repo, root.ID, "Push-ups", nil)
	require.NoError(t, err)
	regular, err := forest.AddChildSkill(ctx, repo, group.ID, "Regular Push-up")
	require.NoError(t, err)
	_, err = forest.AddChildSkill(ctx, repo, group.ID, "Diamond Push-up")
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, forest))
	return root.ID, regular.ID
}
