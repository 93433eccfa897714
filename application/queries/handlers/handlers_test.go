package handlers

import (
	"context"
	"testing"

	"github.com/nicobenz/flowpertoire/application/commands"
	cmdbus "github.com/nicobenz/flowpertoire/application/commands/bus"
	cmdhandlers "github.com/nicobenz/flowpertoire/application/commands/handlers"
	"github.com/nicobenz/flowpertoire/application/queries"
	"github.com/nicobenz/flowpertoire/application/queries/bus"
	"github.com/nicobenz/flowpertoire/application/seed"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/domain/projection"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/memory"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const user = valueobjects.DefaultUserID

type fixture struct {
	commands *cmdbus.CommandBus
	queries  *bus.QueryBus
}

func newFixture(t *testing.T, middlewares ...Middleware) *fixture {
	t.Helper()
	repo := memory.NewForestRepository()

	cb := cmdbus.NewCommandBus()
	require.NoError(t, cmdhandlers.RegisterAll(cb, cmdhandlers.NewForestWriter(repo, nil, nil, zap.NewNop()), zap.NewNop()))

	qb := bus.NewQueryBus()
	reader := NewTreeReader(repo, nil, nil, zap.NewNop())
	require.NoError(t, RegisterAll(qb, reader, projection.DefaultTheme(), middlewares...))

	fx := &fixture{commands: cb, queries: qb}
	_, err := seed.Demo(context.Background(), cb, fx.listTrees, user, zap.NewNop())
	require.NoError(t, err)
	return fx
}

func (fx *fixture) listTrees(ctx context.Context, userID valueobjects.UserID) ([]entities.RootTree, error) {
	res, err := fx.queries.Ask(ctx, queries.ListTreesQuery{UserID: userID})
	if err != nil {
		return nil, err
	}
	return res.([]entities.RootTree), nil
}

func (fx *fixture) ask(t *testing.T, q bus.Query) interface{} {
	t.Helper()
	res, err := fx.queries.Ask(context.Background(), q)
	require.NoError(t, err)
	return res
}

func TestListTrees(t *testing.T) {
	fx := newFixture(t)
	trees := fx.ask(t, queries.ListTreesQuery{UserID: user}).([]entities.RootTree)

	require.Len(t, trees, 2)
	assert.Equal(t, "Calisthenics", trees[0].Name)
	assert.Equal(t, "salsa-dance", trees[1].Slug)
}

func TestGetTreeBySlugResolvesAggregates(t *testing.T) {
	fx := newFixture(t)
	view := fx.ask(t, queries.GetTreeQuery{UserID: user, Tree: queries.TreeRef{Slug: "calisthenics"}}).(queries.TreeView)

	assert.Equal(t, "Calisthenics", view.Tree.Name)
	assert.Len(t, view.Data.Nodes, 6)
	assert.Len(t, view.Structure.Skills, 4)
	assert.NotEmpty(t, view.Fingerprint)

	byLabel := make(map[string]entities.ResolvedNode)
	for _, n := range view.Nodes {
		byLabel[n.Label] = n
	}
	root := byLabel["Calisthenics"]
	require.NotNil(t, root.AggregateRating)
	assert.InDelta(t, 3.5, *root.AggregateRating, 1e-9)
	require.NotNil(t, root.Description)
	assert.Equal(t, "Bodyweight strength skills", *root.Description)

	diamond := byLabel["Diamond Push-up"]
	require.NotNil(t, diamond.Rating)
	assert.Equal(t, valueobjects.Rating(4), *diamond.Rating)
	assert.Equal(t, valueobjects.StatusLearning, *diamond.Status)
}

func TestGetElements(t *testing.T) {
	fx := newFixture(t)
	tree := fx.ask(t, queries.GetTreeQuery{UserID: user, Tree: queries.TreeRef{Slug: "calisthenics"}}).(queries.TreeView)

	full := fx.ask(t, queries.GetElementsQuery{UserID: user, Tree: queries.TreeRef{ID: tree.Tree.ID}}).(queries.ElementsView)
	structure := fx.ask(t, queries.GetElementsQuery{
		UserID:        user,
		Tree:          queries.TreeRef{ID: tree.Tree.ID},
		StructureOnly: true,
	}).(queries.ElementsView)

	assert.Len(t, full.Elements, 11)
	assert.NotEmpty(t, full.Styles)
	assert.NotEqual(t, full.Fingerprint, structure.Fingerprint)
	assert.Equal(t, tree.Fingerprint, structure.Fingerprint)

	for _, e := range structure.Elements {
		assert.Nil(t, e.Data.Fill, "structure-only element %s carries a fill", e.Data.ID)
	}

	fills := map[string]float64{}
	for _, e := range full.Elements {
		if e.IsNode() {
			require.NotNil(t, e.Data.Fill)
			fills[e.Data.Label] = *e.Data.Fill
		}
	}
	assert.InDelta(t, 70.0, fills["Calisthenics"], 1e-9)
	assert.InDelta(t, 70.0, fills["Push-up variations"], 1e-9)
	assert.InDelta(t, 100.0, fills["Regular Push-up"], 1e-9)
	assert.InDelta(t, 40.0, fills["Pseudo Planche Push-up"], 1e-9)
}

func TestEmptyTreeProjectsToAZeroFillRoot(t *testing.T) {
	fx := newFixture(t)
	view := fx.ask(t, queries.GetElementsQuery{UserID: user, Tree: queries.TreeRef{Slug: "salsa-dance"}}).(queries.ElementsView)

	require.Len(t, view.Elements, 1)
	root := view.Elements[0]
	assert.Equal(t, "true", root.Data.IsRoot)
	assert.Empty(t, root.Data.IsNonRootContainer)
	require.NotNil(t, root.Data.Fill)
	assert.Equal(t, 0.0, *root.Data.Fill)
}

func TestGetFillsFollowsRatingEdits(t *testing.T) {
	fx := newFixture(t)
	tree := fx.ask(t, queries.GetTreeQuery{UserID: user, Tree: queries.TreeRef{Slug: "calisthenics"}}).(queries.TreeView)

	var pseudo valueobjects.NodeID
	for _, n := range tree.Nodes {
		if n.Label == "Pseudo Planche Push-up" {
			pseudo = n.Node.ID
		}
	}
	rating := 5
	_, err := fx.commands.Execute(context.Background(), commands.UpdateSkillCommand{UserID: user, NodeID: pseudo, Rating: &rating})
	require.NoError(t, err)

	fills := fx.ask(t, queries.GetFillsQuery{UserID: user, Tree: queries.TreeRef{ID: tree.Tree.ID}}).(queries.FillsView)
	require.Len(t, fills, 6)
	require.NotNil(t, fills[pseudo])
	assert.InDelta(t, 100.0, *fills[pseudo], 1e-9)
	require.NotNil(t, fills[tree.Tree.ID])
	assert.InDelta(t, 85.0, *fills[tree.Tree.ID], 1e-9)

	again := fx.ask(t, queries.GetTreeQuery{UserID: user, Tree: queries.TreeRef{ID: tree.Tree.ID}}).(queries.TreeView)
	assert.Equal(t, tree.Fingerprint, again.Fingerprint, "rating edits must not change the structure fingerprint")
}

func TestQueryErrors(t *testing.T) {
	fx := newFixture(t)

	tests := []struct {
		name  string
		query bus.Query
		check func(error) bool
	}{
		{"missing tree ref", queries.GetTreeQuery{UserID: user}, pkgerrors.IsValidation},
		{"unknown slug", queries.GetTreeQuery{UserID: user, Tree: queries.TreeRef{Slug: "juggling"}}, pkgerrors.IsNotFound},
		{"unknown id", queries.GetFillsQuery{UserID: user, Tree: queries.TreeRef{ID: 999}}, pkgerrors.IsNotFound},
		{"other user's tree", queries.GetElementsQuery{UserID: 2, Tree: queries.TreeRef{Slug: "calisthenics"}}, pkgerrors.IsNotFound},
		{"no user", queries.ListTreesQuery{}, pkgerrors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.queries.Ask(context.Background(), tt.query)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	created, err := seed.Demo(context.Background(), fx.commands, fx.listTrees, user, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, created)
}
