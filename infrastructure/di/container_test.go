package di

import (
	"context"
	"testing"

	"github.com/nicobenz/flowpertoire/application/commands"
	"github.com/nicobenz/flowpertoire/application/queries"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("ENABLE_EVENTBRIDGE", "false")
	t.Setenv("TRACING_BACKEND", "none")
	t.Setenv("AWS_REGION", "us-east-1")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return c
}

func TestInitializeContainer(t *testing.T) {
	c := newTestContainer(t)

	assert.Equal(t, config.DriverMemory, c.Storage.Driver)
	assert.NoError(t, c.Storage.Ready(context.Background()))
	assert.NotNil(t, c.Hub)
	assert.NotNil(t, c.SessionOptions.Source)
	assert.NotNil(t, c.Metrics.Handler())
}

func TestCommandsInvalidateCachedQueries(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	_, err := c.CommandBus.Execute(ctx, commands.CreateTreeCommand{UserID: 1, Label: "Calisthenics"})
	require.NoError(t, err)

	result, err := c.QueryBus.Ask(ctx, queries.ListTreesQuery{UserID: 1})
	require.NoError(t, err)
	require.Len(t, result.([]entities.RootTree), 1)

	// second read is served from the cache
	_, err = c.QueryBus.Ask(ctx, queries.ListTreesQuery{UserID: 1})
	require.NoError(t, err)

	_, err = c.CommandBus.Execute(ctx, commands.CreateTreeCommand{UserID: 1, Label: "Salsa"})
	require.NoError(t, err)

	result, err = c.QueryBus.Ask(ctx, queries.ListTreesQuery{UserID: 1})
	require.NoError(t, err)
	trees := result.([]entities.RootTree)
	require.Len(t, trees, 2)
	assert.Equal(t, "salsa", trees[1].Slug)

	other, err := c.QueryBus.Ask(ctx, queries.ListTreesQuery{UserID: 2})
	require.NoError(t, err)
	assert.Empty(t, other)
}
