package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openTemp(t *testing.T) *ForestRepository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "forest.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestForestRepositoryContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) ports.ForestRepository {
		return openTemp(t)
	})
}

func TestReopenKeepsDataAndSequences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forest.db")
	ctx := context.Background()

	repo, err := Open(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	forest, err := repo.Load(ctx, valueobjects.DefaultUserID)
	require.NoError(t, err)
	desc := "Partner work"
	root, err := forest.CreateRootTree(ctx, repo, "Salsa dance", &desc)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, forest))
	require.NoError(t, repo.Close())

	reopened, err := Open(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Ping(ctx))

	forest, err = reopened.Load(ctx, valueobjects.DefaultUserID)
	require.NoError(t, err)
	trees := forest.RootTrees()
	require.Len(t, trees, 1)
	assert.Equal(t, "salsa-dance", trees[0].Slug)

	data, err := forest.TreeData(root.ID)
	require.NoError(t, err)
	require.Len(t, data.Groups, 1)
	require.NotNil(t, data.Groups[0].Description)
	assert.Equal(t, "Partner work", *data.Groups[0].Description)

	next, err := reopened.NextID(ctx, aggregates.SeqNode)
	require.NoError(t, err)
	assert.Greater(t, next, int64(root.ID))
}

func TestSaveWithoutChangesIsANoop(t *testing.T) {
	repo := openTemp(t)
	forest, err := repo.Load(context.Background(), 7)
	require.NoError(t, err)
	assert.NoError(t, repo.Save(context.Background(), forest))
}

func TestOpenMigratesToLatestSchema(t *testing.T) {
	repo := openTemp(t)

	var version int
	require.NoError(t, repo.conn.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, len(migrations), version)

	var hasSortOrder int
	require.NoError(t, repo.conn.QueryRow(
		`SELECT count(*) FROM pragma_table_info('node_edges') WHERE name = 'sort_order'`).Scan(&hasSortOrder))
	assert.Equal(t, 1, hasSortOrder)
}
