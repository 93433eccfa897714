package dynamodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStore(t *testing.T) {
	ctx := context.Background()
	table := newFakeTable()
	store := NewConnectionStore(table, "connections", "GSI1")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(ctx, Connection{ConnectionID: "abc=", UserID: 1, Endpoint: "x.execute-api/prod", ConnectedAt: at}))
	require.NoError(t, store.Put(ctx, Connection{ConnectionID: "def=", UserID: 1, Endpoint: "x.execute-api/prod", ConnectedAt: at}))
	require.NoError(t, store.Put(ctx, Connection{ConnectionID: "ghi=", UserID: 2, Endpoint: "x.execute-api/prod", ConnectedAt: at}))
	assert.True(t, table.has("CONNECTION#abc=", "METADATA"))

	conns, err := store.ForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "abc=", conns[0].ConnectionID)
	assert.Equal(t, "x.execute-api/prod", conns[0].Endpoint)
	assert.True(t, at.Equal(conns[0].ConnectedAt))

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "abc="))
		require.NoError(t, store.Delete(ctx, "abc="))

		conns, err := store.ForUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, conns, 1)
		assert.Equal(t, "def=", conns[0].ConnectionID)
	})

	t.Run("paginated", func(t *testing.T) {
		table.pageSize = 1
		defer func() { table.pageSize = 0 }()
		require.NoError(t, store.Put(ctx, Connection{ConnectionID: "jkl=", UserID: 2, ConnectedAt: at}))

		conns, err := store.ForUser(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, conns, 2)
	})
}
