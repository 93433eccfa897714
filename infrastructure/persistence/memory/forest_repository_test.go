package memory

import (
	"context"
	"testing"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForestRepositoryContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) ports.ForestRepository {
		return NewForestRepository()
	})
}

func TestForestRepositoryHonoursCancellation(t *testing.T) {
	repo := NewForestRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Load(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
