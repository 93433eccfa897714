package dynamodb

import (
	"context"
	"testing"
	"time"

	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDistributedLock(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		fake := newFakeTable()
		lock := NewDistributedLock(fake, table, time.Minute, 0, zaptest.NewLogger(t))

		release, err := lock.Lock(ctx, 1)
		require.NoError(t, err)
		assert.True(t, fake.has("LOCK#forest#1", "LOCK"))

		release()
		assert.False(t, fake.has("LOCK#forest#1", "LOCK"))
	})

	t.Run("held lock reports a concurrent write", func(t *testing.T) {
		fake := newFakeTable()
		first := NewDistributedLock(fake, table, time.Minute, 0, zaptest.NewLogger(t))
		second := NewDistributedLock(fake, table, time.Minute, 0, zaptest.NewLogger(t))

		release, err := first.Lock(ctx, 1)
		require.NoError(t, err)
		defer release()

		_, err = second.Lock(ctx, 1)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeConcurrentWrite, pkgerrors.GetAppError(err).Code)

		other, err := second.Lock(ctx, 2)
		require.NoError(t, err)
		other()
	})

	t.Run("expired lock is taken over", func(t *testing.T) {
		fake := newFakeTable()
		crashed := NewDistributedLock(fake, table, time.Second, 0, zaptest.NewLogger(t))
		_, err := crashed.Lock(ctx, 1)
		require.NoError(t, err)

		later := NewDistributedLock(fake, table, time.Minute, 0, zaptest.NewLogger(t))
		later.now = func() time.Time { return time.Now().Add(time.Hour) }
		release, err := later.Lock(ctx, 1)
		require.NoError(t, err)
		release()
	})

	t.Run("waits for the holder", func(t *testing.T) {
		fake := newFakeTable()
		holder := NewDistributedLock(fake, table, time.Minute, 0, zaptest.NewLogger(t))
		waiter := NewDistributedLock(fake, table, time.Minute, 2*time.Second, zaptest.NewLogger(t))

		release, err := holder.Lock(ctx, 1)
		require.NoError(t, err)
		time.AfterFunc(50*time.Millisecond, release)

		got, err := waiter.Lock(ctx, 1)
		require.NoError(t, err)
		got()
	})
}
