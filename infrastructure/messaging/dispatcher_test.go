package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nicobenz/flowpertoire/application/queries"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/domain/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, e events.DomainEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	return m.Called(ctx, batch).Error(0)
}

var at = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestDispatcherDeliversToMatchingHandlers(t *testing.T) {
	d := NewDispatcher(nil, nil, zap.NewNop())

	var all, created []string
	d.Subscribe(HandlerFunc{Fn: func(_ context.Context, e events.DomainEvent) error {
		all = append(all, e.GetEventType())
		return errors.New("ignored")
	}})
	d.Subscribe(HandlerFunc{
		Types: []string{events.TypeTreeCreated},
		Fn: func(_ context.Context, e events.DomainEvent) error {
			created = append(created, e.GetEventType())
			return nil
		},
	})

	err := d.PublishBatch(context.Background(), []events.DomainEvent{
		events.NewTreeCreated(1, 5, "Calisthenics", "calisthenics", at),
		events.NewConceptLinked(1, nil, 2, 3, at),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{events.TypeTreeCreated, events.TypeConceptLinked}, all)
	assert.Equal(t, []string{events.TypeTreeCreated}, created)
}

func TestDispatcherForwardsDownstream(t *testing.T) {
	downstream := &mockPublisher{}
	batch := []events.DomainEvent{events.NewTreeCreated(1, 5, "Salsa dance", "salsa-dance", at)}
	downstream.On("PublishBatch", mock.Anything, batch).Return(errors.New("bus down"))

	d := NewDispatcher(downstream, nil, zap.NewNop())
	err := d.PublishBatch(context.Background(), batch)

	assert.EqualError(t, err, "bus down")
	downstream.AssertExpectations(t)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) (interface{}, bool) { return nil, false }
func (m *mockCache) Set(ctx context.Context, key string, v interface{}, ttl int) error {
	return nil
}
func (m *mockCache) Delete(ctx context.Context, key string) error { return nil }
func (m *mockCache) DeletePrefix(ctx context.Context, prefix string) error {
	return m.Called(prefix).Error(0)
}
func (m *mockCache) Clear(ctx context.Context) error { return nil }

func TestCacheInvalidatorDropsTheUsersViews(t *testing.T) {
	cache := &mockCache{}
	cache.On("DeletePrefix", queries.UserCachePrefix(7)).Return(nil).Once()

	d := NewDispatcher(nil, nil, zap.NewNop())
	d.Subscribe(NewCacheInvalidator(cache))
	require.NoError(t, d.Publish(context.Background(), events.NewTreeDeleted(valueobjects.UserID(7), 5, nil, at)))

	cache.AssertExpectations(t)
}
