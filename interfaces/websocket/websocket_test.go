package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/application/queries"
	"github.com/nicobenz/flowpertoire/domain/core/aggregates"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/domain/events"
	"github.com/nicobenz/flowpertoire/domain/projection"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/memory"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "open tree", raw: `{"type":"open_tree","treeId":3}`},
		{name: "open without tree", raw: `{"type":"open_tree"}`, wantErr: true},
		{name: "tap", raw: `{"type":"tap","nodeId":"7","additive":true}`},
		{name: "tap without node", raw: `{"type":"tap"}`, wantErr: true},
		{name: "drag", raw: `{"type":"drag","nodeId":"7","x":1.5,"y":-2}`},
		{name: "edge ids are not nodes", raw: `{"type":"hover","nodeId":"e-parent-1-2"}`, wantErr: true},
		{name: "background tap", raw: `{"type":"tap_background"}`},
		{name: "unknown type", raw: `{"type":"zoom"}`, wantErr: true},
		{name: "not json", raw: `tap`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeInbound([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// treeSource serves one forest and counts loads
type treeSource struct {
	mu     sync.Mutex
	ids    *memory.ForestRepository
	forest *aggregates.Forest
	loads  int
}

func (s *treeSource) Tree(_ context.Context, _ valueobjects.UserID, treeID valueobjects.NodeID) (queries.TreeView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++

	data, err := s.forest.TreeData(treeID)
	if err != nil {
		return queries.TreeView{}, pkgerrors.NewNotFoundError("tree")
	}
	structure := data.Structure()
	fingerprint, err := projection.Fingerprint(projection.ProjectStructure(structure))
	if err != nil {
		return queries.TreeView{}, err
	}
	return queries.TreeView{Data: data, Structure: structure, Fingerprint: fingerprint}, nil
}

func (s *treeSource) with(fn func(f *aggregates.Forest)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.forest)
}

type fixture struct {
	source *treeSource
	hub    *Hub
	root   entities.RootTree
	group  entities.Node
	skill  entities.Node
	conn   *websocket.Conn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	ids := memory.NewForestRepository()
	forest := aggregates.NewForest(valueobjects.DefaultUserID)
	root, err := forest.CreateRootTree(ctx, ids, "Calisthenics", nil)
	require.NoError(t, err)
	group, err := forest.AddChildGroup(ctx, ids, root.ID, "Push-up variations", nil)
	require.NoError(t, err)
	skill, err := forest.AddChildSkill(ctx, ids, group.ID, "Regular Push-up")
	require.NoError(t, err)
	rating := 5
	_, err = forest.UpdateSkill(skill.ID, aggregates.SkillPatch{Rating: &rating})
	require.NoError(t, err)

	source := &treeSource{ids: ids, forest: forest}
	hub := NewHub(ports.DefaultTuning(), nil, zap.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	handler := NewHandler(hub, Options{Source: source, Rules: projection.DefaultStyleRules(projection.DefaultTheme())}, nil, zap.NewNop())
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ConnectionCount(valueobjects.DefaultUserID) == 1 },
		2*time.Second, 10*time.Millisecond)

	return &fixture{source: source, hub: hub, root: root, group: group, skill: skill, conn: conn}
}

func (f *fixture) sendJSON(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, f.conn.WriteJSON(v))
}

// next reads until a message of type typ arrives
func (f *fixture) next(t *testing.T, typ string) map[string]interface{} {
	t.Helper()
	require.NoError(t, f.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := f.conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg["type"] == typ {
			return msg
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	at := time.Now()

	f.sendJSON(t, map[string]interface{}{"type": TypeOpenTree, "treeId": f.root.ID})
	mount := f.next(t, TypeMount)
	view, err := f.source.Tree(context.Background(), 1, f.root.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Fingerprint, mount["fingerprint"])
	assert.Len(t, mount["elements"], 5) // three nodes, two parent edges
	assert.NotEmpty(t, mount["styles"])

	// Fills follow the mount, one patch per node
	fills := map[string]interface{}{}
	for i := 0; i < 3; i++ {
		data := f.next(t, TypeData)
		assert.Equal(t, projection.KeyFill, data["key"])
		fills[data["id"].(string)] = data["value"]
	}
	assert.Equal(t, 100.0, fills[f.skill.ID.String()])

	t.Run("rating change patches fills in place", func(t *testing.T) {
		f.source.with(func(forest *aggregates.Forest) {
			rating := 4
			_, err := forest.UpdateSkill(f.skill.ID, aggregates.SkillPatch{Rating: &rating})
			require.NoError(t, err)
		})
		require.NoError(t, f.hub.Handle(context.Background(), events.NewSkillUpdated(1,
			[]valueobjects.NodeID{f.root.ID}, f.skill.ID, 0, 4, valueobjects.StatusLearning, false, at)))

		for {
			msg := f.next(t, TypeData)
			if msg["id"] == f.skill.ID.String() {
				assert.Equal(t, 80.0, msg["value"])
				break
			}
		}
	})

	t.Run("structural change remounts", func(t *testing.T) {
		var added entities.Node
		f.source.with(func(forest *aggregates.Forest) {
			var err error
			added, err = forest.AddChildSkill(context.Background(), f.source.ids, f.group.ID, "Diamond Push-up")
			require.NoError(t, err)
		})
		require.NoError(t, f.hub.Handle(context.Background(), events.NewSkillAdded(1,
			[]valueobjects.NodeID{f.root.ID}, added.ID, f.group.ID, 0, "Diamond Push-up", at)))

		f.next(t, TypeUnmount)
		mount := f.next(t, TypeMount)
		assert.Len(t, mount["elements"], 7)
	})

	t.Run("tap selects", func(t *testing.T) {
		f.sendJSON(t, Inbound{Type: TypeTap, NodeID: f.skill.ID.String()})
		selected := f.next(t, TypeSelected)
		assert.Equal(t, f.skill.ID.String(), selected["id"])
		assert.Equal(t, true, selected["selected"])
		selection := f.next(t, TypeSelection)
		assert.Equal(t, f.skill.ID.String(), selection["nodeId"])
	})

	t.Run("invalid messages are reported", func(t *testing.T) {
		f.sendJSON(t, map[string]string{"type": "zoom"})
		f.next(t, TypeError)
	})

	t.Run("close tree unmounts", func(t *testing.T) {
		f.sendJSON(t, Inbound{Type: TypeCloseTree})
		f.next(t, TypeUnmount)
	})
}

func TestOpeningAMissingTreeReportsAnError(t *testing.T) {
	f := newFixture(t)
	f.sendJSON(t, map[string]interface{}{"type": TypeOpenTree, "treeId": 999})
	msg := f.next(t, TypeError)
	assert.Contains(t, msg["message"], "not found")
}

func TestHubDropsClientsOnClose(t *testing.T) {
	f := newFixture(t)
	f.conn.Close()
	assert.Eventually(t, func() bool { return f.hub.ConnectionCount(valueobjects.DefaultUserID) == 0 },
		2*time.Second, 10*time.Millisecond)
}

func newDetachedClient(t *testing.T, perSec float64) *Client {
	t.Helper()
	hub := NewHub(ports.DefaultTuning(), nil, zap.NewNop())
	return NewClient(1, hub, nil, Options{PositionsPerSec: perSec}, zap.NewNop())
}

func TestPositionsAreRateLimited(t *testing.T) {
	c := newDetachedClient(t, 1)

	c.Positions([]ports.NodePosition{{ID: "1", X: 1}})
	c.Positions([]ports.NodePosition{{ID: "1", X: 2}})
	c.Positions([]ports.NodePosition{{ID: "1", X: 3}})

	require.Len(t, c.send, 1)
	var first positionsMessage
	require.NoError(t, json.Unmarshal(<-c.send, &first))
	assert.Equal(t, 1.0, first.Positions[0].X)

	held := c.pending.Load()
	require.NotNil(t, held)
	assert.Equal(t, 3.0, (*held)[0].X)

	c.Unmount()
	assert.Nil(t, c.pending.Load())
}

func TestNotifyFiltersByTree(t *testing.T) {
	c := newDetachedClient(t, 10)

	c.notify(notification{userID: 1, trees: []valueobjects.NodeID{4}})
	assert.Len(t, c.wake, 0, "no tree open")

	c.wanted.Store(4)
	c.notify(notification{userID: 1, trees: []valueobjects.NodeID{9}})
	assert.Len(t, c.wake, 0, "other tree")

	c.notify(notification{userID: 1, trees: []valueobjects.NodeID{9, 4}})
	assert.Len(t, c.wake, 1)

	<-c.wake
	c.notify(notification{userID: 1})
	assert.Len(t, c.wake, 1, "events without trees reach every session")
}

type countingMetrics struct {
	mu             sync.Mutex
	opened, closed int
}

func (m *countingMetrics) SessionOpened() { m.mu.Lock(); m.opened++; m.mu.Unlock() }
func (m *countingMetrics) SessionClosed() { m.mu.Lock(); m.closed++; m.mu.Unlock() }

func TestHubStopClosesSessions(t *testing.T) {
	metrics := &countingMetrics{}
	hub := NewHub(ports.DefaultTuning(), metrics, zap.NewNop())
	go hub.Run()

	server := httptest.NewServer(NewHandler(hub, Options{Source: &treeSource{}}, []string{"*"}, zap.NewNop()))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ConnectionCount(1) == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Stop()

	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ConnectionCount(1))

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, 1, metrics.opened)
	assert.Equal(t, 1, metrics.closed)
	assert.ErrorIs(t, hub.Handle(context.Background(), events.NewTreeDeleted(1, 5, nil, time.Now())), ErrHubStopped)
}

func TestHubRejectsWorkAfterStop(t *testing.T) {
	hub := NewHub(ports.DefaultTuning(), nil, zap.NewNop())
	go hub.Run()
	hub.Stop()

	// both channels are buffered, so every attempt must see the stopped hub
	for i := 0; i < 50; i++ {
		err := hub.Handle(context.Background(), events.NewTreeDeleted(1, 5, nil, time.Now()))
		require.ErrorIs(t, err, ErrHubStopped)
		require.ErrorIs(t, hub.add(&Client{id: "late"}), ErrHubStopped)
	}
	assert.Empty(t, hub.broadcast)
	assert.Empty(t, hub.register)
}

func TestCheckOrigin(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://evil.example")

	assert.True(t, checkOrigin(nil)(r))
	assert.True(t, checkOrigin([]string{"*"})(r))
	assert.False(t, checkOrigin([]string{"https://app.example"})(r))

	r.Header.Set("Origin", "https://app.example")
	assert.True(t, checkOrigin([]string{"https://app.example"})(r))
}
