package force

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/projection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func nodeEl(id string) projection.Element {
	return projection.Element{Group: projection.GroupNodes, Data: projection.ElementData{ID: id, Label: id}}
}

func edgeEl(src, dst, typ string) projection.Element {
	return projection.Element{Group: projection.GroupEdges, Data: projection.ElementData{
		ID: "e-" + typ + "-" + src + "-" + dst, Source: src, Target: dst, EdgeType: typ,
	}}
}

func sampleElements() []projection.Element {
	return []projection.Element{
		nodeEl("1"), nodeEl("2"), nodeEl("3"), nodeEl("4"),
		edgeEl("1", "2", "parent"), edgeEl("2", "3", "parent"), edgeEl("2", "4", "parent"),
		edgeEl("3", "4", "concept"),
		edgeEl("4", "99", "parent"),
	}
}

func distance(a, b ports.NodePosition) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func TestNewSimulation(t *testing.T) {
	s := NewSimulation(sampleElements(), ports.DefaultTuning())

	positions := s.Positions()
	require.Len(t, positions, 4)
	assert.Equal(t, "1", positions[0].ID)
	assert.Len(t, s.links, 4, "edge to an unknown node is dropped")

	seen := make(map[[2]float64]bool)
	for _, p := range positions {
		key := [2]float64{p.X, p.Y}
		assert.False(t, seen[key], "initial positions are distinct")
		seen[key] = true
	}
}

func TestStepSeparatesOverlappingNodes(t *testing.T) {
	tuning := ports.DefaultTuning()
	tuning.Alpha = 1
	s := NewSimulation(sampleElements(), tuning)

	before := distance(s.Positions()[0], s.Positions()[1])
	for i := 0; i < 300; i++ {
		s.Step()
	}
	after := s.Positions()

	assert.Greater(t, distance(after[0], after[1]), before)
	for i := range after {
		assert.False(t, math.IsNaN(after[i].X) || math.IsNaN(after[i].Y))
	}
}

func TestAlphaSchedule(t *testing.T) {
	tuning := ports.DefaultTuning()
	s := NewSimulation(sampleElements(), tuning)
	assert.False(t, s.Cold())

	for i := 0; i < 1000 && !s.Cold(); i++ {
		s.Step()
	}
	assert.True(t, s.Cold())

	s.SetAlphaTarget(tuning.DragAlphaTarget, true)
	assert.False(t, s.Cold())
	assert.Equal(t, tuning.AlphaRestart, s.Alpha())
	s.Step()
	assert.Greater(t, s.Alpha(), tuning.AlphaRestart)

	s.SetAlphaTarget(0, false)
	assert.Equal(t, 0.0, s.AlphaTarget())
}

func TestPin(t *testing.T) {
	tuning := ports.DefaultTuning()
	tuning.Alpha = 1
	s := NewSimulation(sampleElements(), tuning)

	require.True(t, s.Pin("2", 100, -50))
	assert.False(t, s.Pin("missing", 0, 0))
	for i := 0; i < 20; i++ {
		s.Step()
	}
	p := s.Positions()[1]
	assert.Equal(t, 100.0, p.X)
	assert.Equal(t, -50.0, p.Y)

	s.Release("2")
	for i := 0; i < 20; i++ {
		s.Step()
	}
	assert.NotEqual(t, 100.0, s.Positions()[1].X)
}

type tickRecorder struct {
	mu    sync.Mutex
	ticks int
}

func (r *tickRecorder) onTick(_ []ports.NodePosition) {
	r.mu.Lock()
	r.ticks++
	r.mu.Unlock()
}

func (r *tickRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

func fastTuning() ports.Tuning {
	tuning := ports.DefaultTuning()
	tuning.TickInterval = time.Millisecond
	return tuning
}

func TestProvider(t *testing.T) {
	t.Run("ticks until stopped", func(t *testing.T) {
		rec := &tickRecorder{}
		p := NewProvider(zaptest.NewLogger(t))

		h, err := p.Start(context.Background(), sampleElements(), nil, fastTuning(), rec.onTick)
		require.NoError(t, err)
		assert.Eventually(t, func() bool { return rec.count() > 3 }, time.Second, time.Millisecond)

		h.Stop()
		h.Stop()
		n := rec.count()
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, n, rec.count())
	})

	t.Run("idles when cold and wakes on reheat", func(t *testing.T) {
		rec := &tickRecorder{}
		tuning := fastTuning()
		tuning.Alpha = 0
		h, err := NewProvider(nil).Start(context.Background(), sampleElements(), nil, tuning, rec.onTick)
		require.NoError(t, err)
		defer h.Stop()

		time.Sleep(10 * time.Millisecond)
		assert.Zero(t, rec.count())

		h.Pin("1", 5, 5)
		h.SetAlphaTarget(tuning.DragAlphaTarget, true)
		assert.Equal(t, tuning.DragAlphaTarget, h.AlphaTarget())
		assert.Eventually(t, func() bool { return rec.count() > 0 }, time.Second, time.Millisecond)
		h.Release("1")
	})

	t.Run("stops with its context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		h, err := NewProvider(nil).Start(ctx, sampleElements(), nil, fastTuning(), nil)
		require.NoError(t, err)

		cancel()
		done := make(chan struct{})
		go func() {
			h.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("layout did not stop")
		}
	})

	t.Run("rejects unusable tuning", func(t *testing.T) {
		tuning := ports.DefaultTuning()
		tuning.TickInterval = 0
		_, err := NewProvider(nil).Start(context.Background(), nil, nil, tuning, nil)
		assert.ErrorIs(t, err, ErrInvalidTuning)
	})
}
