// Package session drives one live graph view: it mounts a projected tree,
// keeps fills current without restarting the layout, and tracks the
// interactive state (selection, hover highlight, dragging).
package session

import (
	"context"
	"sync"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/core/aggregation"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/domain/projection"
	"go.uber.org/zap"
)

// State of a controller
type State int

const (
	StateEmpty State = iota
	StateLive
)

func (s State) String() string {
	if s == StateLive {
		return "live"
	}
	return "empty"
}

// SelectionListener receives the activated node, or nil when the
// selection was cleared. It is called with the controller lock held.
type SelectionListener func(id *valueobjects.NodeID)

// Controller owns at most one mounted graph. All methods are safe for
// concurrent use; the layout goroutine reports positions through the
// same lock.
type Controller struct {
	mu       sync.Mutex
	renderer Renderer
	layout   ports.LayoutProvider
	tuning   ports.Tuning
	rules    []projection.StyleRule
	onSelect SelectionListener
	logger   *zap.Logger
	options  []aggregation.Option

	inst     *instance
	handle   ports.LayoutHandle
	selected *valueobjects.NodeID
}

// Option configures a Controller
type Option func(*Controller)

// WithSelectionListener registers the selection callback
func WithSelectionListener(fn SelectionListener) Option {
	return func(c *Controller) { c.onSelect = fn }
}

// WithTuning overrides the default layout tuning
func WithTuning(t ports.Tuning) Option {
	return func(c *Controller) { c.tuning = t }
}

// WithAggregationOptions passes options to every projection
func WithAggregationOptions(opts ...aggregation.Option) Option {
	return func(c *Controller) { c.options = append(c.options, opts...) }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates an empty controller
func NewController(renderer Renderer, layout ports.LayoutProvider, rules []projection.StyleRule, opts ...Option) *Controller {
	c := &Controller{
		renderer: renderer,
		layout:   layout,
		tuning:   ports.DefaultTuning(),
		rules:    rules,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports whether a graph is mounted
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inst == nil {
		return StateEmpty
	}
	return StateLive
}

// SetTuning replaces the tuning used by the next SetStructure
func (c *Controller) SetTuning(t ports.Tuning) {
	c.mu.Lock()
	c.tuning = t
	c.mu.Unlock()
}

// SetStructure tears down the current graph and mounts a new one built
// from s. The selection is cleared first. A layout that fails to start
// is logged and the graph stays mounted without positions.
func (c *Controller) SetStructure(ctx context.Context, s entities.GraphStructure) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearSelection()
	c.teardown()

	elements := projection.ProjectStructure(s, c.options...)
	inst := newInstance(c.renderer, elements)
	c.inst = inst
	c.renderer.Mount(inst.elements(), c.rules)

	if c.layout == nil {
		return
	}
	handle, err := c.layout.Start(ctx, inst.elements(), c.rules, c.tuning, c.tickFor(inst))
	if err != nil {
		c.logger.Warn("Layout failed to start",
			zap.Int("elements", len(elements)),
			zap.Error(err))
		return
	}
	c.handle = handle
}

// tickFor delivers positions for inst only while it is still mounted.
// Ticks that arrive while the lock is held are dropped: teardown holds
// the lock while waiting for the layout to stop.
func (c *Controller) tickFor(inst *instance) func([]ports.NodePosition) {
	return func(positions []ports.NodePosition) {
		if !c.mu.TryLock() {
			return
		}
		defer c.mu.Unlock()
		if c.inst != inst {
			return
		}
		c.renderer.Positions(positions)
	}
}

// UpdateFills pushes new fill values into the mounted graph without
// rebuilding it or touching the layout. No-op when empty.
func (c *Controller) UpdateFills(data entities.TreeData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inst == nil {
		return
	}
	projection.RefreshFills(c.inst, data, c.options...)
}

// Destroy unmounts the graph and stops the layout. Safe to call twice.
func (c *Controller) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inst == nil {
		return
	}
	c.clearSelection()
	c.teardown()
}

// teardown stops the layout, then destroys the graph
func (c *Controller) teardown() {
	if c.handle != nil {
		c.handle.Stop()
		c.handle = nil
	}
	if c.inst != nil {
		c.renderer.Unmount()
		c.inst = nil
	}
}

// Elements returns a copy of the mounted elements
func (c *Controller) Elements() []projection.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inst == nil {
		return nil
	}
	return c.inst.elements()
}

// SelectedID returns the most recently activated node
func (c *Controller) SelectedID() *valueobjects.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return nil
	}
	id := *c.selected
	return &id
}

// TapNode activates a node. Without additive every other node is
// unselected first.
func (c *Controller) TapNode(id string, additive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inst == nil || !c.inst.HasElement(id) {
		return
	}
	nodeID, err := valueobjects.ParseNodeID(id)
	if err != nil {
		return
	}
	if !additive {
		for _, other := range c.inst.selectedIDs() {
			if other != id {
				c.inst.selectNode(other, false)
			}
		}
	}
	c.inst.selectNode(id, true)
	c.selected = &nodeID
	c.notify()
}

// TapBackground unselects everything
func (c *Controller) TapBackground() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inst == nil {
		return
	}
	c.clearSelection()
}

func (c *Controller) clearSelection() {
	if c.inst != nil {
		for _, id := range c.inst.selectedIDs() {
			c.inst.selectNode(id, false)
		}
	}
	c.selected = nil
	c.notify()
}

func (c *Controller) notify() {
	if c.onSelect == nil {
		return
	}
	if c.selected == nil {
		c.onSelect(nil)
		return
	}
	id := *c.selected
	c.onSelect(&id)
}

// HoverNode highlights the subtree below id and dims the rest
func (c *Controller) HoverNode(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inst == nil || !c.inst.hasNode(id) {
		return
	}
	c.inst.highlight(id)
}

// HoverOut removes the hover classes
func (c *Controller) HoverOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inst == nil {
		return
	}
	c.inst.clearHighlight()
}

// TapStart settles the simulation when a press begins
func (c *Controller) TapStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return
	}
	c.handle.SetAlphaTarget(0, false)
}

// DragNode pins a node under the pointer and reheats the layout
func (c *Controller) DragNode(id string, x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil || c.inst == nil || !c.inst.hasNode(id) {
		return
	}
	c.handle.Pin(id, x, y)
	c.handle.SetAlphaTarget(c.tuning.DragAlphaTarget, true)
}

// FreeNode releases a dragged node and lets the layout cool down
func (c *Controller) FreeNode(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return
	}
	c.handle.SetAlphaTarget(0, false)
	c.handle.Release(id)
}
