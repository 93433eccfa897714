package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/application/queries"
	"github.com/nicobenz/flowpertoire/application/session"
	"github.com/nicobenz/flowpertoire/domain/core/aggregation"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/domain/projection"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to load a tree for a session
	loadTimeout = 10 * time.Second
)

var errNodeRequired = errors.New("nodeId is required")

// TreeSource loads the tree a session displays
type TreeSource interface {
	Tree(ctx context.Context, userID valueobjects.UserID, treeID valueobjects.NodeID) (queries.TreeView, error)
}

// Options configures the sessions of a hub
type Options struct {
	Source          TreeSource
	Layout          ports.LayoutProvider
	Rules           []projection.StyleRule
	Aggregation     []aggregation.Option
	PositionsPerSec float64
	SendBuffer      int
	PingInterval    time.Duration
	MaxMessageSize  int64
}

func (o Options) withDefaults() Options {
	if o.PositionsPerSec <= 0 {
		o.PositionsPerSec = 20
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	return o
}

// Client is one WebSocket connection with its own graph session. It is
// the session's Renderer: every render call becomes an outbound message.
type Client struct {
	id     string
	userID valueobjects.UserID
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	opts   Options
	logger *zap.Logger

	controller *session.Controller
	limiter    *rate.Limiter
	pending    atomic.Pointer[[]ports.NodePosition]

	// wanted is the tree the peer asked for, 0 for none
	wanted atomic.Int64
	wake   chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// owned by syncLoop
	mountedTree valueobjects.NodeID
	fingerprint string
}

// NewClient creates a new WebSocket client
func NewClient(userID valueobjects.UserID, hub *Hub, conn *websocket.Conn, opts Options, logger *zap.Logger) *Client {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	c := &Client{
		id:      id,
		userID:  userID,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, opts.SendBuffer),
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.PositionsPerSec), 1),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		logger: logger.With(
			zap.Int64("userID", int64(userID)),
			zap.String("connectionID", id),
		),
	}
	c.controller = session.NewController(c, opts.Layout, opts.Rules,
		session.WithSelectionListener(c.selectionChanged),
		session.WithTuning(hub.Tuning()),
		session.WithAggregationOptions(opts.Aggregation...),
		session.WithLogger(c.logger),
	)
	return c
}

// ID returns the client's connection ID
func (c *Client) ID() string { return c.id }

// Start registers the client and begins its pumps
func (c *Client) Start() error {
	if err := c.hub.add(c); err != nil {
		return err
	}
	go c.writePump()
	go c.syncLoop()
	go c.readPump()
	return nil
}

// Close ends the session. Safe to call from any goroutine, more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.controller.Destroy()
		c.hub.remove(c)
		c.conn.Close()
		c.logger.Debug("Session closed")
	})
}

// readPump turns peer messages into controller calls
func (c *Client) readPump() {
	defer c.Close()

	pongWait := 2 * c.opts.PingInterval
	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.sendError("binary messages are not supported")
			continue
		}

		msg, err := decodeInbound(raw)
		if err != nil {
			c.sendError(err.Error())
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg Inbound) {
	switch msg.Type {
	case TypeOpenTree:
		c.wanted.Store(msg.TreeID)
		c.wakeUp()
	case TypeCloseTree:
		c.wanted.Store(0)
		c.wakeUp()
	case TypeTap:
		c.controller.TapNode(msg.NodeID, msg.Additive)
	case TypeTapBackground:
		c.controller.TapBackground()
	case TypeTapStart:
		c.controller.TapStart()
	case TypeHover:
		c.controller.HoverNode(msg.NodeID)
	case TypeHoverOut:
		c.controller.HoverOut()
	case TypeDrag:
		c.controller.DragNode(msg.NodeID, msg.X, msg.Y)
	case TypeFree:
		c.controller.FreeNode(msg.NodeID)
	}
}

// writePump pumps queued messages to the peer and flushes throttled positions
func (c *Client) writePump() {
	ping := time.NewTicker(c.opts.PingInterval)
	flush := time.NewTicker(time.Duration(float64(time.Second) / c.opts.PositionsPerSec))
	defer func() {
		ping.Stop()
		flush.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			if !c.write(message) {
				return
			}
			// Drain what queued up meanwhile
			n := len(c.send)
			for i := 0; i < n; i++ {
				if !c.write(<-c.send) {
					return
				}
			}

		case <-flush.C:
			if c.pending.Load() == nil || !c.limiter.Allow() {
				continue
			}
			if p := c.pending.Swap(nil); p != nil {
				raw, err := json.Marshal(positionsMessage{Type: TypePositions, Positions: *p})
				if err != nil || !c.write(raw) {
					return
				}
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) write(message []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Debug("Failed to write message", zap.Error(err))
		return false
	}
	return true
}

// syncLoop loads the wanted tree whenever the peer or the hub asks
func (c *Client) syncLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
			c.sync()
		}
	}
}

func (c *Client) wakeUp() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// notify reacts to a forest change of the client's user
func (c *Client) notify(n notification) {
	want := valueobjects.NodeID(c.wanted.Load())
	if want == 0 {
		return
	}
	if len(n.trees) > 0 && !containsTree(n.trees, want) {
		return
	}
	c.wakeUp()
}

func containsTree(trees []valueobjects.NodeID, id valueobjects.NodeID) bool {
	for _, t := range trees {
		if t == id {
			return true
		}
	}
	return false
}

// sync brings the session in line with the wanted tree. A changed
// structure fingerprint remounts; otherwise only fills are refreshed.
func (c *Client) sync() {
	want := valueobjects.NodeID(c.wanted.Load())
	if want == 0 {
		c.unmount()
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, loadTimeout)
	defer cancel()

	view, err := c.opts.Source.Tree(ctx, c.userID, want)
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Warn("Failed to load tree", zap.Int64("treeID", int64(want)), zap.Error(err))
		if pkgerrors.IsNotFound(err) {
			c.unmount()
		}
		c.sendError(err.Error())
		return
	}

	if want != c.mountedTree || view.Fingerprint != c.fingerprint {
		c.controller.SetTuning(c.hub.Tuning())
		c.controller.SetStructure(c.ctx, view.Structure)
		c.mountedTree = want
		c.fingerprint = view.Fingerprint
	}
	c.controller.UpdateFills(view.Data)
}

func (c *Client) unmount() {
	c.controller.Destroy()
	c.mountedTree = 0
	c.fingerprint = ""
}

func (c *Client) selectionChanged(id *valueobjects.NodeID) {
	msg := selectionMessage{Type: TypeSelection}
	if id != nil {
		s := id.String()
		msg.NodeID = &s
	}
	c.enqueue(msg)
}

func (c *Client) sendError(message string) {
	c.enqueue(errorMessage{Type: TypeError, Message: message})
}

// enqueue never blocks: render calls arrive with the session lock held.
// A peer that cannot keep up is disconnected.
func (c *Client) enqueue(v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	select {
	case <-c.ctx.Done():
	case c.send <- raw:
	default:
		c.logger.Warn("Closing slow client")
		go c.Close()
	}
}

// Mount implements session.Renderer
func (c *Client) Mount(elements []projection.Element, rules []projection.StyleRule) {
	fingerprint, err := projection.Fingerprint(elements)
	if err != nil {
		c.logger.Error("Failed to fingerprint elements", zap.Error(err))
	}
	c.enqueue(mountMessage{
		Type:        TypeMount,
		Elements:    elements,
		Styles:      rules,
		Fingerprint: fingerprint,
	})
}

// Unmount implements session.Renderer
func (c *Client) Unmount() {
	c.pending.Store(nil)
	c.enqueue(unmountMessage{Type: TypeUnmount})
}

// PatchData implements session.Renderer
func (c *Client) PatchData(id, key string, value interface{}) {
	c.enqueue(dataMessage{Type: TypeData, ID: id, Key: key, Value: value})
}

// SetClasses implements session.Renderer
func (c *Client) SetClasses(id string, classes []string) {
	if classes == nil {
		classes = []string{}
	}
	c.enqueue(classesMessage{Type: TypeClasses, ID: id, Classes: classes})
}

// SetSelected implements session.Renderer
func (c *Client) SetSelected(id string, selected bool) {
	c.enqueue(selectedMessage{Type: TypeSelected, ID: id, Selected: selected})
}

// Positions implements session.Renderer. Ticks beyond the rate limit are
// held back and the latest one is flushed by the write pump.
func (c *Client) Positions(positions []ports.NodePosition) {
	if c.limiter.Allow() {
		c.pending.Store(nil)
		c.enqueue(positionsMessage{Type: TypePositions, Positions: positions})
		return
	}
	c.pending.Store(&positions)
}

var _ session.Renderer = (*Client)(nil)
