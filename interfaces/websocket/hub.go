package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/domain/events"
	"go.uber.org/zap"
)

// SessionMetrics tracks live sessions
type SessionMetrics interface {
	SessionOpened()
	SessionClosed()
}

// Hub maintains active WebSocket connections and routes forest events to
// the sessions of the affected user
type Hub struct {
	// User connections - one user can have multiple connections
	connections map[valueobjects.UserID]map[*Client]bool
	mu          sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan notification

	tuning   ports.Tuning
	tuningMu sync.RWMutex

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	logger  *zap.Logger
	metrics SessionMetrics
}

// notification tells a user's sessions that their forest changed
type notification struct {
	userID     valueobjects.UserID
	trees      []valueobjects.NodeID
	structural bool
}

// ErrHubStopped is returned once the hub no longer accepts work
var ErrHubStopped = errors.New("websocket hub stopped")

// NewHub creates a new WebSocket hub. metrics may be nil.
func NewHub(tuning ports.Tuning, metrics SessionMetrics, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		connections: make(map[valueobjects.UserID]map[*Client]bool),
		register:    make(chan *Client, 100),
		unregister:  make(chan *Client, 100),
		broadcast:   make(chan notification, 1000),
		tuning:      tuning,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		logger:      logger.Named("websocket"),
		metrics:     metrics,
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case n := <-h.broadcast:
			h.notifyUser(n)
		}
	}
}

// Stop shuts the hub down and waits for Run to return
func (h *Hub) Stop() {
	h.logger.Info("Stopping WebSocket hub")
	h.cancel()
	<-h.done
}

// SetTuning changes the layout tuning for sessions opened from now on
func (h *Hub) SetTuning(t ports.Tuning) {
	h.tuningMu.Lock()
	h.tuning = t
	h.tuningMu.Unlock()
}

// Tuning returns the tuning new sessions start with
func (h *Hub) Tuning() ports.Tuning {
	h.tuningMu.RLock()
	defer h.tuningMu.RUnlock()
	return h.tuning
}

// Handle queues an event for the sessions of its user
func (h *Hub) Handle(ctx context.Context, event events.DomainEvent) error {
	n := notification{
		userID:     event.GetUserID(),
		trees:      event.GetTreeIDs(),
		structural: event.Structural(),
	}
	if h.ctx.Err() != nil {
		return ErrHubStopped
	}
	select {
	case h.broadcast <- n:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CanHandle accepts every forest event
func (h *Hub) CanHandle(string) bool { return true }

// ConnectionCount returns the number of active connections for a user
func (h *Hub) ConnectionCount(userID valueobjects.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

func (h *Hub) add(c *Client) error {
	if h.ctx.Err() != nil {
		return ErrHubStopped
	}
	select {
	case h.register <- c:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	case <-time.After(5 * time.Second):
		h.logger.Warn("Unregister timed out", zap.String("connectionID", c.id))
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[client.userID] == nil {
		h.connections[client.userID] = make(map[*Client]bool)
	}
	h.connections[client.userID][client] = true

	if h.metrics != nil {
		h.metrics.SessionOpened()
	}
	h.logger.Info("Client registered",
		zap.Int64("userID", int64(client.userID)),
		zap.String("connectionID", client.id),
		zap.Int("userConnections", len(h.connections[client.userID])),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.connections[client.userID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.connections, client.userID)
	}

	if h.metrics != nil {
		h.metrics.SessionClosed()
	}
	h.logger.Info("Client unregistered",
		zap.Int64("userID", int64(client.userID)),
		zap.String("connectionID", client.id),
		zap.Int("remainingConnections", len(clients)),
	)
}

func (h *Hub) notifyUser(n notification) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.connections[n.userID]))
	for c := range h.connections[n.userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.notify(n)
	}
	h.logger.Debug("Forest change fanned out",
		zap.Int64("userID", int64(n.userID)),
		zap.Bool("structural", n.structural),
		zap.Int("sessions", len(clients)),
	)
}

// closeAllConnections closes all active connections during shutdown
func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	var all []*Client
	for userID, clients := range h.connections {
		for c := range clients {
			all = append(all, c)
		}
		delete(h.connections, userID)
	}
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
		if h.metrics != nil {
			h.metrics.SessionClosed()
		}
	}
	h.logger.Info("All connections closed", zap.Int("count", len(all)))
}
