package websocket

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/nicobenz/flowpertoire/application/queries"
	querybus "github.com/nicobenz/flowpertoire/application/queries/bus"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/pkg/common"
	"go.uber.org/zap"
)

// MaxConnectionsPerUser caps the live sessions of one user
const MaxConnectionsPerUser = 10

// Handler upgrades requests to live graph sessions. The acting user is
// read from the request context.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	opts     Options
	logger   *zap.Logger
}

// NewHandler creates the upgrade handler. An empty origin list or "*"
// accepts any origin.
func NewHandler(hub *Hub, opts Options, allowedOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		opts:   opts,
		logger: logger.Named("websocket"),
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := common.UserIDFrom(r.Context())

	if n := h.hub.ConnectionCount(userID); n >= MaxConnectionsPerUser {
		h.logger.Warn("Connection limit exceeded for user",
			zap.Int64("userID", int64(userID)),
			zap.Int("currentConnections", n),
		)
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(userID, h.hub, conn, h.opts, h.logger)
	if err := client.Start(); err != nil {
		conn.Close()
		h.logger.Warn("Rejected session", zap.Error(err))
		return
	}

	h.logger.Info("New WebSocket connection established",
		zap.Int64("userID", int64(userID)),
		zap.String("connectionID", client.ID()),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}

// QuerySource loads trees through the query bus, so sessions share the
// cached views of the REST API
type QuerySource struct {
	bus *querybus.QueryBus
}

func NewQuerySource(bus *querybus.QueryBus) *QuerySource {
	return &QuerySource{bus: bus}
}

// Tree implements TreeSource
func (s *QuerySource) Tree(ctx context.Context, userID valueobjects.UserID, treeID valueobjects.NodeID) (queries.TreeView, error) {
	result, err := s.bus.Ask(ctx, queries.GetTreeQuery{
		UserID: userID,
		Tree:   queries.TreeRef{ID: treeID},
	})
	if err != nil {
		return queries.TreeView{}, err
	}
	view, ok := result.(queries.TreeView)
	if !ok {
		return queries.TreeView{}, fmt.Errorf("unexpected tree result %T", result)
	}
	return view, nil
}
