// Package apigateway pushes tree change notices to clients connected
// through an API Gateway WebSocket API.
package apigateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/domain/events"
	"github.com/nicobenz/flowpertoire/infrastructure/persistence/dynamodb"
)

// Message types sent to clients
const (
	TypeStructureChanged = "tree.structure_changed"
	TypeFillsChanged     = "tree.fills_changed"
)

// maxConcurrentPosts bounds the PostToConnection calls in flight
const maxConcurrentPosts = 8

// Message tells a client which trees to reload
type Message struct {
	Type    string                `json:"type"`
	TreeIDs []valueobjects.NodeID `json:"treeIds,omitempty"`
}

// MessageFor maps an event envelope to the client notice
func MessageFor(env events.Envelope) Message {
	msg := Message{Type: TypeFillsChanged, TreeIDs: env.TreeIDs}
	if env.Structural {
		msg.Type = TypeStructureChanged
	}
	return msg
}

// Connections is the subset of the connection store the notifier uses
type Connections interface {
	ForUser(ctx context.Context, userID valueobjects.UserID) ([]dynamodb.Connection, error)
	Delete(ctx context.Context, connectionID string) error
}

// Poster posts data to a single connection
type Poster interface {
	PostToConnection(ctx context.Context, in *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// PosterFactory builds a Poster for a connection's callback endpoint
type PosterFactory func(endpoint string) Poster

// NewPosterFactory returns a factory of management API clients, one per
// endpoint, all sharing cfg
func NewPosterFactory(cfg aws.Config) PosterFactory {
	return func(endpoint string) Poster {
		return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
			o.BaseEndpoint = aws.String("https://" + endpoint)
		})
	}
}

// Notifier fans a tree event out to every connection of its user
type Notifier struct {
	connections Connections
	newPoster   PosterFactory
	logger      *zap.Logger

	mu      sync.Mutex
	posters map[string]Poster
}

// NewNotifier creates a notifier
func NewNotifier(connections Connections, newPoster PosterFactory, logger *zap.Logger) *Notifier {
	return &Notifier{
		connections: connections,
		newPoster:   newPoster,
		logger:      logger.Named("apigateway"),
		posters:     make(map[string]Poster),
	}
}

// Result counts the outcome of one Notify call
type Result struct {
	Sent    int
	Removed int
	Failed  int
}

// Notify posts the notice for env to the user's connections. Gone
// connections are deleted. An error is returned only when every post failed.
func (n *Notifier) Notify(ctx context.Context, env events.Envelope) (Result, error) {
	conns, err := n.connections.ForUser(ctx, env.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list connections: %w", err)
	}
	if len(conns) == 0 {
		return Result{}, nil
	}

	data, err := json.Marshal(MessageFor(env))
	if err != nil {
		return Result{}, err
	}

	var sent, removed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPosts)
	for _, conn := range conns {
		g.Go(func() error {
			_, err := n.poster(conn.Endpoint).PostToConnection(gctx, &apigatewaymanagementapi.PostToConnectionInput{
				ConnectionId: aws.String(conn.ConnectionID),
				Data:         data,
			})
			var gone *apigwtypes.GoneException
			switch {
			case err == nil:
				sent.Add(1)
			case errors.As(err, &gone):
				if err := n.connections.Delete(gctx, conn.ConnectionID); err != nil {
					n.logger.Warn("Failed to remove stale connection",
						zap.String("connectionID", conn.ConnectionID),
						zap.Error(err),
					)
				}
				removed.Add(1)
			default:
				n.logger.Warn("Failed to post to connection",
					zap.String("connectionID", conn.ConnectionID),
					zap.Error(err),
				)
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Sent: int(sent.Load()), Removed: int(removed.Load()), Failed: int(failed.Load())}
	n.logger.Debug("Notified connections",
		zap.String("eventType", env.EventType),
		zap.Int64("userID", int64(env.UserID)),
		zap.Int("sent", res.Sent),
		zap.Int("removed", res.Removed),
		zap.Int("failed", res.Failed),
	)
	if res.Failed > 0 && res.Sent == 0 {
		return res, errors.New("all posts failed")
	}
	return res, nil
}

func (n *Notifier) poster(endpoint string) Poster {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.posters[endpoint]
	if !ok {
		p = n.newPoster(endpoint)
		n.posters[endpoint] = p
	}
	return p
}
