package events

import (
	"encoding/json"

	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
)

// SourceForest is the EventBridge source of every forest event
const SourceForest = "flowpertoire.forest"

// Envelope is the transport form of an event. Consumers that only route
// on user and structure never need to decode Payload.
type Envelope struct {
	EventType  string                `json:"event_type"`
	UserID     valueobjects.UserID   `json:"user_id"`
	TreeIDs    []valueobjects.NodeID `json:"tree_ids,omitempty"`
	Structural bool                  `json:"structural"`
	Payload    json.RawMessage       `json:"payload"`
}

// Wrap builds the envelope for e
func Wrap(e DomainEvent) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventType:  e.GetEventType(),
		UserID:     e.GetUserID(),
		TreeIDs:    e.GetTreeIDs(),
		Structural: e.Structural(),
		Payload:    payload,
	}, nil
}
