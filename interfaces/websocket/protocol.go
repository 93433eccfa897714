package websocket

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/projection"
)

// Client to server message types
const (
	TypeOpenTree      = "open_tree"
	TypeCloseTree     = "close_tree"
	TypeTap           = "tap"
	TypeTapBackground = "tap_background"
	TypeTapStart      = "tap_start"
	TypeHover         = "hover"
	TypeHoverOut      = "hover_out"
	TypeDrag          = "drag"
	TypeFree          = "free"
)

// Server to client message types
const (
	TypeMount     = "mount"
	TypeUnmount   = "unmount"
	TypeData      = "data"
	TypeClasses   = "classes"
	TypeSelected  = "selected"
	TypeSelection = "selection"
	TypePositions = "positions"
	TypeError     = "error"
)

// Inbound is any message a client sends. Fields unused by a type are ignored.
type Inbound struct {
	Type     string  `json:"type" validate:"required,oneof=open_tree close_tree tap tap_background tap_start hover hover_out drag free"`
	TreeID   int64   `json:"treeId,omitempty" validate:"required_if=Type open_tree,gte=0"`
	NodeID   string  `json:"nodeId,omitempty" validate:"omitempty,numeric"`
	Additive bool    `json:"additive,omitempty"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// needsNode lists the types that act on one node
var needsNode = map[string]bool{
	TypeTap:      true,
	TypeTapStart: true,
	TypeHover:    true,
	TypeDrag:     true,
	TypeFree:     true,
}

// decodeInbound parses and checks one client message
func decodeInbound(raw []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Inbound{}, err
	}
	if err := validate.Struct(msg); err != nil {
		return Inbound{}, err
	}
	if needsNode[msg.Type] && msg.NodeID == "" {
		return Inbound{}, errNodeRequired
	}
	return msg, nil
}

type mountMessage struct {
	Type        string                 `json:"type"`
	Elements    []projection.Element   `json:"elements"`
	Styles      []projection.StyleRule `json:"styles"`
	Fingerprint string                 `json:"fingerprint"`
}

type unmountMessage struct {
	Type string `json:"type"`
}

type dataMessage struct {
	Type  string      `json:"type"`
	ID    string      `json:"id"`
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

type classesMessage struct {
	Type    string   `json:"type"`
	ID      string   `json:"id"`
	Classes []string `json:"classes"`
}

type selectedMessage struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
}

type selectionMessage struct {
	Type   string  `json:"type"`
	NodeID *string `json:"nodeId"`
}

type positionsMessage struct {
	Type      string               `json:"type"`
	Positions []ports.NodePosition `json:"positions"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
