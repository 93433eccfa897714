package session

import (
	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/projection"
)

// Element classes toggled by hovering
const (
	ClassHighlight = "highlight"
	ClassDimmed    = "dimmed"
)

// Renderer draws the live graph of a Controller. Calls arrive with the
// controller lock held, so implementations must not call back into the
// controller and should return quickly.
type Renderer interface {
	// Mount replaces whatever is drawn with elements styled by rules
	Mount(elements []projection.Element, rules []projection.StyleRule)
	// Unmount destroys the drawn graph
	Unmount()
	// PatchData sets a data attribute; a nil value removes it
	PatchData(id, key string, value interface{})
	// SetClasses replaces the classes of one element
	SetClasses(id string, classes []string)
	// SetSelected marks one node selected or not
	SetSelected(id string, selected bool)
	// Positions reports node positions after a layout tick
	Positions(positions []ports.NodePosition)
}
