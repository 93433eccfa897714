package ports

import (
	"context"
	"time"

	"github.com/nicobenz/flowpertoire/domain/projection"
)

// NodePosition is a node's place in layout space
type NodePosition struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Tuning holds the force layout parameters. The zero value is not
// usable; start from DefaultTuning.
type Tuning struct {
	ParentLinkDistance  float64 `yaml:"parent_link_distance"`
	ConceptLinkDistance float64 `yaml:"concept_link_distance"`
	ParentLinkStrength  float64 `yaml:"parent_link_strength"`
	ConceptLinkStrength float64 `yaml:"concept_link_strength"`

	ManyBodyStrength    float64 `yaml:"many_body_strength"`
	ManyBodyDistanceMax float64 `yaml:"many_body_distance_max"`
	CollideRadius       float64 `yaml:"collide_radius"`
	CollideStrength     float64 `yaml:"collide_strength"`

	// Centering forces are configured but off by default
	Centering bool    `yaml:"centering"`
	XStrength float64 `yaml:"x_strength"`
	YStrength float64 `yaml:"y_strength"`

	VelocityDecay   float64 `yaml:"velocity_decay"`
	Alpha           float64 `yaml:"alpha"`
	AlphaMin        float64 `yaml:"alpha_min"`
	AlphaDecay      float64 `yaml:"alpha_decay"`
	AlphaTarget     float64 `yaml:"alpha_target"`
	AlphaRestart    float64 `yaml:"alpha_restart"`
	DragAlphaTarget float64 `yaml:"drag_alpha_target"`

	// Pointer travel below which a press counts as a tap, not a drag
	TapThresholdDesktop int `yaml:"tap_threshold_desktop"`
	TapThresholdTouch   int `yaml:"tap_threshold_touch"`

	TickInterval time.Duration `yaml:"tick_interval"`
}

// DefaultTuning returns the stock layout parameters
func DefaultTuning() Tuning {
	return Tuning{
		ParentLinkDistance:  60,
		ConceptLinkDistance: 240,
		ParentLinkStrength:  1,
		ConceptLinkStrength: 0.25,

		ManyBodyStrength:    -18,
		ManyBodyDistanceMax: 220,
		CollideRadius:       48,
		CollideStrength:     1,

		Centering: false,
		XStrength: 0.05,
		YStrength: 0.05,

		VelocityDecay:   0.55,
		Alpha:           0.1,
		AlphaMin:        0.001,
		AlphaDecay:      0.02,
		AlphaTarget:     0,
		AlphaRestart:    0.1,
		DragAlphaTarget: 0.3,

		TapThresholdDesktop: 8,
		TapThresholdTouch:   12,

		TickInterval: 16 * time.Millisecond,
	}
}

// LayoutHandle controls one running layout
type LayoutHandle interface {
	// Stop halts the layout and waits for its goroutine. Idempotent.
	Stop()
	// SetAlphaTarget sets the activity level the simulation converges to.
	// restart reheats a cooled simulation.
	SetAlphaTarget(v float64, restart bool)
	AlphaTarget() float64
	// Pin fixes a node at a position until Release
	Pin(id string, x, y float64)
	Release(id string)
}

// LayoutProvider starts layouts for element lists. onTick receives the
// positions after every tick and must not block.
type LayoutProvider interface {
	Start(
		ctx context.Context,
		elements []projection.Element,
		rules []projection.StyleRule,
		tuning Tuning,
		onTick func([]NodePosition),
	) (LayoutHandle, error)
}
