// Package force lays out projected elements with a velocity Verlet
// force simulation: link springs, many-body repulsion, collision and
// optional centering, cooled by an alpha schedule.
package force

import (
	"math"
	"math/rand/v2"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/projection"
)

const (
	initialRadius  = 10
	distanceMin2   = 1
	collideEpsilon = 1e-6
)

var initialAngle = math.Pi * (3 - math.Sqrt(5))

type body struct {
	id     string
	x, y   float64
	vx, vy float64
	fx, fy *float64
}

type link struct {
	source, target int
	distance       float64
	strength       float64
	bias           float64
}

// Simulation is not safe for concurrent use; Runner serialises access.
type Simulation struct {
	tuning      ports.Tuning
	bodies      []*body
	index       map[string]int
	links       []link
	alpha       float64
	alphaTarget float64
	rng         *rand.Rand
}

// NewSimulation places the nodes of elements on a phyllotaxis spiral and
// connects them with one spring per edge. Edges to unknown nodes are
// ignored.
func NewSimulation(elements []projection.Element, tuning ports.Tuning) *Simulation {
	s := &Simulation{
		tuning:      tuning,
		index:       make(map[string]int),
		alpha:       tuning.Alpha,
		alphaTarget: tuning.AlphaTarget,
		rng:         rand.New(rand.NewPCG(1, 2)),
	}

	for _, e := range elements {
		if !e.IsNode() {
			continue
		}
		if _, dup := s.index[e.Data.ID]; dup {
			continue
		}
		i := len(s.bodies)
		r := initialRadius * math.Sqrt(0.5+float64(i))
		a := float64(i) * initialAngle
		s.index[e.Data.ID] = i
		s.bodies = append(s.bodies, &body{id: e.Data.ID, x: r * math.Cos(a), y: r * math.Sin(a)})
	}

	degree := make([]int, len(s.bodies))
	for _, e := range elements {
		if !e.IsEdge() {
			continue
		}
		src, ok := s.index[e.Data.Source]
		if !ok {
			continue
		}
		dst, ok := s.index[e.Data.Target]
		if !ok || src == dst {
			continue
		}
		l := link{source: src, target: dst, distance: tuning.ParentLinkDistance, strength: tuning.ParentLinkStrength}
		if e.Data.EdgeType == string(entities.EdgeTypeConcept) {
			l.distance = tuning.ConceptLinkDistance
			l.strength = tuning.ConceptLinkStrength
		}
		degree[src]++
		degree[dst]++
		s.links = append(s.links, l)
	}
	for i := range s.links {
		l := &s.links[i]
		l.bias = float64(degree[l.source]) / float64(degree[l.source]+degree[l.target])
	}
	return s
}

// Alpha is the current activity level
func (s *Simulation) Alpha() float64 { return s.alpha }

// Cold reports whether the simulation has settled and has nowhere to go
func (s *Simulation) Cold() bool {
	return s.alpha < s.tuning.AlphaMin && s.alphaTarget < s.tuning.AlphaMin
}

// SetAlphaTarget changes the level alpha converges to. restart lifts a
// cooled alpha back to the restart level.
func (s *Simulation) SetAlphaTarget(v float64, restart bool) {
	s.alphaTarget = v
	if restart && s.alpha < s.tuning.AlphaRestart {
		s.alpha = s.tuning.AlphaRestart
	}
}

// AlphaTarget returns the current target
func (s *Simulation) AlphaTarget() float64 { return s.alphaTarget }

// Pin fixes a node; it reports false for unknown ids
func (s *Simulation) Pin(id string, x, y float64) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	b := s.bodies[i]
	b.fx, b.fy = &x, &y
	b.x, b.y = x, y
	b.vx, b.vy = 0, 0
	return true
}

// Release lets a pinned node move again
func (s *Simulation) Release(id string) {
	if i, ok := s.index[id]; ok {
		s.bodies[i].fx, s.bodies[i].fy = nil, nil
	}
}

// Step advances the simulation by one tick
func (s *Simulation) Step() {
	s.alpha += (s.alphaTarget - s.alpha) * s.tuning.AlphaDecay

	s.applyLinks()
	s.applyManyBody()
	if s.tuning.Centering {
		s.applyCentering()
	}
	s.applyCollide()

	decay := 1 - s.tuning.VelocityDecay
	for _, b := range s.bodies {
		if b.fx != nil {
			b.x, b.vx = *b.fx, 0
		} else {
			b.vx *= decay
			b.x += b.vx
		}
		if b.fy != nil {
			b.y, b.vy = *b.fy, 0
		} else {
			b.vy *= decay
			b.y += b.vy
		}
	}
}

// Positions returns every node position in element order
func (s *Simulation) Positions() []ports.NodePosition {
	out := make([]ports.NodePosition, len(s.bodies))
	for i, b := range s.bodies {
		out[i] = ports.NodePosition{ID: b.id, X: b.x, Y: b.y}
	}
	return out
}

func (s *Simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}

func (s *Simulation) applyLinks() {
	for _, l := range s.links {
		src, dst := s.bodies[l.source], s.bodies[l.target]
		x := dst.x + dst.vx - src.x - src.vx
		y := dst.y + dst.vy - src.y - src.vy
		if x == 0 {
			x = s.jiggle()
		}
		if y == 0 {
			y = s.jiggle()
		}
		d := math.Sqrt(x*x + y*y)
		f := (d - l.distance) / d * s.alpha * l.strength
		x, y = x*f, y*f
		dst.vx -= x * l.bias
		dst.vy -= y * l.bias
		src.vx += x * (1 - l.bias)
		src.vy += y * (1 - l.bias)
	}
}

// applyManyBody is the exact pairwise form; trees here stay small
// enough that a quadtree does not pay off.
func (s *Simulation) applyManyBody() {
	max2 := s.tuning.ManyBodyDistanceMax * s.tuning.ManyBodyDistanceMax
	for i, a := range s.bodies {
		for j, b := range s.bodies {
			if i == j {
				continue
			}
			x, y := b.x-a.x, b.y-a.y
			l := x*x + y*y
			if l >= max2 {
				continue
			}
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			if l < distanceMin2 {
				l = math.Sqrt(distanceMin2 * l)
			}
			w := s.tuning.ManyBodyStrength * s.alpha / l
			a.vx += x * w
			a.vy += y * w
		}
	}
}

func (s *Simulation) applyCentering() {
	for _, b := range s.bodies {
		b.vx -= b.x * s.tuning.XStrength * s.alpha
		b.vy -= b.y * s.tuning.YStrength * s.alpha
	}
}

func (s *Simulation) applyCollide() {
	r := 2 * s.tuning.CollideRadius
	r2 := r * r
	for i := 0; i < len(s.bodies); i++ {
		a := s.bodies[i]
		for j := i + 1; j < len(s.bodies); j++ {
			b := s.bodies[j]
			x := (a.x + a.vx) - (b.x + b.vx)
			y := (a.y + a.vy) - (b.y + b.vy)
			l := x*x + y*y
			if l >= r2 {
				continue
			}
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			d := math.Sqrt(l)
			if d < collideEpsilon {
				continue
			}
			f := (r - d) / d * s.tuning.CollideStrength * 0.5
			a.vx += x * f
			a.vy += y * f
			b.vx -= x * f
			b.vy -= y * f
		}
	}
}
