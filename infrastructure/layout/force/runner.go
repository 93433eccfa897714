package force

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nicobenz/flowpertoire/application/ports"
	"github.com/nicobenz/flowpertoire/domain/projection"
	"go.uber.org/zap"
)

// ErrInvalidTuning is returned for tunings that cannot drive a layout
var ErrInvalidTuning = errors.New("invalid layout tuning")

// Provider starts one goroutine per layout
type Provider struct {
	logger *zap.Logger
}

// NewProvider creates a force layout provider
func NewProvider(logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{logger: logger}
}

// Start implements ports.LayoutProvider. Styling does not influence the
// simulation, so rules are ignored.
func (p *Provider) Start(
	ctx context.Context,
	elements []projection.Element,
	_ []projection.StyleRule,
	tuning ports.Tuning,
	onTick func([]ports.NodePosition),
) (ports.LayoutHandle, error) {
	if tuning.TickInterval <= 0 {
		return nil, errors.Join(ErrInvalidTuning, errors.New("tick interval must be positive"))
	}
	if tuning.VelocityDecay < 0 || tuning.VelocityDecay > 1 {
		return nil, errors.Join(ErrInvalidTuning, errors.New("velocity decay must be within [0,1]"))
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &Runner{
		sim:    NewSimulation(elements, tuning),
		onTick: onTick,
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: p.logger,
	}
	go r.run(ctx, tuning.TickInterval)
	return r, nil
}

// Runner ticks a Simulation until stopped. It implements
// ports.LayoutHandle.
type Runner struct {
	mu     sync.Mutex
	sim    *Simulation
	onTick func([]ports.NodePosition)
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func (r *Runner) run(ctx context.Context, every time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Layout stopped", zap.Int("ticks", ticks))
			return
		case <-ticker.C:
		}

		r.mu.Lock()
		if r.sim.Cold() {
			r.mu.Unlock()
			// idle until something reheats the simulation
			select {
			case <-ctx.Done():
				r.logger.Debug("Layout stopped", zap.Int("ticks", ticks))
				return
			case <-r.wake:
				continue
			}
		}
		r.sim.Step()
		positions := r.sim.Positions()
		r.mu.Unlock()

		ticks++
		if r.onTick != nil {
			r.onTick(positions)
		}
	}
}

func (r *Runner) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Stop cancels the layout and waits for its goroutine
func (r *Runner) Stop() {
	r.once.Do(r.cancel)
	<-r.done
}

func (r *Runner) SetAlphaTarget(v float64, restart bool) {
	r.mu.Lock()
	r.sim.SetAlphaTarget(v, restart)
	r.mu.Unlock()
	r.poke()
}

func (r *Runner) AlphaTarget() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.AlphaTarget()
}

func (r *Runner) Pin(id string, x, y float64) {
	r.mu.Lock()
	ok := r.sim.Pin(id, x, y)
	r.mu.Unlock()
	if ok {
		r.poke()
	}
}

func (r *Runner) Release(id string) {
	r.mu.Lock()
	r.sim.Release(id)
	r.mu.Unlock()
}

var _ ports.LayoutProvider = (*Provider)(nil)
var _ ports.LayoutHandle = (*Runner)(nil)
