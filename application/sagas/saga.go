// Package sagas runs multi-command workflows that must not leave a
// half-built tree behind. Each command is atomic on its own; a saga
// undoes the completed ones when a later step fails.
package sagas

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Step is one command of a saga
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
	MaxRetries int
	RetryDelay time.Duration
}

// State of a saga execution
type State string

const (
	StatePending      State = "PENDING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateCompensating State = "COMPENSATING"
	StateCompensated  State = "COMPENSATED"
	StateFailed       State = "FAILED"
)

// Saga executes its steps in order
type Saga struct {
	name   string
	steps  []Step
	state  State
	logger *zap.Logger
}

// New creates an empty saga
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{name: name, state: StatePending, logger: logger}
}

// Step appends a step without compensation
func (s *Saga) Step(name string, execute func(context.Context) error) *Saga {
	return s.Add(Step{Name: name, Execute: execute})
}

// CompensableStep appends a step that compensate undoes
func (s *Saga) CompensableStep(name string, execute, compensate func(context.Context) error) *Saga {
	return s.Add(Step{Name: name, Execute: execute, Compensate: compensate})
}

// Add appends a fully specified step
func (s *Saga) Add(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// State returns the saga's current state
func (s *Saga) State() State { return s.state }

// Execute runs every step. When one fails the compensations of the
// completed steps run in reverse order and the step's error is returned.
func (s *Saga) Execute(ctx context.Context) error {
	s.state = StateRunning
	s.logger.Debug("Starting saga", zap.String("saga", s.name), zap.Int("steps", len(s.steps)))

	for i, step := range s.steps {
		if err := s.run(ctx, step); err != nil {
			s.logger.Warn("Saga step failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			if cerr := s.compensate(ctx, s.steps[:i]); cerr != nil {
				s.state = StateFailed
				return fmt.Errorf("saga %s failed at %s and compensation failed: %w", s.name, step.Name, err)
			}
			s.state = StateCompensated
			return fmt.Errorf("saga %s failed at %s: %w", s.name, step.Name, err)
		}
	}

	s.state = StateCompleted
	return nil
}

func (s *Saga) run(ctx context.Context, step Step) error {
	attempts := step.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	delay := step.RetryDelay
	if delay == 0 {
		delay = 100 * time.Millisecond
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = step.Execute(ctx); err == nil {
			return nil
		}
	}
	if attempts > 1 {
		return fmt.Errorf("after %d attempts: %w", attempts, err)
	}
	return err
}

// compensate undoes done in reverse. Every compensation runs even if
// an earlier one fails; the first failure is returned.
func (s *Saga) compensate(ctx context.Context, done []Step) error {
	s.state = StateCompensating
	var first error
	for i := len(done) - 1; i >= 0; i-- {
		if done[i].Compensate == nil {
			continue
		}
		if err := done[i].Compensate(ctx); err != nil {
			s.logger.Error("Compensation failed",
				zap.String("saga", s.name),
				zap.String("step", done[i].Name),
				zap.Error(err),
			)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
