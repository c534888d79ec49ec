// Package saga runs a workflow spanning independently failing services as
// an ordered list of steps, each paired with a compensation that undoes it.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type Step struct {
	Name string
	// Action performs the step.
	Action func(ctx context.Context) error
	// Compensate undoes a completed Action. Nil when nothing needs undoing.
	Compensate func(ctx context.Context) error
}

// CompensationError reports compensations that failed while unwinding.
// The workflow state needs manual reconciliation.
type CompensationError struct {
	Step string
	Err  error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensate %s: %v", e.Step, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}

type Saga struct {
	name  string
	steps []Step
}

func New(name string, steps ...Step) *Saga {
	return &Saga{name: name, steps: steps}
}

// Run executes the steps in order. When a step fails, the compensations of
// the steps already completed run in reverse order and the step error is
// returned, joined with any compensation failures.
func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		err := step.Action(ctx)
		if err == nil {
			continue
		}

		slog.WarnContext(ctx, "saga step failed, compensating",
			"saga", s.name,
			"step", step.Name,
			"error", err,
		)

		return errors.Join(err, s.compensate(ctx, i))
	}

	return nil
}

// compensate unwinds steps[0:failed] in reverse.
func (s *Saga) compensate(ctx context.Context, failed int) error {
	// the caller may have gone away; undo must still run
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}

		if err := step.Compensate(ctx); err != nil {
			slog.ErrorContext(ctx, "saga compensation failed",
				"saga", s.name,
				"step", step.Name,
				"error", err,
			)
			errs = append(errs, &CompensationError{Step: step.Name, Err: err})
		}
	}

	return errors.Join(errs...)
}
