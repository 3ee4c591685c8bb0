// Package saga runs a sequence of steps and, when one fails, undoes the
// steps that already succeeded in reverse order.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Step represents a single unit of work in the Saga.
// Each step must have a compensating action to undo its effects.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// StepFunc builds a Step from two functions. A nil compensate is a no-op.
func StepFunc(name string, execute, compensate func(ctx context.Context) error) Step {
	return &funcStep{name: name, execute: execute, compensate: compensate}
}

type funcStep struct {
	name       string
	execute    func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

func (s *funcStep) Name() string                      { return s.name }
func (s *funcStep) Execute(ctx context.Context) error { return s.execute(ctx) }

func (s *funcStep) Compensate(ctx context.Context) error {
	if s.compensate == nil {
		return nil
	}
	return s.compensate(ctx)
}

// CompensationError reports steps whose compensation also failed. The
// original failure stays reachable through errors.Is/As.
type CompensationError struct {
	Cause  error
	Failed map[string]error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("%v (compensation failed for %d step(s))", e.Cause, len(e.Failed))
}

func (e *CompensationError) Unwrap() []error {
	errs := []error{e.Cause}
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// Orchestrator manages the execution of a collection of Steps.
type Orchestrator struct {
	name                string
	steps               []Step
	compensationTimeout time.Duration
}

// NewOrchestrator creates a saga named for logging
func NewOrchestrator(name string, compensationTimeout time.Duration, steps ...Step) *Orchestrator {
	return &Orchestrator{name: name, steps: steps, compensationTimeout: compensationTimeout}
}

// Add appends a step
func (o *Orchestrator) Add(step Step) {
	o.steps = append(o.steps, step)
}

// Run executes the steps in order. If a step fails, it compensates all
// previously successful steps and returns the step's error.
func (o *Orchestrator) Run(ctx context.Context) error {
	var successfulSteps []Step

	for _, step := range o.steps {
		// A cancelled or timed-out request counts as a failed step
		err := ctx.Err()
		if err == nil {
			err = step.Execute(ctx)
		}
		if err != nil {
			log.Printf("[SAGA] %s: step %s failed: %v. Starting rollback of %d step(s)", o.name, step.Name(), err, len(successfulSteps))
			return o.rollback(ctx, successfulSteps, err)
		}
		successfulSteps = append(successfulSteps, step)
	}
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, steps []Step, cause error) error {
	// Compensation must run even if the request context is already done
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.compensationTimeout)
	defer cancel()

	failed := map[string]error{}
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.Compensate(cctx); err != nil {
			log.Printf("[SAGA] CRITICAL: %s: failed to compensate step %s: %v", o.name, step.Name(), err)
			failed[step.Name()] = err
		}
	}

	if len(failed) > 0 {
		return &CompensationError{Cause: cause, Failed: failed}
	}
	return cause
}

// IsCompensationFailure reports whether err carries failed compensations
func IsCompensationFailure(err error) bool {
	var ce *CompensationError
	return errors.As(err, &ce)
}
