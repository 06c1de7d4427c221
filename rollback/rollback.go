// Package rollback keeps a stack of compensating actions that undo earlier
// group mutations (restore capacity bounds, resume scaling processes) when a
// respawn attempt fails partway through.
package rollback

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Step is a single named compensating action. Steps that leave the group in
// an unusable state when skipped should set StopOnError so a failure earlier
// in the stack is surfaced instead of silently running the remainder.
type Step struct {
	Fn          func() error
	Name        string
	StopOnError bool
}

// Stack accumulates compensating actions in the order the mutations they
// undo were applied, and replays them in reverse.
type Stack struct {
	steps []Step
}

func New() *Stack {
	return &Stack{}
}

// AddStep pushes a compensating action onto the stack and returns the new
// stack depth.
func (s *Stack) AddStep(step Step) int {
	s.steps = append(s.steps, step)
	return len(s.steps)
}

// Clear drops all recorded steps. Called once the respawn completes and the
// group has been restored on the happy path.
func (s *Stack) Clear() {
	s.steps = nil
}

// Len reports how many steps are pending.
func (s *Stack) Len() int {
	return len(s.steps)
}

// Run unwinds the stack last-in-first-out. Every step is attempted even when
// earlier ones fail, unless a failed step has StopOnError set, in which case
// the remaining steps are reported as not run. The combined error of all
// failed and skipped steps is returned.
func (s *Stack) Run() error {
	var err error
	for idx := len(s.steps) - 1; idx >= 0; idx-- {
		stepErr := s.steps[idx].Fn()
		if stepErr == nil {
			continue
		}
		err = multierror.Append(err, errors.Wrapf(stepErr, "rollback: step %s failed", s.steps[idx].Name))
		if s.steps[idx].StopOnError {
			for j := idx - 1; j >= 0; j-- {
				err = multierror.Append(err, errors.Errorf("rollback: step %s not run", s.steps[j].Name))
			}
			return err
		}
	}
	return err
}
