package stepgraph

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownStepType     = errors.New("unknown step type")
	ErrDuplicatePosition   = errors.New("duplicate step position")
	ErrMultipleConditions  = errors.New("workflow may contain at most one condition")
	ErrNestedCondition     = errors.New("condition steps cannot live inside a branch")
	ErrOrphanBranchStep    = errors.New("branch step does not reference the workflow condition")
	ErrMissingBranch       = errors.New("branch step has no valid branch tag")
	ErrBranchWithoutParent = errors.New("branch tag set on a step without parent")
	ErrBranchTooLong       = errors.New("a branch holds at most one wait and one email")
	ErrBranchBeforeFork    = errors.New("branch step positioned before its condition")
)

// StepError ties an invariant violation to the offending step.
type StepError struct {
	StepID   string
	Position int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s at position %d: %v", e.StepID, e.Position, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
