package stepgraph

import (
	"errors"

	"github.com/mono-send/send-smartly/pkg/models"
)

// Validate checks the structural invariants of a step list without building a graph.
func Validate(steps []models.WorkflowStep) error {
	return validate(models.SortedSteps(steps))
}

func validate(sorted []models.WorkflowStep) error {
	var (
		errs       []error
		conditions []models.WorkflowStep
		positions  = make(map[int]string, len(sorted))
	)

	for _, step := range sorted {
		if !step.StepType.Valid() {
			errs = append(errs, stepErr(step, ErrUnknownStepType))
		}

		if _, taken := positions[step.Position]; taken {
			errs = append(errs, stepErr(step, ErrDuplicatePosition))
		}

		positions[step.Position] = step.ID

		if step.StepType == models.StepTypeCondition {
			conditions = append(conditions, step)

			if step.InBranch() {
				errs = append(errs, stepErr(step, ErrNestedCondition))
			}
		}

		if !step.InBranch() && step.Branch != nil {
			errs = append(errs, stepErr(step, ErrBranchWithoutParent))
		}
	}

	if len(conditions) > 1 {
		errs = append(errs, stepErr(conditions[1], ErrMultipleConditions))
	}

	var condition *models.WorkflowStep
	if len(conditions) > 0 {
		condition = &conditions[0]
	}

	armEmails := map[models.Branch]int{}

	for _, step := range sorted {
		if !step.InBranch() || step.StepType == models.StepTypeCondition {
			continue
		}

		if condition == nil || *step.ParentStepID != condition.ID {
			errs = append(errs, stepErr(step, ErrOrphanBranchStep))

			continue
		}

		if !step.BranchValue().Valid() {
			errs = append(errs, stepErr(step, ErrMissingBranch))

			continue
		}

		if step.Position < condition.Position {
			errs = append(errs, stepErr(step, ErrBranchBeforeFork))
		}

		if step.StepType == models.StepTypeEmail {
			armEmails[step.BranchValue()]++
			if armEmails[step.BranchValue()] > 1 {
				errs = append(errs, stepErr(step, ErrBranchTooLong))
			}
		}
	}

	return errors.Join(errs...)
}

func stepErr(step models.WorkflowStep, err error) error {
	return &StepError{StepID: step.ID, Position: step.Position, Err: err}
}
