package reconcile

import (
	"github.com/mono-send/send-smartly/pkg/models"
)

// NextPosition returns where a new email for list goes: one past the last step of
// that list. For a densely numbered list of N waitless emails this is N+1.
func NextPosition(prev []models.WorkflowStep, list ListKind) int {
	if list == ListMerged {
		return lastPosition(prev) + 1
	}

	return mainEnd(prev) + 1
}

// ConditionPosition returns where a new condition goes: right after the main path.
func ConditionPosition(prev []models.WorkflowStep) int {
	return mainEnd(prev) + 1
}

// BranchPosition returns where a new step for branch b goes: after the condition and
// every step already in that arm. The no arm always follows the yes arm.
func BranchPosition(prev []models.WorkflowStep, b models.Branch) int {
	condition, ok := conditionOf(prev)
	if !ok {
		return lastPosition(prev) + 1
	}

	end := condition.Position

	for _, step := range prev {
		if !step.InBranch() {
			continue
		}

		if b == models.BranchYes && step.BranchValue() != models.BranchYes {
			continue
		}

		if step.Position > end {
			end = step.Position
		}
	}

	return end + 1
}

// ApplyInsert returns steps with created inserted the way the server does it: every
// step at or after created.Position moves down by one.
func ApplyInsert(steps []models.WorkflowStep, created models.WorkflowStep) []models.WorkflowStep {
	out := models.CloneSteps(steps)

	for i := range out {
		if out[i].Position >= created.Position {
			out[i].Position++
		}
	}

	out = append(out, created.Clone())

	return models.SortedSteps(out)
}

func conditionOf(steps []models.WorkflowStep) (models.WorkflowStep, bool) {
	for _, step := range steps {
		if step.StepType == models.StepTypeCondition && !step.InBranch() {
			return step, true
		}
	}

	return models.WorkflowStep{}, false
}

func mainEnd(steps []models.WorkflowStep) int {
	condition, forked := conditionOf(steps)
	end := 0

	for _, step := range steps {
		if forked && step.Position >= condition.Position {
			continue
		}

		if step.Position > end {
			end = step.Position
		}
	}

	return end
}

func lastPosition(steps []models.WorkflowStep) int {
	last := 0

	for _, step := range steps {
		if step.Position > last {
			last = step.Position
		}
	}

	return last
}
