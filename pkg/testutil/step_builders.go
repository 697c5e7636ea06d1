// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/mono-send/send-smartly/pkg/models"
)

// StepOption customizes a step built by one of the builders below.
type StepOption func(*models.WorkflowStep)

func build(step models.WorkflowStep, opts []StepOption) models.WorkflowStep {
	for _, opt := range opts {
		opt(&step)
	}

	return step
}

// Wait creates a wait step.
func Wait(id string, position, duration int, unit models.WaitUnit, opts ...StepOption) models.WorkflowStep {
	return build(models.WorkflowStep{
		ID:         id,
		WorkflowID: "wf-test",
		StepType:   models.StepTypeWait,
		Position:   position,
		Config: models.StepConfig{
			WaitDuration: models.IntPtr(duration),
			WaitUnit:     unit,
		},
	}, opts)
}

// Email creates an email step sent from sender.
func Email(id string, position int, sender string, opts ...StepOption) models.WorkflowStep {
	return build(models.WorkflowStep{
		ID:         id,
		WorkflowID: "wf-test",
		StepType:   models.StepTypeEmail,
		Position:   position,
		Config: models.StepConfig{
			SenderID:        sender,
			SenderEmail:     sender + "@example.com",
			SubjectOverride: "Subject " + id,
			ContentOverride: "Content " + id,
		},
	}, opts)
}

// Condition creates a condition step evaluating the given email.
func Condition(id string, position int, evaluated string, opts ...StepOption) models.WorkflowStep {
	return build(models.WorkflowStep{
		ID:         id,
		WorkflowID: "wf-test",
		StepType:   models.StepTypeCondition,
		Position:   position,
		Config: models.StepConfig{
			ConditionType:   models.ConditionOpened,
			EvaluatedStepID: evaluated,
		},
	}, opts)
}

// InBranch attaches the step to a condition arm.
func InBranch(parent string, branch models.Branch) StepOption {
	return func(s *models.WorkflowStep) {
		s.ParentStepID = models.StringPtr(parent)
		s.Branch = models.BranchPtr(branch)
	}
}

// WithTemplate sets the email template.
func WithTemplate(id string) StepOption {
	return func(s *models.WorkflowStep) {
		s.Config.TemplateID = models.StringPtr(id)
	}
}

// WithWorkflow sets the owning workflow id.
func WithWorkflow(id string) StepOption {
	return func(s *models.WorkflowStep) {
		s.WorkflowID = id
	}
}

// ForkedSteps returns a workflow with one main email, a condition with one email per
// arm and one merged email:
//
//	w1(1) e1(2) c1(3) yes:w2(4) e2(5) no:w3(6) e3(7) w4(8) e4(9)
func ForkedSteps() []models.WorkflowStep {
	return []models.WorkflowStep{
		Wait("w1", 1, 1, models.WaitUnitDay),
		Email("e1", 2, "s1"),
		Condition("c1", 3, "e1"),
		Wait("w2", 4, 2, models.WaitUnitHour, InBranch("c1", models.BranchYes)),
		Email("e2", 5, "s1", InBranch("c1", models.BranchYes)),
		Wait("w3", 6, 3, models.WaitUnitDay, InBranch("c1", models.BranchNo)),
		Email("e3", 7, "s2", InBranch("c1", models.BranchNo)),
		Wait("w4", 8, 30, models.WaitUnitMinute),
		Email("e4", 9, "s2"),
	}
}
