// Package projection derives the editor's views from a workflow's persisted steps.
package projection

import (
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/stepgraph"
)

// Views is everything the editor renders for one workflow.
type Views struct {
	Main      []models.EmailStep
	Condition *models.ConditionBranch
	Merged    []models.EmailStep
}

// PathEmails returns the main and merged emails in order.
func (v Views) PathEmails() []models.EmailStep {
	out := make([]models.EmailStep, 0, len(v.Main)+len(v.Merged))
	out = append(out, v.Main...)

	return append(out, v.Merged...)
}

// ToEmailSteps projects every email outside a branch into an EmailStep, in position
// order, taking the delay from the wait right before it.
func ToEmailSteps(steps []models.WorkflowStep) []models.EmailStep {
	sorted := models.SortedSteps(steps)
	out := make([]models.EmailStep, 0, len(sorted))

	for i := range sorted {
		step := sorted[i]
		if step.StepType != models.StepTypeEmail || step.InBranch() {
			continue
		}

		var wait *models.WorkflowStep
		if w, ok := stepgraph.PrecedingWait(sorted, i); ok {
			wait = &w
		}

		out = append(out, EmailStepFromStep(step, wait))
	}

	return out
}

// Project builds all views in a single walk over the step graph.
func Project(steps []models.WorkflowStep) (Views, error) {
	graph, err := stepgraph.Build(steps)
	if err != nil {
		return Views{}, err
	}

	return FromGraph(graph), nil
}

// FromGraph converts an already built graph.
func FromGraph(graph *stepgraph.Graph) Views {
	views := Views{
		Main:   fromPairs(graph.Main),
		Merged: fromPairs(graph.Merged),
	}

	if graph.Fork != nil {
		condition := graph.Fork.Condition.Step()
		views.Condition = &models.ConditionBranch{
			ID:              condition.ID,
			ConditionType:   condition.Config.ConditionType,
			EvaluatedStepID: condition.Config.EvaluatedStepID,
			YesBranch:       fromArm(graph.Fork.Yes),
			NoBranch:        fromArm(graph.Fork.No),
		}
	}

	return views
}

// EmailStepFromStep converts an email step and its optional wait.
func EmailStepFromStep(step models.WorkflowStep, wait *models.WorkflowStep) models.EmailStep {
	duration, unit := waitOf(wait)

	email := models.EmailStep{
		ID:          step.ID,
		SenderID:    step.Config.SenderID,
		SenderEmail: step.Config.SenderEmail,
		Subject:     step.Config.SubjectOverride,
		Content:     step.Config.ContentOverride,
		WaitTime:    duration,
		WaitUnit:    unit,
	}

	if step.Config.TemplateID != nil {
		id := *step.Config.TemplateID
		email.TemplateID = &id
	}

	return email
}

func fromPairs(pairs []stepgraph.Pair) []models.EmailStep {
	out := make([]models.EmailStep, 0, len(pairs))

	for _, p := range pairs {
		var wait *models.WorkflowStep
		if p.Wait != nil {
			wait = p.Wait.Step()
		}

		out = append(out, EmailStepFromStep(*p.Email.Step(), wait))
	}

	return out
}

func fromArm(arm stepgraph.Arm) models.BranchRecord {
	var wait *models.WorkflowStep
	if arm.Wait != nil {
		wait = arm.Wait.Step()
	}

	duration, unit := waitOf(wait)
	record := models.BranchRecord{WaitTime: duration, WaitUnit: unit}

	if arm.Email != nil {
		email := EmailStepFromStep(*arm.Email.Step(), wait)
		record.Email = &email
	}

	return record
}

func waitOf(wait *models.WorkflowStep) (int, models.WaitUnit) {
	duration, unit := models.DefaultWaitDuration, models.DefaultWaitUnit
	if wait == nil {
		return duration, unit
	}

	if wait.Config.WaitDuration != nil {
		duration = *wait.Config.WaitDuration
	}

	if wait.Config.WaitUnit.Valid() {
		unit = wait.Config.WaitUnit
	}

	return duration, unit
}
