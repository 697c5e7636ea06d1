package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/otelhelper"
	"github.com/mono-send/send-smartly/pkg/persistence"
	"github.com/mono-send/send-smartly/pkg/reconcile"
	"github.com/mono-send/send-smartly/pkg/stepgraph"
	"go.opentelemetry.io/otel/attribute"
)

// Steps edits the step graph of a workflow. Every mutation runs under the workflow
// lock, leaves a valid graph and marks the workflow as having unsaved changes.
type Steps struct {
	base
}

func NewSteps(p persistence.Persistence, opts ...Option) *Steps {
	return &Steps{base: newBase(p, opts)}
}

// Create inserts a step at req.Position. Steps at or after that position move down
// by one.
func (s *Steps) Create(ctx context.Context, workflowID string, req models.CreateStepRequest) (*models.WorkflowStep, error) {
	const op = "create_step"

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "services.steps.create",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.StepTypeKey, string(req.StepType)))
	defer span.End()

	if req.Position < 1 {
		return nil, NewValidationError(op, "INVALID_POSITION", "position must be at least 1", ErrInvalidStepPlacement)
	}

	var created models.WorkflowStep

	err := s.withLock(ctx, op, workflowID, func(ctx context.Context) error {
		workflow, err := s.load(ctx, op, workflowID)
		if err != nil {
			return err
		}

		step := req.Step()

		step.Config, err = s.normalizeConfig(ctx, op, step.StepType, step.Config)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		step.ID = newID()
		step.WorkflowID = workflow.ID
		step.CreatedAt = now
		step.UpdatedAt = now

		steps := reconcile.ApplyInsert(workflow.Steps, step)

		if err := checkGraph(op, steps); err != nil {
			return err
		}

		if step.StepType == models.StepTypeCondition {
			if err := checkCondition(op, steps); err != nil {
				return err
			}
		}

		if err := s.commit(ctx, op, workflow, steps, now); err != nil {
			return err
		}

		created = step

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.StepIDKey, created.ID))

	return &created, nil
}

// Update replaces the config of a step. Type and placement never change.
func (s *Steps) Update(
	ctx context.Context,
	workflowID, stepID string,
	req models.UpdateStepRequest,
) (*models.WorkflowStep, error) {
	const op = "update_step"

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "services.steps.update",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.StepIDKey, stepID))
	defer span.End()

	var updated models.WorkflowStep

	err := s.withLock(ctx, op, workflowID, func(ctx context.Context) error {
		workflow, err := s.load(ctx, op, workflowID)
		if err != nil {
			return err
		}

		steps := models.SortedSteps(workflow.Steps)

		idx := indexOf(steps, stepID)
		if idx < 0 {
			return newNotFoundError(op, "step not found", ErrStepNotFound)
		}

		config, err := s.normalizeConfig(ctx, op, steps[idx].StepType, req.Config)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		steps[idx].Config = config
		steps[idx].UpdatedAt = now

		if err := checkCondition(op, steps); err != nil {
			return err
		}

		if err := s.commit(ctx, op, workflow, steps, now); err != nil {
			return err
		}

		updated = steps[idx].Clone()

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return &updated, nil
}

// Delete removes a step and returns the remaining steps. Deleting a condition removes
// both of its branches; deleting an email removes the wait that delays it. Positions
// of the remaining steps are left as they are.
func (s *Steps) Delete(ctx context.Context, workflowID, stepID string) ([]models.WorkflowStep, error) {
	const op = "delete_step"

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "services.steps.delete",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.StepIDKey, stepID))
	defer span.End()

	var remaining []models.WorkflowStep

	err := s.withLock(ctx, op, workflowID, func(ctx context.Context) error {
		workflow, err := s.load(ctx, op, workflowID)
		if err != nil {
			return err
		}

		steps := models.SortedSteps(workflow.Steps)

		idx := indexOf(steps, stepID)
		if idx < 0 {
			return newNotFoundError(op, "step not found", ErrStepNotFound)
		}

		kept := cascadeDelete(steps, idx)

		if err := checkCondition(op, kept); err != nil {
			return NewValidationError(op, "EMAIL_IN_USE",
				"this email is evaluated by the workflow condition, remove the condition first", ErrInvalidCondition)
		}

		if err := s.commit(ctx, op, workflow, kept, time.Now().UTC()); err != nil {
			return err
		}

		remaining = kept

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return remaining, nil
}

// Reorder applies new positions to existing steps and returns every step of the
// workflow in position order. Items may not move a step to another branch.
func (s *Steps) Reorder(ctx context.Context, workflowID string, items []models.ReorderItem) ([]models.WorkflowStep, error) {
	const op = "reorder_steps"

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "services.steps.reorder",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.Int("sendsmartly.reorder.items", len(items)))
	defer span.End()

	if len(items) == 0 {
		return nil, NewValidationError(op, "EMPTY_REORDER", "no steps to reorder", ErrInvalidReorder)
	}

	var reordered []models.WorkflowStep

	err := s.withLock(ctx, op, workflowID, func(ctx context.Context) error {
		workflow, err := s.load(ctx, op, workflowID)
		if err != nil {
			return err
		}

		steps := models.SortedSteps(workflow.Steps)
		now := time.Now().UTC()
		seen := make(map[string]bool, len(items))

		for _, item := range items {
			if seen[item.ID] {
				return NewValidationError(op, "DUPLICATE_STEP",
					fmt.Sprintf("step '%s' appears more than once", item.ID), ErrInvalidReorder)
			}

			seen[item.ID] = true

			idx := indexOf(steps, item.ID)
			if idx < 0 {
				return newNotFoundError(op, fmt.Sprintf("step '%s' not found", item.ID), ErrStepNotFound)
			}

			step := &steps[idx]
			if models.StringValue(item.ParentStepID) != models.StringValue(step.ParentStepID) ||
				branchOf(item.Branch) != step.BranchValue() {
				return NewValidationError(op, "BRANCH_CHANGE",
					fmt.Sprintf("step '%s' cannot be moved to another branch", item.ID), ErrInvalidReorder)
			}

			if item.Position < 1 {
				return NewValidationError(op, "INVALID_POSITION", "position must be at least 1", ErrInvalidReorder)
			}

			if step.Position != item.Position {
				step.Position = item.Position
				step.UpdatedAt = now
			}
		}

		steps = models.SortedSteps(steps)

		if err := checkGraph(op, steps); err != nil {
			return err
		}

		if err := checkCondition(op, steps); err != nil {
			return err
		}

		if err := s.commit(ctx, op, workflow, steps, now); err != nil {
			return err
		}

		reordered = steps

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return reordered, nil
}

func (s *Steps) commit(ctx context.Context, op string, workflow *models.Workflow, steps []models.WorkflowStep, now time.Time) error {
	workflow.Steps = steps
	workflow.HasUnsavedChanges = true
	workflow.UpdatedAt = now

	return s.store(ctx, op, workflow)
}

// cascadeDelete returns sorted without sorted[idx] and the steps that cannot outlive it.
func cascadeDelete(sorted []models.WorkflowStep, idx int) []models.WorkflowStep {
	target := sorted[idx]
	drop := map[string]bool{target.ID: true}

	switch target.StepType {
	case models.StepTypeCondition:
		for _, step := range sorted {
			if models.StringValue(step.ParentStepID) == target.ID {
				drop[step.ID] = true
			}
		}
	case models.StepTypeEmail:
		if wait, ok := stepgraph.PrecedingWait(sorted, idx); ok {
			drop[wait.ID] = true
		}
	case models.StepTypeWait:
	}

	kept := make([]models.WorkflowStep, 0, len(sorted))

	for _, step := range sorted {
		if !drop[step.ID] {
			kept = append(kept, step)
		}
	}

	return kept
}

func indexOf(steps []models.WorkflowStep, id string) int {
	for i := range steps {
		if steps[i].ID == id {
			return i
		}
	}

	return -1
}

func branchOf(b *models.Branch) models.Branch {
	if b == nil {
		return ""
	}

	return *b
}
