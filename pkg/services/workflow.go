package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/otelhelper"
	"github.com/mono-send/send-smartly/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

// Workflow manages workflow settings and the workflow list.
type Workflow struct {
	base
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence, opts ...Option) *Workflow {
	return &Workflow{base: newBase(p, opts)}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Page     int
	PageSize int
	Status   *models.WorkflowStatus

	SortBy    string
	SortOrder string
}

// ListWorkflows returns one page of workflows without their steps.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*models.WorkflowList, error) {
	const op = "list_workflows"

	if req.Status != nil && !req.Status.Valid() {
		return nil, NewValidationError(op, "INVALID_STATUS",
			fmt.Sprintf("invalid status '%s'", *req.Status), ErrInvalidStatus)
	}

	if req.Page < 1 {
		req.Page = 1
	}

	opts := persistence.ListWorkflowsOptions{
		Limit:     req.PageSize,
		Status:    req.Status,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}

	if err := opts.Normalize(); err != nil {
		return nil, NewValidationError(op, "INVALID_SORT", err.Error(), err)
	}

	opts.Offset = (req.Page - 1) * opts.Limit

	result, err := w.persistence.WorkflowRepository().ListWorkflows(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	data := make([]models.WorkflowListItem, 0, len(result.Workflows))
	for _, workflow := range result.Workflows {
		data = append(data, workflow.ListItem())
	}

	total := int(result.TotalCount)

	return &models.WorkflowList{
		Data: data,
		Pagination: models.Pagination{
			Page:       req.Page,
			PageSize:   opts.Limit,
			Total:      total,
			TotalPages: (total + opts.Limit - 1) / opts.Limit,
		},
	}, nil
}

// FetchByID retrieves a workflow with its steps in position order.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.load(ctx, "fetch_workflow", id)
	if err != nil {
		return nil, err
	}

	workflow.Steps = models.SortedSteps(workflow.Steps)

	return workflow, nil
}

// Create adds a new draft workflow with no steps.
func (w *Workflow) Create(ctx context.Context, req models.CreateWorkflowRequest) (*models.Workflow, error) {
	const op = "create_workflow"

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "services.workflow.create",
		attribute.String(otelhelper.WorkflowNameKey, req.Name))
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError(op, "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	}

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:        newID(),
		Name:      name,
		Status:    models.WorkflowStatusDraft,
		Steps:     []models.WorkflowStep{},
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	patch := models.WorkflowPatch{
		TriggerSegmentID:      req.TriggerSegmentID,
		UnsubscribeCategoryID: req.UnsubscribeCategoryID,
	}

	if err := w.checkReferences(ctx, op, patch); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	patch.Apply(workflow)

	if err := w.store(ctx, op, workflow); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return workflow, nil
}

// Patch applies a partial settings update and marks the workflow as having unsaved
// changes.
func (w *Workflow) Patch(ctx context.Context, workflowID string, patch models.WorkflowPatch) (*models.Workflow, error) {
	const op = "patch_workflow"

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "services.workflow.patch",
		attribute.String(otelhelper.WorkflowIDKey, workflowID))
	defer span.End()

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, NewValidationError(op, "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
		}

		patch.Name = &name
	}

	var patched *models.Workflow

	err := w.withLock(ctx, op, workflowID, func(ctx context.Context) error {
		workflow, err := w.load(ctx, op, workflowID)
		if err != nil {
			return err
		}

		if patch.Empty() {
			patched = workflow

			return nil
		}

		if err := w.checkReferences(ctx, op, patch); err != nil {
			return err
		}

		patch.Apply(workflow)
		workflow.HasUnsavedChanges = true
		workflow.UpdatedAt = time.Now().UTC()

		if err := w.store(ctx, op, workflow); err != nil {
			return err
		}

		patched = workflow

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	patched.Steps = models.SortedSteps(patched.Steps)

	return patched, nil
}

// Delete removes a workflow and its saved versions.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	const op = "delete_workflow"

	return w.withLock(ctx, op, workflowID, func(ctx context.Context) error {
		if _, err := w.load(ctx, op, workflowID); err != nil {
			return err
		}

		versions := w.persistence.VersionRepository()

		saved, err := versions.Versions(ctx, workflowID)
		if err != nil {
			return fmt.Errorf("%s: failed to list versions: %w", op, err)
		}

		for _, version := range saved {
			if err := versions.DeleteVersion(ctx, workflowID, version.Number); err != nil {
				return fmt.Errorf("%s: failed to delete version %d: %w", op, version.Number, err)
			}
		}

		if err := w.persistence.WorkflowRepository().Delete(ctx, workflowID); err != nil {
			return fmt.Errorf("failed to delete workflow: %w", err)
		}

		return nil
	})
}

// checkReferences ensures referenced segments and categories exist. Empty strings
// clear a reference and need no check.
func (w *Workflow) checkReferences(ctx context.Context, op string, patch models.WorkflowPatch) error {
	lookups := w.persistence.LookupRepository()

	if id := models.StringValue(patch.TriggerSegmentID); id != "" {
		segments, err := lookups.Segments(ctx)
		if err != nil {
			return fmt.Errorf("%s: failed to load segments: %w", op, err)
		}

		if !containsID(segments, id, func(s models.Segment) string { return s.ID }) {
			return NewValidationError(op, "UNKNOWN_SEGMENT",
				fmt.Sprintf("segment '%s' does not exist", id), ErrUnknownSegment)
		}
	}

	if id := models.StringValue(patch.UnsubscribeCategoryID); id != "" {
		categories, err := lookups.ContactCategories(ctx)
		if err != nil {
			return fmt.Errorf("%s: failed to load contact categories: %w", op, err)
		}

		if !containsID(categories, id, func(c models.ContactCategory) string { return c.ID }) {
			return NewValidationError(op, "UNKNOWN_CATEGORY",
				fmt.Sprintf("contact category '%s' does not exist", id), ErrUnknownCategory)
		}
	}

	return nil
}

func containsID[T any](items []T, id string, key func(T) string) bool {
	for _, item := range items {
		if key(item) == id {
			return true
		}
	}

	return false
}
