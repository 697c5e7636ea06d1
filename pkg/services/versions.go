package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mono-send/send-smartly/pkg/events"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/otelhelper"
	"github.com/mono-send/send-smartly/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

// Versions saves and activates workflow snapshots.
type Versions struct {
	base
}

func NewVersions(p persistence.Persistence, opts ...Option) *Versions {
	return &Versions{base: newBase(p, opts)}
}

// Save writes the current settings and steps as the next version, advances the
// draft version and clears the unsaved flag. Every save produces a new version, even
// when nothing changed since the previous one.
func (v *Versions) Save(ctx context.Context, workflowID string) (*models.Workflow, error) {
	const op = "save_workflow"

	ctx, span := otelhelper.StartSpan(ctx, v.tracer, "services.versions.save",
		attribute.String(otelhelper.WorkflowIDKey, workflowID))
	defer span.End()

	var saved *models.Workflow

	err := v.withLock(ctx, op, workflowID, func(ctx context.Context) error {
		workflow, err := v.load(ctx, op, workflowID)
		if err != nil {
			return err
		}

		steps := models.SortedSteps(workflow.Steps)

		if err := checkGraph(op, steps); err != nil {
			return err
		}

		now := time.Now().UTC()
		version := &models.WorkflowVersion{
			WorkflowID: workflow.ID,
			Number:     workflow.DraftVersion + 1,
			Settings:   workflow.Settings(),
			Steps:      steps,
			CreatedAt:  now,
		}

		if err := v.persistence.VersionRepository().SaveVersion(ctx, version); err != nil {
			if persistence.IsVersionAlreadyExists(err) {
				return newConflictError(op, "this version was already saved, reload the workflow", ErrVersionAlreadyExists)
			}

			return fmt.Errorf("%s: failed to save version: %w", op, err)
		}

		workflow.DraftVersion = version.Number
		workflow.HasUnsavedChanges = false
		workflow.UpdatedAt = now
		workflow.Steps = steps

		if err := v.store(ctx, op, workflow); err != nil {
			return err
		}

		span.SetAttributes(attribute.Int(otelhelper.VersionNumberKey, version.Number))

		event := events.WorkflowVersionSaved{
			BaseEvent:     events.NewBaseEvent(events.WorkflowVersionSavedEvent, workflow.ID),
			VersionNumber: version.Number,
			StepCount:     len(steps),
		}
		v.publish(ctx, workflow.ID, event)

		v.logger.InfoContext(ctx, "workflow version saved",
			"workflow_id", workflow.ID,
			"version", version.Number,
			"steps", len(steps))

		saved = workflow

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return saved, nil
}

// Activate makes a saved version the one the execution engine runs.
func (v *Versions) Activate(ctx context.Context, workflowID string, number int) (*models.Workflow, error) {
	const op = "activate_workflow"

	ctx, span := otelhelper.StartSpan(ctx, v.tracer, "services.versions.activate",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.Int(otelhelper.VersionNumberKey, number))
	defer span.End()

	if number < 1 {
		return nil, NewValidationError(op, "INVALID_VERSION", "version_number must be a positive integer", ErrInvalidVersionNumber)
	}

	var activated *models.Workflow

	err := v.withLock(ctx, op, workflowID, func(ctx context.Context) error {
		workflow, err := v.load(ctx, op, workflowID)
		if err != nil {
			return err
		}

		version, err := v.version(ctx, op, workflowID, number)
		if err != nil {
			return err
		}

		if err := checkActivatable(op, version); err != nil {
			return err
		}

		workflow.ActiveVersion = &version.Number
		workflow.Status = models.WorkflowStatusActive
		workflow.UpdatedAt = time.Now().UTC()

		if err := v.store(ctx, op, workflow); err != nil {
			return err
		}

		event := events.WorkflowActivated{
			BaseEvent:        events.NewBaseEvent(events.WorkflowActivatedEvent, workflow.ID),
			VersionNumber:    version.Number,
			TriggerSegmentID: models.StringValue(version.Settings.TriggerSegmentID),
			Settings:         version.Settings,
			Steps:            version.Steps,
		}
		v.publish(ctx, workflow.ID, event)

		v.logger.InfoContext(ctx, "workflow activated", "workflow_id", workflow.ID, "version", version.Number)

		activated = workflow

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	activated.Steps = models.SortedSteps(activated.Steps)

	return activated, nil
}

// List returns the saved versions of a workflow, newest first.
func (v *Versions) List(ctx context.Context, workflowID string) ([]*models.WorkflowVersion, error) {
	const op = "list_versions"

	if _, err := v.load(ctx, op, workflowID); err != nil {
		return nil, err
	}

	versions, err := v.persistence.VersionRepository().Versions(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list versions: %w", op, err)
	}

	return versions, nil
}

// Get returns one saved version.
func (v *Versions) Get(ctx context.Context, workflowID string, number int) (*models.WorkflowVersion, error) {
	return v.version(ctx, "get_version", workflowID, number)
}

func (v *Versions) version(ctx context.Context, op, workflowID string, number int) (*models.WorkflowVersion, error) {
	version, err := v.persistence.VersionRepository().Version(ctx, workflowID, number)
	if err != nil {
		if persistence.IsVersionNotFound(err) {
			return nil, newNotFoundError(op, fmt.Sprintf("version %d not found", number), ErrVersionNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get version: %w", op, err)
	}

	return version, nil
}
