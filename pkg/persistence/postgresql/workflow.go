package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const selectWorkflow = `
	SELECT
		id
	  , name
	  , status
	  , trigger_segment_id
	  , unsubscribe_category_id
	  , track_opens
	  , track_clicks
	  , exit_on_all_emails
	  , exit_on_segment_leave
	  , active_version
	  , draft_version
	  , has_unsaved_changes
	  , stats
	  , created_by
	  , created_at
	  , updated_at
	FROM workflows
`

// ListWorkflows returns one page of workflows with their steps.
func (r *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	where := ""
	args := []any{}

	if opts.Status != nil {
		where = "WHERE status = $1"
		args = append(args, string(*opts.Status))
	}

	var total int64

	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows "+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	// SortBy and SortOrder are allowlisted by Normalize.
	query := fmt.Sprintf("%s %s ORDER BY %s %s, id LIMIT $%d OFFSET $%d",
		selectWorkflow, where, opts.SortBy, opts.SortOrder, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, workflow := range workflows {
		workflow.Steps, err = r.loadSteps(ctx, workflow.ID)
		if err != nil {
			return nil, err
		}
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+len(workflows)) < total,
	}, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, selectWorkflow+" WHERE id = $1", id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	workflow.Steps, err = r.loadSteps(ctx, id)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Save upserts the workflow and replaces its steps in one transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	statsJSON, err := json.Marshal(workflow.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	workflowQuery := `
		INSERT INTO workflows (id, name, status, trigger_segment_id, unsubscribe_category_id,
			track_opens, track_clicks, exit_on_all_emails, exit_on_segment_leave,
			active_version, draft_version, has_unsaved_changes, stats, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			trigger_segment_id = EXCLUDED.trigger_segment_id,
			unsubscribe_category_id = EXCLUDED.unsubscribe_category_id,
			track_opens = EXCLUDED.track_opens,
			track_clicks = EXCLUDED.track_clicks,
			exit_on_all_emails = EXCLUDED.exit_on_all_emails,
			exit_on_segment_leave = EXCLUDED.exit_on_segment_leave,
			active_version = EXCLUDED.active_version,
			draft_version = EXCLUDED.draft_version,
			has_unsaved_changes = EXCLUDED.has_unsaved_changes,
			stats = EXCLUDED.stats,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, workflowQuery,
		workflow.ID,
		workflow.Name,
		workflow.Status,
		workflow.TriggerSegmentID,
		workflow.UnsubscribeCategoryID,
		workflow.TrackOpens,
		workflow.TrackClicks,
		workflow.ExitOnAllEmails,
		workflow.ExitOnSegmentLeave,
		workflow.ActiveVersion,
		workflow.DraftVersion,
		workflow.HasUnsavedChanges,
		statsJSON,
		workflow.CreatedBy,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	stepQuery := `
		INSERT INTO workflow_steps (workflow_id, id, step_type, position, parent_step_id, branch, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for i := range workflow.Steps {
		step := &workflow.Steps[i]
		step.WorkflowID = workflow.ID

		if step.CreatedAt.IsZero() {
			step.CreatedAt = now
		}

		if step.UpdatedAt.IsZero() {
			step.UpdatedAt = now
		}

		var configJSON []byte

		configJSON, err = json.Marshal(step.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config of step %s: %w", step.ID, err)
		}

		var branch *string
		if step.Branch != nil {
			branch = models.StringPtr(string(*step.Branch))
		}

		_, err = tx.ExecContext(ctx, stepQuery,
			workflow.ID,
			step.ID,
			step.StepType,
			step.Position,
			step.ParentStepID,
			branch,
			configJSON,
			step.CreatedAt,
			step.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save step %s: %w", step.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete removes the workflow; steps and versions go with it.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflowID string) ([]models.WorkflowStep, error) {
	query := `
		SELECT id, workflow_id, step_type, position, parent_step_id, branch, config, created_at, updated_at
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps of workflow %s: %w", workflowID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	steps := make([]models.WorkflowStep, 0)

	for rows.Next() {
		var (
			step       models.WorkflowStep
			parent     sql.NullString
			branch     sql.NullString
			configJSON []byte
		)

		err := rows.Scan(&step.ID, &step.WorkflowID, &step.StepType, &step.Position,
			&parent, &branch, &configJSON, &step.CreatedAt, &step.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		if parent.Valid {
			step.ParentStepID = models.StringPtr(parent.String)
		}

		if branch.Valid {
			step.Branch = models.BranchPtr(models.Branch(branch.String))
		}

		err = json.Unmarshal(configJSON, &step.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal config of step %s: %w", step.ID, err)
		}

		steps = append(steps, step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow      models.Workflow
		segment       sql.NullString
		category      sql.NullString
		activeVersion sql.NullInt64
		statsJSON     []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Status,
		&segment,
		&category,
		&workflow.TrackOpens,
		&workflow.TrackClicks,
		&workflow.ExitOnAllEmails,
		&workflow.ExitOnSegmentLeave,
		&activeVersion,
		&workflow.DraftVersion,
		&workflow.HasUnsavedChanges,
		&statsJSON,
		&workflow.CreatedBy,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if segment.Valid {
		workflow.TriggerSegmentID = models.StringPtr(segment.String)
	}

	if category.Valid {
		workflow.UnsubscribeCategoryID = models.StringPtr(category.String)
	}

	if activeVersion.Valid {
		workflow.ActiveVersion = models.IntPtr(int(activeVersion.Int64))
	}

	if len(statsJSON) > 0 {
		err = json.Unmarshal(statsJSON, &workflow.Stats)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
	}

	return &workflow, nil
}
