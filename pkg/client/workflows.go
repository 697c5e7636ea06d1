package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mono-send/send-smartly/pkg/models"
)

// ListOptions selects one page of the workflow list. Zero values use server defaults.
type ListOptions struct {
	Page     int
	PageSize int
	Status   models.WorkflowStatus
}

func (o ListOptions) query() url.Values {
	q := url.Values{}

	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}

	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}

	if o.Status != "" {
		q.Set("status", string(o.Status))
	}

	return q
}

func (c *Client) ListWorkflows(ctx context.Context, opts ListOptions) (*models.WorkflowList, error) {
	var out models.WorkflowList
	if err := c.do(ctx, "list_workflows", http.MethodGet, "/workflows", opts.query(), nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var out models.Workflow
	if err := c.do(ctx, "get_workflow", http.MethodGet, "/workflows/"+segment(id), nil, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) CreateWorkflow(ctx context.Context, req models.CreateWorkflowRequest) (*models.Workflow, error) {
	var out models.Workflow
	if err := c.do(ctx, "create_workflow", http.MethodPost, "/workflows", nil, req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// PatchWorkflow sends only the non-nil fields of patch.
func (c *Client) PatchWorkflow(ctx context.Context, id string, patch models.WorkflowPatch) (*models.Workflow, error) {
	var out models.Workflow
	if err := c.do(ctx, "patch_workflow", http.MethodPatch, "/workflows/"+segment(id), nil, patch, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, "delete_workflow", http.MethodDelete, "/workflows/"+segment(id), nil, nil, nil)
}

// SaveWorkflow stores the current draft as a new version.
func (c *Client) SaveWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var out models.Workflow
	if err := c.do(ctx, "save_workflow", http.MethodPost, "/workflows/"+segment(id)+"/save", nil, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ActivateWorkflow promotes a saved version to live.
func (c *Client) ActivateWorkflow(ctx context.Context, id string, version int) (*models.Workflow, error) {
	q := url.Values{"version_number": []string{strconv.Itoa(version)}}

	var out models.Workflow
	if err := c.do(ctx, "activate_workflow", http.MethodPost, "/workflows/"+segment(id)+"/activate", q, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) ListVersions(ctx context.Context, id string) ([]models.WorkflowVersion, error) {
	var out models.ListResponse[models.WorkflowVersion]
	if err := c.do(ctx, "list_versions", http.MethodGet, "/workflows/"+segment(id)+"/versions", nil, nil, &out); err != nil {
		return nil, err
	}

	return out.Data, nil
}

func (c *Client) CreateStep(ctx context.Context, workflowID string, req models.CreateStepRequest) (*models.WorkflowStep, error) {
	var out models.WorkflowStep
	if err := c.do(ctx, "create_step", http.MethodPost, stepsPath(workflowID), nil, req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) UpdateStep(ctx context.Context, workflowID, stepID string, config models.StepConfig) (*models.WorkflowStep, error) {
	var out models.WorkflowStep

	err := c.do(ctx, "update_step", http.MethodPatch, stepsPath(workflowID)+"/"+segment(stepID), nil,
		models.UpdateStepRequest{Config: config}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteStep removes a step and returns the workflow's remaining steps.
func (c *Client) DeleteStep(ctx context.Context, workflowID, stepID string) ([]models.WorkflowStep, error) {
	var out []models.WorkflowStep
	if err := c.do(ctx, "delete_step", http.MethodDelete, stepsPath(workflowID)+"/"+segment(stepID), nil, nil, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// ReorderSteps applies a bulk position update and returns the updated steps.
func (c *Client) ReorderSteps(ctx context.Context, workflowID string, items []models.ReorderItem) ([]models.WorkflowStep, error) {
	var out []models.WorkflowStep

	err := c.do(ctx, "reorder_steps", http.MethodPut, stepsPath(workflowID)+"/reorder", nil,
		models.ReorderRequest{Steps: items}, &out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *Client) Segments(ctx context.Context) ([]models.Segment, error) {
	return list[models.Segment](ctx, c, "list_segments", "/segments")
}

func (c *Client) ContactCategories(ctx context.Context) ([]models.ContactCategory, error) {
	return list[models.ContactCategory](ctx, c, "list_contact_categories", "/contact-categories")
}

func (c *Client) Senders(ctx context.Context) ([]models.Sender, error) {
	return list[models.Sender](ctx, c, "list_senders", "/senders")
}

func (c *Client) Templates(ctx context.Context) ([]models.Template, error) {
	return list[models.Template](ctx, c, "list_templates", "/templates")
}

func list[T any](ctx context.Context, c *Client, op, path string) ([]T, error) {
	var out models.ListResponse[T]
	if err := c.do(ctx, op, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}

	return out.Data, nil
}

func stepsPath(workflowID string) string {
	return "/workflows/" + segment(workflowID) + "/steps"
}

// segment escapes an id so it stays one path segment. Dot segments are
// escaped too, JoinPath would otherwise clean them away.
func segment(id string) string {
	if id == "." || id == ".." {
		return strings.Repeat("%2E", len(id))
	}

	return url.PathEscape(id)
}
