// Package persistence provides the data storage abstraction for workflows, their saved
// versions and the lookup lists shown in the editor.
package persistence

import (
	"context"

	"github.com/mono-send/send-smartly/pkg/models"
)

type Persistence interface {
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error

	WorkflowRepository() WorkflowRepository
	VersionRepository() VersionRepository
	LookupRepository() LookupRepository
}

// WorkflowRepository stores workflows together with their current steps.
type WorkflowRepository interface {
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	// GetByID returns ErrWorkflowNotFound (wrapped) when the workflow does not exist.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// Save upserts the workflow and replaces its steps.
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// VersionRepository stores the immutable snapshots written by a save.
type VersionRepository interface {
	SaveVersion(ctx context.Context, version *models.WorkflowVersion) error
	// Versions returns the workflow's versions, newest first.
	Versions(ctx context.Context, workflowID string) ([]*models.WorkflowVersion, error)
	Version(ctx context.Context, workflowID string, number int) (*models.WorkflowVersion, error)
	DeleteVersion(ctx context.Context, workflowID string, number int) error
}

// LookupRepository serves the selector lists of the editor.
type LookupRepository interface {
	Segments(ctx context.Context) ([]models.Segment, error)
	ContactCategories(ctx context.Context) ([]models.ContactCategory, error)
	Senders(ctx context.Context) ([]models.Sender, error)
	Templates(ctx context.Context) ([]models.Template, error)
	// ReplaceLookups overwrites every lookup list.
	ReplaceLookups(ctx context.Context, lookups models.Lookups) error
}

// ListWorkflowsOptions filters and pages ListWorkflows.
type ListWorkflowsOptions struct {
	Offset    int
	Limit     int
	Status    *models.WorkflowStatus
	SortBy    string // created_at, updated_at, name
	SortOrder string // asc, desc
}

// WorkflowListResult is one page of workflows.
type WorkflowListResult struct {
	Workflows   []*models.Workflow
	TotalCount  int64
	HasNextPage bool
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalize applies defaults and validates the sort options.
func (o *ListWorkflowsOptions) Normalize() error {
	if o.Limit <= 0 || o.Limit > MaxListLimit {
		o.Limit = DefaultListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.SortBy == "" {
		o.SortBy = "created_at"
	}

	if o.SortOrder == "" {
		o.SortOrder = "desc"
	}

	switch o.SortBy {
	case "created_at", "updated_at", "name":
	default:
		return NewInvalidSortError(o.SortBy)
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		return NewInvalidSortError(o.SortOrder)
	}

	return nil
}
