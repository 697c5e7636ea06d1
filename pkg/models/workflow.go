// Package models defines the wire and editor models of the automation workflow builder.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusPaused   WorkflowStatus = "paused"
	WorkflowStatusArchived WorkflowStatus = "archived"
)

// Valid reports whether s is a known status.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusDraft, WorkflowStatusActive, WorkflowStatusPaused, WorkflowStatusArchived:
		return true
	}

	return false
}

// WorkflowStats holds enrollment counters maintained by the execution engine.
type WorkflowStats struct {
	Enrolled  int `json:"enrolled"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Exited    int `json:"exited"`
}

// Workflow is the aggregate root: settings, version pointers and the step graph.
type Workflow struct {
	ID                    string         `json:"id"`
	Name                  string         `json:"name"                    validate:"required,max=200"`
	Status                WorkflowStatus `json:"status"`
	TriggerSegmentID      *string        `json:"trigger_segment_id"`
	UnsubscribeCategoryID *string        `json:"unsubscribe_category_id"`
	TrackOpens            bool           `json:"track_opens"`
	TrackClicks           bool           `json:"track_clicks"`
	ExitOnAllEmails       bool           `json:"exit_on_all_emails"`
	ExitOnSegmentLeave    bool           `json:"exit_on_segment_leave"`
	ActiveVersion         *int           `json:"active_version"`
	DraftVersion          int            `json:"draft_version"`
	HasUnsavedChanges     bool           `json:"has_unsaved_changes"`
	Steps                 []WorkflowStep `json:"steps"`
	Stats                 WorkflowStats  `json:"stats"`
	CreatedBy             string         `json:"created_by,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// ListItem strips the step graph for list responses.
func (w *Workflow) ListItem() WorkflowListItem {
	return WorkflowListItem{
		ID:                w.ID,
		Name:              w.Name,
		Status:            w.Status,
		TriggerSegmentID:  w.TriggerSegmentID,
		ActiveVersion:     w.ActiveVersion,
		DraftVersion:      w.DraftVersion,
		HasUnsavedChanges: w.HasUnsavedChanges,
		StepCount:         len(w.Steps),
		Stats:             w.Stats,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
	}
}

// Clone returns a deep copy so callers can mutate it without sharing steps.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	out := *w
	out.TriggerSegmentID = cloneString(w.TriggerSegmentID)
	out.UnsubscribeCategoryID = cloneString(w.UnsubscribeCategoryID)

	if w.ActiveVersion != nil {
		v := *w.ActiveVersion
		out.ActiveVersion = &v
	}

	out.Steps = CloneSteps(w.Steps)

	return &out
}

// WorkflowListItem is the summary returned by GET /workflows.
type WorkflowListItem struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Status            WorkflowStatus `json:"status"`
	TriggerSegmentID  *string        `json:"trigger_segment_id"`
	ActiveVersion     *int           `json:"active_version"`
	DraftVersion      int            `json:"draft_version"`
	HasUnsavedChanges bool           `json:"has_unsaved_changes"`
	StepCount         int            `json:"step_count"`
	Stats             WorkflowStats  `json:"stats"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Pagination describes a page of a list response.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// WorkflowList is the body of GET /workflows.
type WorkflowList struct {
	Data       []WorkflowListItem `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

// WorkflowVersion is an immutable snapshot written by a save.
type WorkflowVersion struct {
	WorkflowID string         `json:"workflow_id"`
	Number     int            `json:"version_number"`
	Settings   Settings       `json:"settings"`
	Steps      []WorkflowStep `json:"steps"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Settings are the top-level, user-editable workflow fields.
type Settings struct {
	Name                  string  `json:"name"`
	TriggerSegmentID      *string `json:"trigger_segment_id"`
	UnsubscribeCategoryID *string `json:"unsubscribe_category_id"`
	TrackOpens            bool    `json:"track_opens"`
	TrackClicks           bool    `json:"track_clicks"`
	ExitOnAllEmails       bool    `json:"exit_on_all_emails"`
	ExitOnSegmentLeave    bool    `json:"exit_on_segment_leave"`
}

// Settings extracts the editable settings of w.
func (w *Workflow) Settings() Settings {
	return Settings{
		Name:                  w.Name,
		TriggerSegmentID:      cloneString(w.TriggerSegmentID),
		UnsubscribeCategoryID: cloneString(w.UnsubscribeCategoryID),
		TrackOpens:            w.TrackOpens,
		TrackClicks:           w.TrackClicks,
		ExitOnAllEmails:       w.ExitOnAllEmails,
		ExitOnSegmentLeave:    w.ExitOnSegmentLeave,
	}
}

// CreateWorkflowRequest is the body of POST /workflows.
type CreateWorkflowRequest struct {
	Name                  string  `json:"name"                    validate:"required,max=200"`
	TriggerSegmentID      *string `json:"trigger_segment_id"`
	UnsubscribeCategoryID *string `json:"unsubscribe_category_id"`
	CreatedBy             string  `json:"created_by"`
}

// WorkflowPatch is a partial update; nil fields are left untouched.
type WorkflowPatch struct {
	Name                  *string `json:"name,omitempty"                    validate:"omitempty,min=1,max=200"`
	TriggerSegmentID      *string `json:"trigger_segment_id,omitempty"`
	UnsubscribeCategoryID *string `json:"unsubscribe_category_id,omitempty"`
	TrackOpens            *bool   `json:"track_opens,omitempty"`
	TrackClicks           *bool   `json:"track_clicks,omitempty"`
	ExitOnAllEmails       *bool   `json:"exit_on_all_emails,omitempty"`
	ExitOnSegmentLeave    *bool   `json:"exit_on_segment_leave,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p WorkflowPatch) Empty() bool {
	return p.Name == nil && p.TriggerSegmentID == nil && p.UnsubscribeCategoryID == nil &&
		p.TrackOpens == nil && p.TrackClicks == nil && p.ExitOnAllEmails == nil && p.ExitOnSegmentLeave == nil
}

// Apply writes the non-nil fields of p onto w. An empty string clears a reference.
func (p WorkflowPatch) Apply(w *Workflow) {
	if p.Name != nil {
		w.Name = *p.Name
	}

	if p.TriggerSegmentID != nil {
		w.TriggerSegmentID = nullable(*p.TriggerSegmentID)
	}

	if p.UnsubscribeCategoryID != nil {
		w.UnsubscribeCategoryID = nullable(*p.UnsubscribeCategoryID)
	}

	if p.TrackOpens != nil {
		w.TrackOpens = *p.TrackOpens
	}

	if p.TrackClicks != nil {
		w.TrackClicks = *p.TrackClicks
	}

	if p.ExitOnAllEmails != nil {
		w.ExitOnAllEmails = *p.ExitOnAllEmails
	}

	if p.ExitOnSegmentLeave != nil {
		w.ExitOnSegmentLeave = *p.ExitOnSegmentLeave
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}

	v := *s

	return &v
}

// StringPtr is a small helper for optional string fields.
func StringPtr(s string) *string {
	return &s
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
