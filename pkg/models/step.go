package models

import (
	"sort"
	"time"
)

// StepType discriminates the persisted step kinds.
type StepType string

const (
	StepTypeWait      StepType = "wait"
	StepTypeEmail     StepType = "email"
	StepTypeCondition StepType = "condition"
)

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	return t == StepTypeWait || t == StepTypeEmail || t == StepTypeCondition
}

// Branch tags the side of the fork a step lives on.
type Branch string

const (
	BranchYes Branch = "yes"
	BranchNo  Branch = "no"
)

func (b Branch) Valid() bool {
	return b == BranchYes || b == BranchNo
}

// BranchPtr is a helper for the optional branch field.
func BranchPtr(b Branch) *Branch {
	return &b
}

// WaitUnit is the unit of a wait duration.
type WaitUnit string

const (
	WaitUnitMinute WaitUnit = "min"
	WaitUnitHour   WaitUnit = "hour"
	WaitUnitDay    WaitUnit = "day"
)

func (u WaitUnit) Valid() bool {
	return u == WaitUnitMinute || u == WaitUnitHour || u == WaitUnitDay
}

// Duration converts n units into a time.Duration.
func (u WaitUnit) Duration(n int) time.Duration {
	switch u {
	case WaitUnitMinute:
		return time.Duration(n) * time.Minute
	case WaitUnitHour:
		return time.Duration(n) * time.Hour
	default:
		return time.Duration(n) * 24 * time.Hour
	}
}

// Implicit delay before an email that has no wait step in front of it.
const (
	DefaultWaitDuration = 5
	DefaultWaitUnit     = WaitUnitDay
)

// ConditionType is what a condition step evaluates about a prior email.
type ConditionType string

const (
	ConditionOpened     ConditionType = "opened"
	ConditionClicked    ConditionType = "clicked"
	ConditionNotOpened  ConditionType = "not_opened"
	ConditionNotClicked ConditionType = "not_clicked"
)

func (c ConditionType) Valid() bool {
	switch c {
	case ConditionOpened, ConditionClicked, ConditionNotOpened, ConditionNotClicked:
		return true
	}

	return false
}

// StepConfig is the type-specific payload of a step. Only the keys relevant to the
// step type are set.
type StepConfig struct {
	// wait
	WaitDuration *int     `json:"wait_duration,omitempty"`
	WaitUnit     WaitUnit `json:"wait_unit,omitempty"`

	// email
	SenderID        string  `json:"sender_id,omitempty"`
	SenderEmail     string  `json:"sender_email,omitempty"`
	TemplateID      *string `json:"template_id,omitempty"`
	SubjectOverride string  `json:"subject_override,omitempty"`
	ContentOverride string  `json:"content_override,omitempty"`

	// condition
	ConditionType   ConditionType `json:"condition_type,omitempty"`
	EvaluatedStepID string        `json:"evaluated_step_id,omitempty"`
}

// WorkflowStep is the persisted unit of a workflow's step graph.
type WorkflowStep struct {
	ID           string     `json:"id"`
	WorkflowID   string     `json:"workflow_id"`
	StepType     StepType   `json:"step_type"`
	Position     int        `json:"position"`
	ParentStepID *string    `json:"parent_step_id"`
	Branch       *Branch    `json:"branch"`
	Config       StepConfig `json:"config"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// InBranch reports whether the step belongs to a conditional branch.
func (s *WorkflowStep) InBranch() bool {
	return s.ParentStepID != nil
}

// BranchValue returns the branch tag or "".
func (s *WorkflowStep) BranchValue() Branch {
	if s.Branch == nil {
		return ""
	}

	return *s.Branch
}

// Clone deep-copies the step.
func (s WorkflowStep) Clone() WorkflowStep {
	s.ParentStepID = cloneString(s.ParentStepID)

	if s.Branch != nil {
		b := *s.Branch
		s.Branch = &b
	}

	if s.Config.WaitDuration != nil {
		d := *s.Config.WaitDuration
		s.Config.WaitDuration = &d
	}

	s.Config.TemplateID = cloneString(s.Config.TemplateID)

	return s
}

// CloneSteps deep-copies a step list.
func CloneSteps(steps []WorkflowStep) []WorkflowStep {
	if steps == nil {
		return nil
	}

	out := make([]WorkflowStep, len(steps))
	for i := range steps {
		out[i] = steps[i].Clone()
	}

	return out
}

// SortedSteps returns a copy of steps ordered by position. Ties keep input order.
func SortedSteps(steps []WorkflowStep) []WorkflowStep {
	out := CloneSteps(steps)
	if out == nil {
		out = []WorkflowStep{}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})

	return out
}

// IntPtr is a helper for optional ints.
func IntPtr(i int) *int {
	return &i
}

// IntValue dereferences i, returning 0 for nil.
func IntValue(i *int) int {
	if i == nil {
		return 0
	}

	return *i
}
