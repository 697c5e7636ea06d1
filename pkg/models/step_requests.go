package models

// CreateStepRequest inserts a step at Position; steps at or after it move down by one.
// Config keys travel flat next to the placement fields.
type CreateStepRequest struct {
	StepType     StepType `json:"step_type"      validate:"required,oneof=wait email condition"`
	Position     int      `json:"position"       validate:"min=1"`
	ParentStepID *string  `json:"parent_step_id"`
	Branch       *Branch  `json:"branch"         validate:"omitempty,oneof=yes no"`
	StepConfig
}

// Step returns the step described by the request, without identity.
func (r CreateStepRequest) Step() WorkflowStep {
	step := WorkflowStep{
		StepType:     r.StepType,
		Position:     r.Position,
		ParentStepID: r.ParentStepID,
		Branch:       r.Branch,
		Config:       r.StepConfig,
	}

	return step.Clone()
}

// UpdateStepRequest replaces a step's config.
type UpdateStepRequest struct {
	Config StepConfig `json:"config"`
}

// ReorderItem is one entry of a bulk position update.
type ReorderItem struct {
	ID           string  `json:"id"             validate:"required"`
	Position     int     `json:"position"       validate:"min=1"`
	ParentStepID *string `json:"parent_step_id"`
	Branch       *Branch `json:"branch"`
}

type ReorderRequest struct {
	Steps []ReorderItem `json:"steps" validate:"required,min=1,dive"`
}
