package models

// EmailStep is the editor's view of one email together with the delay before it.
type EmailStep struct {
	ID          string   `json:"id"`
	SenderID    string   `json:"sender_id"`
	SenderEmail string   `json:"sender_email"`
	Subject     string   `json:"subject"`
	Content     string   `json:"content"`
	TemplateID  *string  `json:"template_id"`
	WaitTime    int      `json:"wait_time"`
	WaitUnit    WaitUnit `json:"wait_unit"`
}

// BranchRecord is one side of the fork: its delay and at most one email.
type BranchRecord struct {
	WaitTime int        `json:"wait_time"`
	WaitUnit WaitUnit   `json:"wait_unit"`
	Email    *EmailStep `json:"email"`
}

// ConditionBranch is the editor's view of the single fork.
type ConditionBranch struct {
	ID              string        `json:"id"`
	ConditionType   ConditionType `json:"condition_type"`
	EvaluatedStepID string        `json:"evaluated_step_id"`
	YesBranch       BranchRecord  `json:"yes_branch"`
	NoBranch        BranchRecord  `json:"no_branch"`
}

// Arm returns the record for the given branch.
func (c *ConditionBranch) Arm(b Branch) *BranchRecord {
	if b == BranchNo {
		return &c.NoBranch
	}

	return &c.YesBranch
}

// EmailForm is what the user fills in to add or edit an email.
type EmailForm struct {
	SenderID   string   `json:"sender_id"   validate:"required"`
	TemplateID string   `json:"template_id" validate:"required"`
	Subject    string   `json:"subject"     validate:"required,max=998"`
	Content    string   `json:"content"`
	WaitTime   int      `json:"wait_time"   validate:"omitempty,min=0"`
	WaitUnit   WaitUnit `json:"wait_unit"   validate:"omitempty,oneof=min hour day"`
}
