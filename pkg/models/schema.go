package models

// JSONSchema represents a JSON Schema for configuration validation.
type JSONSchema struct {
	Type                 string               `json:"type"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	Required             []string             `json:"required,omitempty"`
	Title                string               `json:"title,omitempty"`
	Description          string               `json:"description,omitempty"`
	AdditionalProperties *bool                `json:"additionalProperties,omitempty"`
}

// Property represents a JSON Schema property.
type Property struct {
	Type        any    `json:"type"`
	Description string `json:"description,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	MinLength   *int   `json:"minLength,omitempty"`
	MaxLength   *int   `json:"maxLength,omitempty"`
	Minimum     *int   `json:"minimum,omitempty"`
	Maximum     *int   `json:"maximum,omitempty"`
}

// maxWaitDuration caps waits at roughly one year in the largest unit.
const maxWaitDuration = 365

// StepConfigSchema returns the schema a step's config must satisfy, or nil for an
// unknown step type.
func StepConfigSchema(stepType StepType) *JSONSchema {
	closed := false
	one := 1

	switch stepType {
	case StepTypeWait:
		zero := 0
		maxWait := maxWaitDuration * 24 * 60

		return &JSONSchema{
			Type:  "object",
			Title: "Wait step",
			Properties: map[string]*Property{
				"wait_duration": {Type: "integer", Minimum: &zero, Maximum: &maxWait},
				"wait_unit":     {Type: "string", Enum: []any{"min", "hour", "day"}},
			},
			Required:             []string{"wait_duration", "wait_unit"},
			AdditionalProperties: &closed,
		}
	case StepTypeEmail:
		maxSubject := 998

		return &JSONSchema{
			Type:  "object",
			Title: "Email step",
			Properties: map[string]*Property{
				"sender_id":        {Type: "string", MinLength: &one},
				"sender_email":     {Type: "string"},
				"template_id":      {Type: []any{"string", "null"}},
				"subject_override": {Type: "string", MaxLength: &maxSubject},
				"content_override": {Type: "string"},
			},
			Required:             []string{"sender_id"},
			AdditionalProperties: &closed,
		}
	case StepTypeCondition:
		return &JSONSchema{
			Type:  "object",
			Title: "Condition step",
			Properties: map[string]*Property{
				"condition_type":    {Type: "string", Enum: []any{"opened", "clicked", "not_opened", "not_clicked"}},
				"evaluated_step_id": {Type: "string", MinLength: &one},
			},
			Required:             []string{"condition_type", "evaluated_step_id"},
			AdditionalProperties: &closed,
		}
	}

	return nil
}
