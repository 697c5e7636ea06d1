package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/stepgraph"
	"github.com/xeipuuv/gojsonschema"
)

// validateStepConfig checks config against the JSON schema of the step type.
func validateStepConfig(stepType models.StepType, config models.StepConfig) error {
	schema := models.StepConfigSchema(stepType)
	if schema == nil {
		return fmt.Errorf("%w: unknown step type %q", ErrInvalidStepConfig, stepType)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("failed to validate step config: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidStepConfig, strings.Join(problems, "; "))
}

// normalizeConfig validates config and fills in what the server owns: the sender's
// address and a trimmed subject.
func (b *base) normalizeConfig(
	ctx context.Context,
	op string,
	stepType models.StepType,
	config models.StepConfig,
) (models.StepConfig, error) {
	if err := validateStepConfig(stepType, config); err != nil {
		if errors.Is(err, ErrInvalidStepConfig) {
			return config, NewValidationError(op, "INVALID_STEP_CONFIG", err.Error(), err)
		}

		return config, err
	}

	if stepType != models.StepTypeEmail {
		return config, nil
	}

	lookups := b.persistence.LookupRepository()

	senders, err := lookups.Senders(ctx)
	if err != nil {
		return config, fmt.Errorf("%s: failed to load senders: %w", op, err)
	}

	all := models.Lookups{Senders: senders}

	sender, ok := all.SenderByID(config.SenderID)
	if !ok {
		return config, NewValidationError(op, "UNKNOWN_SENDER",
			fmt.Sprintf("sender '%s' does not exist", config.SenderID), ErrUnknownSender)
	}

	config.SenderEmail = sender.Email
	config.SubjectOverride = strings.TrimSpace(config.SubjectOverride)

	if models.StringValue(config.TemplateID) == "" {
		config.TemplateID = nil

		return config, nil
	}

	templates, err := lookups.Templates(ctx)
	if err != nil {
		return config, fmt.Errorf("%s: failed to load templates: %w", op, err)
	}

	for _, template := range templates {
		if template.ID == *config.TemplateID {
			return config, nil
		}
	}

	return config, NewValidationError(op, "UNKNOWN_TEMPLATE",
		fmt.Sprintf("template '%s' does not exist", *config.TemplateID), ErrUnknownTemplate)
}

// checkGraph rejects step lists that break the structural invariants.
func checkGraph(op string, steps []models.WorkflowStep) error {
	if err := stepgraph.Validate(steps); err != nil {
		return NewValidationError(op, "INVALID_STEP_GRAPH", err.Error(), errors.Join(ErrInvalidStepPlacement, err))
	}

	return nil
}

// checkCondition ensures the workflow's condition evaluates an email that runs
// before it on the main path.
func checkCondition(op string, steps []models.WorkflowStep) error {
	var condition *models.WorkflowStep

	for i := range steps {
		if steps[i].StepType == models.StepTypeCondition {
			condition = &steps[i]

			break
		}
	}

	if condition == nil {
		return nil
	}

	for _, step := range steps {
		if step.ID != condition.Config.EvaluatedStepID {
			continue
		}

		if step.StepType == models.StepTypeEmail && !step.InBranch() && step.Position < condition.Position {
			return nil
		}

		break
	}

	return NewValidationError(op, "INVALID_CONDITION",
		fmt.Sprintf("condition must evaluate an email that comes before it, got '%s'", condition.Config.EvaluatedStepID),
		ErrInvalidCondition)
}

// checkActivatable verifies a saved version can be handed to the execution engine.
func checkActivatable(op string, version *models.WorkflowVersion) error {
	if strings.TrimSpace(version.Settings.Name) == "" {
		return NewValidationError(op, "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	}

	if models.StringValue(version.Settings.TriggerSegmentID) == "" {
		return NewValidationError(op, "TRIGGER_SEGMENT_REQUIRED",
			"select a trigger segment before activating the workflow", ErrTriggerSegmentRequired)
	}

	graph, err := stepgraph.Build(version.Steps)
	if err != nil {
		return NewValidationError(op, "INVALID_STEP_GRAPH", err.Error(), errors.Join(ErrInvalidStepPlacement, err))
	}

	if graph.EmailCount() == 0 {
		return NewValidationError(op, "EMAIL_STEP_REQUIRED",
			"add at least one email before activating the workflow", ErrEmailStepRequired)
	}

	return checkCondition(op, version.Steps)
}
