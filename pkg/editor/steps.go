package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/reconcile"
	"github.com/mono-send/send-smartly/pkg/stepgraph"
)

// placement is where a new step goes in the step list.
type placement struct {
	position int
	parentID *string
	branch   *models.Branch
}

// AddEmail appends an email to the main path.
func (s *Session) AddEmail(ctx context.Context, form models.EmailForm) error {
	return s.addPathEmail(ctx, OpAddEmail, reconcile.ListMain, form)
}

// AddMergedEmail appends an email after the branches rejoin.
func (s *Session) AddMergedEmail(ctx context.Context, form models.EmailForm) error {
	s.mu.Lock()
	forked := s.views.Condition != nil
	s.mu.Unlock()

	if !forked {
		return s.warn(ctx, OpAddEmail, ErrNoCondition, "Add a condition before adding emails after it")
	}

	return s.addPathEmail(ctx, OpAddEmail, reconcile.ListMerged, form)
}

func (s *Session) addPathEmail(ctx context.Context, op Operation, list reconcile.ListKind, form models.EmailForm) error {
	if err := s.checkEmailForm(ctx, op, form); err != nil {
		return err
	}

	id, release, err := s.acquire(op)
	if err != nil {
		return err
	}
	defer release()

	steps, err := s.steps()
	if err != nil {
		return s.fail(ctx, op, err)
	}

	return s.createEmail(ctx, op, id, placement{position: reconcile.NextPosition(steps, list)}, form)
}

// AddBranchEmail adds the single email of one side of the condition.
func (s *Session) AddBranchEmail(ctx context.Context, branch models.Branch, form models.EmailForm) error {
	const op = OpAddBranchEmail

	s.mu.Lock()
	condition := s.views.Condition
	s.mu.Unlock()

	if condition == nil {
		return s.warn(ctx, op, ErrNoCondition, "Add a condition before adding branch emails")
	}

	if condition.Arm(branch).Email != nil {
		return s.warn(ctx, op, ErrBranchFull, fmt.Sprintf("The %s branch already has an email", branch))
	}

	if err := s.checkEmailForm(ctx, op, form); err != nil {
		return err
	}

	id, release, err := s.acquire(op)
	if err != nil {
		return err
	}
	defer release()

	steps, err := s.steps()
	if err != nil {
		return s.fail(ctx, op, err)
	}

	return s.createEmail(ctx, op, id, placement{
		position: reconcile.BranchPosition(steps, branch),
		parentID: models.StringPtr(condition.ID),
		branch:   models.BranchPtr(branch),
	}, form)
}

// createEmail creates the email and, when the form asks for a delay, the wait in
// front of it. The server's copies replace the local guess.
func (s *Session) createEmail(ctx context.Context, op Operation, workflowID string, at placement, form models.EmailForm) error {
	email, err := call(ctx, s, func(ctx context.Context) (*models.WorkflowStep, error) {
		return s.api.CreateStep(ctx, workflowID, models.CreateStepRequest{
			StepType:     models.StepTypeEmail,
			Position:     at.position,
			ParentStepID: at.parentID,
			Branch:       at.branch,
			StepConfig:   emailConfig(form),
		})
	})
	if err != nil {
		return s.fail(ctx, op, err)
	}

	s.applyInsert(workflowID, *email)

	if form.WaitTime <= 0 {
		return nil
	}

	wait, err := call(ctx, s, func(ctx context.Context) (*models.WorkflowStep, error) {
		return s.api.CreateStep(ctx, workflowID, models.CreateStepRequest{
			StepType:     models.StepTypeWait,
			Position:     email.Position,
			ParentStepID: email.ParentStepID,
			Branch:       email.Branch,
			StepConfig:   waitConfig(form),
		})
	})
	if err != nil {
		if !errors.Is(err, ErrSessionClosed) {
			s.undoCreate(ctx, workflowID, email.ID)
		}

		return s.fail(ctx, op, err)
	}

	s.applyInsert(workflowID, *wait)

	return nil
}

// undoCreate deletes an email whose wait could not be created. When the delete
// fails as well the local copy is reloaded from the server.
func (s *Session) undoCreate(ctx context.Context, workflowID, emailID string) {
	remaining, err := call(ctx, s, func(ctx context.Context) ([]models.WorkflowStep, error) {
		return s.api.DeleteStep(ctx, workflowID, emailID)
	})
	if err != nil {
		s.logger.Error("Failed to remove email after its wait was rejected",
			"workflow_id", workflowID, "step_id", emailID, "error", err)
		s.resync(ctx, workflowID)

		return
	}

	s.replaceSteps(workflowID, remaining)
}

// UpdateEmail replaces an email's content and adjusts the wait in front of it.
func (s *Session) UpdateEmail(ctx context.Context, emailID string, form models.EmailForm) error {
	const op = OpUpdateEmail

	if err := s.checkEmailForm(ctx, op, form); err != nil {
		return err
	}

	id, release, err := s.acquire(op)
	if err != nil {
		return err
	}
	defer release()

	pair, err := s.findEmail(emailID)
	if err != nil {
		return s.fail(ctx, op, err)
	}

	email := pair.Email.Step()
	previous := email.Config

	updated, err := call(ctx, s, func(ctx context.Context) (*models.WorkflowStep, error) {
		return s.api.UpdateStep(ctx, id, emailID, emailConfig(form))
	})
	if err != nil {
		return s.fail(ctx, op, err)
	}

	s.applyUpdate(id, *updated)

	switch {
	case pair.Wait != nil && (pair.Wait.Duration() != form.WaitTime || pair.Wait.Unit() != waitUnit(form)):
		var wait *models.WorkflowStep

		wait, err = call(ctx, s, func(ctx context.Context) (*models.WorkflowStep, error) {
			return s.api.UpdateStep(ctx, id, pair.Wait.Step().ID, waitConfig(form))
		})
		if err == nil {
			s.applyUpdate(id, *wait)
		}
	case pair.Wait == nil && form.WaitTime > 0:
		var wait *models.WorkflowStep

		wait, err = call(ctx, s, func(ctx context.Context) (*models.WorkflowStep, error) {
			return s.api.CreateStep(ctx, id, models.CreateStepRequest{
				StepType:     models.StepTypeWait,
				Position:     email.Position,
				ParentStepID: email.ParentStepID,
				Branch:       email.Branch,
				StepConfig:   waitConfig(form),
			})
		})
		if err == nil {
			s.applyInsert(id, *wait)
		}
	}

	if err != nil {
		if !errors.Is(err, ErrSessionClosed) {
			s.undoUpdate(ctx, id, emailID, previous)
		}

		return s.fail(ctx, op, err)
	}

	return nil
}

// undoUpdate puts back an email's content when its wait could not follow. When
// that fails too the local copy is reloaded from the server.
func (s *Session) undoUpdate(ctx context.Context, workflowID, emailID string, previous models.StepConfig) {
	restored, err := call(ctx, s, func(ctx context.Context) (*models.WorkflowStep, error) {
		return s.api.UpdateStep(ctx, workflowID, emailID, previous)
	})
	if err != nil {
		s.logger.Error("Failed to restore email after its wait was rejected",
			"workflow_id", workflowID, "step_id", emailID, "error", err)
		s.resync(ctx, workflowID)

		return
	}

	s.applyUpdate(workflowID, *restored)
}

// DeleteEmail removes an email together with the wait in front of it.
func (s *Session) DeleteEmail(ctx context.Context, emailID string) error {
	return s.deleteStep(ctx, OpDeleteEmail, emailID)
}

// RemoveBranchEmail removes the email of one side of the condition.
func (s *Session) RemoveBranchEmail(ctx context.Context, branch models.Branch) error {
	const op = OpRemoveBranchEmail

	s.mu.Lock()
	condition := s.views.Condition
	s.mu.Unlock()

	if condition == nil {
		return s.warn(ctx, op, ErrNoCondition, "Workflow has no condition")
	}

	email := condition.Arm(branch).Email
	if email == nil {
		return s.warn(ctx, op, ErrBranchEmpty, fmt.Sprintf("The %s branch has no email", branch))
	}

	return s.deleteStep(ctx, op, email.ID)
}

// AddCondition forks the workflow after the main path. An empty evaluatedEmailID
// evaluates the last main path email.
func (s *Session) AddCondition(ctx context.Context, conditionType models.ConditionType, evaluatedEmailID string) error {
	const op = OpAddCondition

	s.mu.Lock()
	forked := s.views.Condition != nil
	main := s.views.Main
	s.mu.Unlock()

	if forked {
		return s.warn(ctx, op, ErrConditionExists, "Workflow already has a condition")
	}

	if evaluatedEmailID == "" {
		if len(main) == 0 {
			return s.warn(ctx, op, ErrNoEmailToEvaluate, "Add an email before adding a condition")
		}

		evaluatedEmailID = main[len(main)-1].ID
	}

	id, release, err := s.acquire(op)
	if err != nil {
		return err
	}
	defer release()

	steps, err := s.steps()
	if err != nil {
		return s.fail(ctx, op, err)
	}

	created, err := call(ctx, s, func(ctx context.Context) (*models.WorkflowStep, error) {
		return s.api.CreateStep(ctx, id, models.CreateStepRequest{
			StepType: models.StepTypeCondition,
			Position: reconcile.ConditionPosition(steps),
			StepConfig: models.StepConfig{
				ConditionType:   conditionType,
				EvaluatedStepID: evaluatedEmailID,
			},
		})
	})
	if err != nil {
		return s.fail(ctx, op, err)
	}

	s.applyInsert(id, *created)

	return nil
}

// RemoveCondition deletes the condition; the server drops both branches with it.
func (s *Session) RemoveCondition(ctx context.Context) error {
	const op = OpRemoveCondition

	s.mu.Lock()
	condition := s.views.Condition
	s.mu.Unlock()

	if condition == nil {
		return s.warn(ctx, op, ErrNoCondition, "Workflow has no condition")
	}

	return s.deleteStep(ctx, op, condition.ID)
}

func (s *Session) deleteStep(ctx context.Context, op Operation, stepID string) error {
	id, release, err := s.acquire(op)
	if err != nil {
		return err
	}
	defer release()

	if id == "" {
		return s.fail(ctx, op, ErrNoWorkflow)
	}

	remaining, err := call(ctx, s, func(ctx context.Context) ([]models.WorkflowStep, error) {
		return s.api.DeleteStep(ctx, id, stepID)
	})
	if err != nil {
		return s.fail(ctx, op, err)
	}

	s.replaceSteps(id, remaining)

	return nil
}

// Reorder moves the email at index from to index to within list. The move is shown
// right away; the server's answer then replaces the steps. On failure the workflow
// is fetched once and the views are rebuilt from it. Without a selected workflow the
// move is local only.
func (s *Session) Reorder(ctx context.Context, list reconcile.ListKind, from, to int) error {
	const op = OpReorder

	id, release, err := s.acquire(op)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	current := s.views.Main
	if list == reconcile.ListMerged {
		current = s.views.Merged
	}

	moved, ok := reconcile.Move(current, from, to)
	if !ok {
		s.mu.Unlock()

		return nil
	}

	if list == reconcile.ListMerged {
		s.views.Merged = moved
	} else {
		s.views.Main = moved
	}

	var steps []models.WorkflowStep
	if s.selected != nil {
		steps = models.CloneSteps(s.selected.Steps)
	}
	s.mu.Unlock()

	if id == "" {
		return nil
	}

	items, err := reconcile.PlanReorder(steps, list, moved)
	if err != nil {
		s.resync(ctx, id)

		return s.fail(ctx, op, err)
	}

	reordered, err := call(ctx, s, func(ctx context.Context) ([]models.WorkflowStep, error) {
		return s.api.ReorderSteps(ctx, id, items)
	})
	if err != nil {
		if !errors.Is(err, ErrSessionClosed) {
			s.resync(ctx, id)
		}

		return s.fail(ctx, op, err)
	}

	s.replaceSteps(id, reordered)

	return nil
}

// resync replaces the selected workflow with a fresh copy from the server.
func (s *Session) resync(ctx context.Context, workflowID string) {
	workflow, err := call(ctx, s, func(ctx context.Context) (*models.Workflow, error) {
		return s.api.GetWorkflow(ctx, workflowID)
	})
	if err != nil {
		s.logger.Error("Failed to resync workflow", "workflow_id", workflowID, "error", err)

		return
	}

	s.mu.Lock()
	if s.selectedID() != workflowID {
		s.mu.Unlock()

		return
	}

	s.serverSegment = models.StringValue(workflow.TriggerSegmentID)
	s.mu.Unlock()

	s.replaceWorkflow(workflow)
}

// checkEmailForm runs the pre-flight checks of every email add or edit. Nothing is
// sent when they fail.
func (s *Session) checkEmailForm(ctx context.Context, op Operation, form models.EmailForm) error {
	s.mu.Lock()
	segment := s.settings.TriggerSegmentID
	s.mu.Unlock()

	if segment == "" {
		return s.warn(ctx, op, ErrSegmentRequired, "Please select a trigger segment before adding emails")
	}

	if err := s.validate.Struct(form); err != nil {
		var invalid validator.ValidationErrors
		if !errors.As(err, &invalid) {
			return s.warn(ctx, op, fmt.Errorf("%w: %w", ErrInvalidForm, err), "Email form is invalid")
		}

		fields := make([]string, 0, len(invalid))
		for _, fe := range invalid {
			fields = append(fields, fe.Field())
		}

		return s.warn(ctx, op, fmt.Errorf("%w: %w", ErrInvalidForm, err),
			"Please fill in: "+strings.Join(fields, ", "))
	}

	return nil
}

func (s *Session) steps() ([]models.WorkflowStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return nil, ErrNoWorkflow
	}

	return models.CloneSteps(s.selected.Steps), nil
}

func (s *Session) findEmail(emailID string) (stepgraph.Pair, error) {
	steps, err := s.steps()
	if err != nil {
		return stepgraph.Pair{}, err
	}

	graph, err := stepgraph.Build(steps)
	if err != nil {
		return stepgraph.Pair{}, err
	}

	pair, ok := graph.FindEmail(emailID)
	if !ok {
		return stepgraph.Pair{}, fmt.Errorf("%w: %s", ErrEmailNotFound, emailID)
	}

	return pair, nil
}

// applyInsert mirrors the server's insert-and-shift on the local steps.
func (s *Session) applyInsert(workflowID string, created models.WorkflowStep) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil || s.selected.ID != workflowID {
		return
	}

	s.selected.Steps = reconcile.ApplyInsert(s.selected.Steps, created)
	s.selected.HasUnsavedChanges = true
	s.refreshViewsLocked()
}

func (s *Session) applyUpdate(workflowID string, updated models.WorkflowStep) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil || s.selected.ID != workflowID {
		return
	}

	for i := range s.selected.Steps {
		if s.selected.Steps[i].ID == updated.ID {
			s.selected.Steps[i] = updated.Clone()
		}
	}

	s.selected.Steps = models.SortedSteps(s.selected.Steps)
	s.selected.HasUnsavedChanges = true
	s.refreshViewsLocked()
}

func emailConfig(form models.EmailForm) models.StepConfig {
	config := models.StepConfig{
		SenderID:        form.SenderID,
		SubjectOverride: strings.TrimSpace(form.Subject),
		ContentOverride: form.Content,
	}

	if form.TemplateID != "" {
		config.TemplateID = models.StringPtr(form.TemplateID)
	}

	return config
}

func waitConfig(form models.EmailForm) models.StepConfig {
	return models.StepConfig{
		WaitDuration: models.IntPtr(form.WaitTime),
		WaitUnit:     waitUnit(form),
	}
}

func waitUnit(form models.EmailForm) models.WaitUnit {
	if form.WaitUnit.Valid() {
		return form.WaitUnit
	}

	return models.DefaultWaitUnit
}
