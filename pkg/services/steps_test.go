package services

import (
	"testing"

	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/projection"
	"github.com/mono-send/send-smartly/pkg/reconcile"
	"github.com/mono-send/send-smartly/pkg/stepgraph"
	"github.com/mono-send/send-smartly/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteps_Create_InsertAndShift(t *testing.T) {
	p := newPersistence(t)
	seedWorkflow(t, p, nil)
	service := NewSteps(p)

	email, err := service.Create(t.Context(), "wf-test", models.CreateStepRequest{
		StepType: models.StepTypeEmail,
		Position: 1,
		StepConfig: models.StepConfig{
			SenderID:        "s1",
			TemplateID:      models.StringPtr("t1"),
			SubjectOverride: "  Welcome  ",
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, email.ID)
	assert.Equal(t, "wf-test", email.WorkflowID)
	assert.Equal(t, "s1@example.com", email.Config.SenderEmail)
	assert.Equal(t, "Welcome", email.Config.SubjectOverride)

	wait, err := service.Create(t.Context(), "wf-test", models.CreateStepRequest{
		StepType:   models.StepTypeWait,
		Position:   1,
		StepConfig: models.StepConfig{WaitDuration: models.IntPtr(2), WaitUnit: models.WaitUnitDay},
	})
	require.NoError(t, err)

	workflow, err := p.WorkflowRepository().GetByID(t.Context(), "wf-test")
	require.NoError(t, err)

	assert.True(t, workflow.HasUnsavedChanges)
	assert.Equal(t, map[string]int{wait.ID: 1, email.ID: 2}, positions(workflow.Steps))

	views := projection.FromGraph(mustBuild(t, workflow.Steps))
	require.Len(t, views.Main, 1)
	assert.Equal(t, 2, views.Main[0].WaitTime)
}

func TestSteps_Create_Rejected(t *testing.T) {
	p := newPersistence(t)
	seedWorkflow(t, p, testutil.ForkedSteps())
	service := NewSteps(p)

	tests := []struct {
		name    string
		req     models.CreateStepRequest
		wantErr error
	}{
		{
			name:    "position below one",
			req:     models.CreateStepRequest{StepType: models.StepTypeWait, Position: 0},
			wantErr: ErrInvalidStepPlacement,
		},
		{
			name:    "unknown step type",
			req:     models.CreateStepRequest{StepType: "sms", Position: 1},
			wantErr: ErrInvalidStepConfig,
		},
		{
			name:    "wait without duration",
			req:     models.CreateStepRequest{StepType: models.StepTypeWait, Position: 1, StepConfig: models.StepConfig{WaitUnit: models.WaitUnitDay}},
			wantErr: ErrInvalidStepConfig,
		},
		{
			name: "wait with email keys",
			req: models.CreateStepRequest{StepType: models.StepTypeWait, Position: 1, StepConfig: models.StepConfig{
				WaitDuration: models.IntPtr(1), WaitUnit: models.WaitUnitDay, SenderID: "s1",
			}},
			wantErr: ErrInvalidStepConfig,
		},
		{
			name:    "unknown sender",
			req:     models.CreateStepRequest{StepType: models.StepTypeEmail, Position: 10, StepConfig: models.StepConfig{SenderID: "ghost"}},
			wantErr: ErrUnknownSender,
		},
		{
			name: "unknown template",
			req: models.CreateStepRequest{StepType: models.StepTypeEmail, Position: 10, StepConfig: models.StepConfig{
				SenderID: "s1", TemplateID: models.StringPtr("ghost"),
			}},
			wantErr: ErrUnknownTemplate,
		},
		{
			name: "second condition",
			req: models.CreateStepRequest{StepType: models.StepTypeCondition, Position: 10, StepConfig: models.StepConfig{
				ConditionType: models.ConditionClicked, EvaluatedStepID: "e1",
			}},
			wantErr: stepgraph.ErrMultipleConditions,
		},
		{
			name: "second email in an arm",
			req: models.CreateStepRequest{
				StepType:     models.StepTypeEmail,
				Position:     6,
				ParentStepID: models.StringPtr("c1"),
				Branch:       models.BranchPtr(models.BranchYes),
				StepConfig:   models.StepConfig{SenderID: "s1"},
			},
			wantErr: stepgraph.ErrBranchTooLong,
		},
		{
			name: "branch step without branch tag",
			req: models.CreateStepRequest{
				StepType:     models.StepTypeWait,
				Position:     6,
				ParentStepID: models.StringPtr("c1"),
				StepConfig:   models.StepConfig{WaitDuration: models.IntPtr(1), WaitUnit: models.WaitUnitDay},
			},
			wantErr: stepgraph.ErrMissingBranch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(t.Context(), "wf-test", tt.req)

			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}

	workflow, err := p.WorkflowRepository().GetByID(t.Context(), "wf-test")
	require.NoError(t, err)
	assert.Equal(t, positions(testutil.ForkedSteps()), positions(workflow.Steps))
	assert.False(t, workflow.HasUnsavedChanges)
}

func TestSteps_Create_Condition(t *testing.T) {
	p := newPersistence(t)
	seedWorkflow(t, p, []models.WorkflowStep{
		testutil.Email("e1", 1, "s1"),
		testutil.Email("e2", 2, "s1"),
	})
	service := NewSteps(p)

	_, err := service.Create(t.Context(), "wf-test", models.CreateStepRequest{
		StepType:   models.StepTypeCondition,
		Position:   3,
		StepConfig: models.StepConfig{ConditionType: models.ConditionOpened, EvaluatedStepID: "missing"},
	})
	require.ErrorIs(t, err, ErrInvalidCondition)

	condition, err := service.Create(t.Context(), "wf-test", models.CreateStepRequest{
		StepType:   models.StepTypeCondition,
		Position:   reconcile.ConditionPosition(storedSteps(t, p)),
		StepConfig: models.StepConfig{ConditionType: models.ConditionOpened, EvaluatedStepID: "e2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, condition.Position)

	branchEmail, err := service.Create(t.Context(), "wf-test", models.CreateStepRequest{
		StepType:     models.StepTypeEmail,
		Position:     reconcile.BranchPosition(storedSteps(t, p), models.BranchNo),
		ParentStepID: &condition.ID,
		Branch:       models.BranchPtr(models.BranchNo),
		StepConfig:   models.StepConfig{SenderID: "s2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, branchEmail.Position)

	views, err := projection.Project(storedSteps(t, p))
	require.NoError(t, err)
	require.NotNil(t, views.Condition)
	require.NotNil(t, views.Condition.NoBranch.Email)
	assert.Equal(t, branchEmail.ID, views.Condition.NoBranch.Email.ID)
	assert.Nil(t, views.Condition.YesBranch.Email)
}

func TestSteps_Update(t *testing.T) {
	p := newPersistence(t)
	seedWorkflow(t, p, testutil.ForkedSteps())
	service := NewSteps(p)

	updated, err := service.Update(t.Context(), "wf-test", "e4", models.UpdateStepRequest{
		Config: models.StepConfig{SenderID: "s1", SubjectOverride: "Last call"},
	})
	require.NoError(t, err)

	assert.Equal(t, "e4", updated.ID)
	assert.Equal(t, 9, updated.Position)
	assert.Equal(t, "s1@example.com", updated.Config.SenderEmail)
	assert.Equal(t, "Last call", updated.Config.SubjectOverride)

	_, err = service.Update(t.Context(), "wf-test", "w4", models.UpdateStepRequest{
		Config: models.StepConfig{WaitDuration: models.IntPtr(3), WaitUnit: "week"},
	})
	require.ErrorIs(t, err, ErrInvalidStepConfig)

	_, err = service.Update(t.Context(), "wf-test", "c1", models.UpdateStepRequest{
		Config: models.StepConfig{ConditionType: models.ConditionClicked, EvaluatedStepID: "e4"},
	})
	require.ErrorIs(t, err, ErrInvalidCondition)

	_, err = service.Update(t.Context(), "wf-test", "ghost", models.UpdateStepRequest{})
	require.ErrorIs(t, err, ErrStepNotFound)
	assert.True(t, IsNotFoundError(err))
}

func TestSteps_Delete(t *testing.T) {
	tests := []struct {
		name          string
		stepID        string
		wantPositions map[string]int
	}{
		{
			name:   "email takes its wait along",
			stepID: "e4",
			wantPositions: map[string]int{
				"w1": 1, "e1": 2, "c1": 3, "w2": 4, "e2": 5, "w3": 6, "e3": 7,
			},
		},
		{
			name:   "branch email takes its branch wait along",
			stepID: "e2",
			wantPositions: map[string]int{
				"w1": 1, "e1": 2, "c1": 3, "w3": 6, "e3": 7, "w4": 8, "e4": 9,
			},
		},
		{
			name:   "condition takes both branches along",
			stepID: "c1",
			wantPositions: map[string]int{
				"w1": 1, "e1": 2, "w4": 8, "e4": 9,
			},
		},
		{
			name:   "wait alone",
			stepID: "w4",
			wantPositions: map[string]int{
				"w1": 1, "e1": 2, "c1": 3, "w2": 4, "e2": 5, "w3": 6, "e3": 7, "e4": 9,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPersistence(t)
			seedWorkflow(t, p, testutil.ForkedSteps())

			remaining, err := NewSteps(p).Delete(t.Context(), "wf-test", tt.stepID)
			require.NoError(t, err)

			assert.Equal(t, tt.wantPositions, positions(remaining))
			assert.Equal(t, tt.wantPositions, positions(storedSteps(t, p)))
		})
	}
}

func TestSteps_Delete_EvaluatedEmail(t *testing.T) {
	p := newPersistence(t)
	seedWorkflow(t, p, testutil.ForkedSteps())

	_, err := NewSteps(p).Delete(t.Context(), "wf-test", "e1")

	require.ErrorIs(t, err, ErrInvalidCondition)
	assert.Equal(t, "this email is evaluated by the workflow condition, remove the condition first", Detail(err))
	assert.Len(t, storedSteps(t, p), 9)
}

func TestSteps_Reorder_WithPlan(t *testing.T) {
	p := newPersistence(t)
	seedWorkflow(t, p, []models.WorkflowStep{
		testutil.Wait("wA", 1, 1, models.WaitUnitDay),
		testutil.Email("A", 2, "s1"),
		testutil.Wait("wB", 3, 2, models.WaitUnitDay),
		testutil.Email("B", 4, "s1"),
		testutil.Email("C", 5, "s2"),
	})

	prev := storedSteps(t, p)

	moved, ok := reconcile.Move(projection.ToEmailSteps(prev), 2, 0)
	require.True(t, ok)

	plan, err := reconcile.PlanReorder(prev, reconcile.ListMain, moved)
	require.NoError(t, err)

	steps, err := NewSteps(p).Reorder(t.Context(), "wf-test", plan)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"C": 1, "wA": 2, "A": 3, "wB": 4, "B": 5}, positions(steps))

	emails := projection.ToEmailSteps(steps)
	require.Len(t, emails, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{emails[0].ID, emails[1].ID, emails[2].ID})
	assert.Equal(t, models.DefaultWaitDuration, emails[0].WaitTime)
}

func TestSteps_Reorder_Rejected(t *testing.T) {
	p := newPersistence(t)
	seedWorkflow(t, p, testutil.ForkedSteps())
	service := NewSteps(p)

	tests := []struct {
		name    string
		items   []models.ReorderItem
		wantErr error
	}{
		{
			name:    "empty",
			items:   nil,
			wantErr: ErrInvalidReorder,
		},
		{
			name:    "unknown step",
			items:   []models.ReorderItem{{ID: "ghost", Position: 1}},
			wantErr: ErrStepNotFound,
		},
		{
			name:    "duplicate step",
			items:   []models.ReorderItem{{ID: "w4", Position: 20}, {ID: "w4", Position: 21}},
			wantErr: ErrInvalidReorder,
		},
		{
			name:    "branch change",
			items:   []models.ReorderItem{{ID: "e4", Position: 9, ParentStepID: models.StringPtr("c1"), Branch: models.BranchPtr(models.BranchYes)}},
			wantErr: ErrInvalidReorder,
		},
		{
			name:    "position collision",
			items:   []models.ReorderItem{{ID: "e4", Position: 2}},
			wantErr: stepgraph.ErrDuplicatePosition,
		},
		{
			name:    "branch step before fork",
			items:   []models.ReorderItem{{ID: "e2", Position: 1, ParentStepID: models.StringPtr("c1"), Branch: models.BranchPtr(models.BranchYes)}, {ID: "w1", Position: 20}},
			wantErr: stepgraph.ErrBranchBeforeFork,
		},
		{
			name:    "evaluated email after condition",
			items:   []models.ReorderItem{{ID: "e1", Position: 20}},
			wantErr: ErrInvalidCondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Reorder(t.Context(), "wf-test", tt.items)

			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, positions(testutil.ForkedSteps()), positions(storedSteps(t, p)))
}

func mustBuild(t *testing.T, steps []models.WorkflowStep) *stepgraph.Graph {
	t.Helper()

	graph, err := stepgraph.Build(steps)
	require.NoError(t, err)

	return graph
}
