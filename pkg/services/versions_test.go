package services

import (
	"errors"
	"testing"
	"time"

	"github.com/mono-send/send-smartly/pkg/events"
	"github.com/mono-send/send-smartly/pkg/lock"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestVersions_Save(t *testing.T) {
	p := newPersistence(t)
	seed := seedWorkflow(t, p, testutil.ForkedSteps())
	seed.HasUnsavedChanges = true
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), seed))

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, "wf-test", mock.MatchedBy(func(e events.WorkflowVersionSaved) bool {
		return e.WorkflowID == "wf-test" && e.StepCount == 9
	})).Return(nil).Twice()

	service := NewVersions(p, WithPublisher(publisher))

	saved, err := service.Save(t.Context(), "wf-test")
	require.NoError(t, err)

	assert.Equal(t, 1, saved.DraftVersion)
	assert.False(t, saved.HasUnsavedChanges)
	assert.Nil(t, saved.ActiveVersion)

	saved, err = service.Save(t.Context(), "wf-test")
	require.NoError(t, err)
	assert.Equal(t, 2, saved.DraftVersion)

	versions, err := service.List(t.Context(), "wf-test")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Number)
	assert.Equal(t, "Onboarding", versions[0].Settings.Name)
	assert.Equal(t, positions(testutil.ForkedSteps()), positions(versions[0].Steps))

	publisher.AssertExpectations(t)
}

func TestVersions_Save_PublishFailureDoesNotFail(t *testing.T) {
	p := newPersistence(t)
	seedWorkflow(t, p, nil)

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, "wf-test", mock.Anything).Return(errors.New("broker down"))

	saved, err := NewVersions(p, WithPublisher(publisher)).Save(t.Context(), "wf-test")
	require.NoError(t, err)
	assert.Equal(t, 1, saved.DraftVersion)
}

func TestVersions_Save_NotFound(t *testing.T) {
	_, err := NewVersions(newPersistence(t)).Save(t.Context(), "missing")

	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestVersions_Save_Busy(t *testing.T) {
	p := newPersistence(t)
	seedWorkflow(t, p, nil)

	locker := lock.NewMemoryLocker()
	_, err := locker.TryAcquire(t.Context(), lock.WorkflowKey("wf-test"), time.Minute)
	require.NoError(t, err)

	_, err = NewVersions(p, WithLocker(locker)).Save(t.Context(), "wf-test")

	require.ErrorIs(t, err, ErrWorkflowBusy)
	assert.Equal(t, "workflow is being modified by another request, please retry", Detail(err))
}

func TestVersions_Activate(t *testing.T) {
	p := newPersistence(t)
	seedWorkflow(t, p, testutil.ForkedSteps())

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, "wf-test", mock.AnythingOfType("events.WorkflowVersionSaved")).Return(nil)
	publisher.On("Publish", mock.Anything, "wf-test", mock.MatchedBy(func(e events.WorkflowActivated) bool {
		return e.VersionNumber == 1 && e.TriggerSegmentID == "seg-1" && len(e.Steps) == 9
	})).Return(nil).Once()

	service := NewVersions(p, WithPublisher(publisher))

	_, err := service.Save(t.Context(), "wf-test")
	require.NoError(t, err)

	// Edits after the save stay out of the activated snapshot.
	_, err = NewSteps(p).Delete(t.Context(), "wf-test", "e4")
	require.NoError(t, err)

	activated, err := service.Activate(t.Context(), "wf-test", 1)
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusActive, activated.Status)
	require.NotNil(t, activated.ActiveVersion)
	assert.Equal(t, 1, *activated.ActiveVersion)
	assert.True(t, activated.HasUnsavedChanges)
	assert.Len(t, activated.Steps, 7)

	publisher.AssertExpectations(t)
}

func TestVersions_Activate_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		steps   []models.WorkflowStep
		patch   models.WorkflowPatch
		version int
		wantErr error
	}{
		{
			name:    "version zero",
			steps:   testutil.ForkedSteps(),
			version: 0,
			wantErr: ErrInvalidVersionNumber,
		},
		{
			name:    "unsaved version",
			steps:   testutil.ForkedSteps(),
			version: 2,
			wantErr: ErrVersionNotFound,
		},
		{
			name:    "no trigger segment",
			steps:   testutil.ForkedSteps(),
			patch:   models.WorkflowPatch{TriggerSegmentID: models.StringPtr("")},
			version: 1,
			wantErr: ErrTriggerSegmentRequired,
		},
		{
			name:    "no email",
			steps:   []models.WorkflowStep{testutil.Wait("w1", 1, 1, models.WaitUnitDay)},
			version: 1,
			wantErr: ErrEmailStepRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPersistence(t)
			seedWorkflow(t, p, tt.steps)

			if !tt.patch.Empty() {
				_, err := NewWorkflow(p).Patch(t.Context(), "wf-test", tt.patch)
				require.NoError(t, err)
			}

			service := NewVersions(p)

			_, err := service.Save(t.Context(), "wf-test")
			require.NoError(t, err)

			_, err = service.Activate(t.Context(), "wf-test", tt.version)
			require.ErrorIs(t, err, tt.wantErr)

			workflow, err := p.WorkflowRepository().GetByID(t.Context(), "wf-test")
			require.NoError(t, err)
			assert.Equal(t, models.WorkflowStatusDraft, workflow.Status)
			assert.Nil(t, workflow.ActiveVersion)
		})
	}
}

func TestVersions_Get(t *testing.T) {
	p := newPersistence(t)
	seedWorkflow(t, p, nil)
	service := NewVersions(p)

	_, err := service.Save(t.Context(), "wf-test")
	require.NoError(t, err)

	version, err := service.Get(t.Context(), "wf-test", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, version.Number)

	_, err = service.Get(t.Context(), "wf-test", 5)
	require.ErrorIs(t, err, ErrVersionNotFound)
	assert.Equal(t, "version 5 not found", Detail(err))
}

func TestCheckActivatable_Condition(t *testing.T) {
	steps := testutil.ForkedSteps()
	steps[2].Config.EvaluatedStepID = "e3"

	err := checkActivatable("activate", &models.WorkflowVersion{
		Settings: models.Settings{Name: "A", TriggerSegmentID: models.StringPtr("seg-1")},
		Steps:    steps,
	})

	require.ErrorIs(t, err, ErrInvalidCondition)
}
