package services

import (
	"context"
	"testing"
	"time"

	"github.com/mono-send/send-smartly/pkg/eventbus"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/persistence"
	"github.com/mono-send/send-smartly/pkg/persistence/file"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func testLookups() models.Lookups {
	return models.Lookups{
		Segments:   []models.Segment{{ID: "seg-1", Name: "Newsletter", ContactCount: 120}},
		Categories: []models.ContactCategory{{ID: "cat-1", Name: "Marketing"}},
		Senders: []models.Sender{
			{ID: "s1", Name: "Sales", Email: "s1@example.com"},
			{ID: "s2", Name: "Support", Email: "s2@example.com"},
		},
		Templates: []models.Template{{ID: "t1", Name: "Welcome", Subject: "Hello"}},
	}
}

// newPersistence returns file persistence in a temp dir with the test lookups loaded.
func newPersistence(t *testing.T) persistence.Persistence {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	require.NoError(t, p.LookupRepository().ReplaceLookups(t.Context(), testLookups()))

	return p
}

// seedWorkflow stores workflow wf-test with the given steps.
func seedWorkflow(t *testing.T, p persistence.Persistence, steps []models.WorkflowStep) *models.Workflow {
	t.Helper()

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:               "wf-test",
		Name:             "Onboarding",
		Status:           models.WorkflowStatusDraft,
		TriggerSegmentID: models.StringPtr("seg-1"),
		Steps:            steps,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	require.NoError(t, p.WorkflowRepository().Save(t.Context(), workflow))

	return workflow
}

func storedSteps(t *testing.T, p persistence.Persistence) []models.WorkflowStep {
	t.Helper()

	workflow, err := p.WorkflowRepository().GetByID(t.Context(), "wf-test")
	require.NoError(t, err)

	return workflow.Steps
}

func positions(steps []models.WorkflowStep) map[string]int {
	out := make(map[string]int, len(steps))
	for _, step := range steps {
		out[step.ID] = step.Position
	}

	return out
}
