package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/mono-send/send-smartly/pkg/lock"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/persistence"
	"github.com/mono-send/send-smartly/pkg/persistence/file"
	"github.com/mono-send/send-smartly/pkg/services"
	"github.com/mono-send/send-smartly/pkg/testutil"
	"github.com/mono-send/send-smartly/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app         *fiber.App
	persistence persistence.Persistence
	locker      *lock.MemoryLocker
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	require.NoError(t, p.LookupRepository().ReplaceLookups(t.Context(), models.Lookups{
		Segments:   []models.Segment{{ID: "seg-1", Name: "Newsletter"}},
		Categories: []models.ContactCategory{{ID: "cat-1", Name: "Marketing"}},
		Senders: []models.Sender{
			{ID: "s1", Name: "Sales", Email: "s1@example.com"},
			{ID: "s2", Name: "Support", Email: "s2@example.com"},
		},
		Templates: []models.Template{{ID: "t1", Name: "Welcome"}},
	}))

	locker := lock.NewMemoryLocker()
	opts := []services.Option{services.WithLocker(locker)}

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(p, opts...),
		services.NewSteps(p, opts...),
		services.NewVersions(p, opts...),
		services.NewLookups(p, opts...),
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	web.RegisterRoutes(app, handlers)

	return &testEnv{app: app, persistence: p, locker: locker}
}

func (e *testEnv) seed(t *testing.T, steps []models.WorkflowStep) {
	t.Helper()

	require.NoError(t, e.persistence.WorkflowRepository().Save(t.Context(), &models.Workflow{
		ID:               "wf-test",
		Name:             "Onboarding",
		Status:           models.WorkflowStatusDraft,
		TriggerSegmentID: models.StringPtr("seg-1"),
		Steps:            steps,
	}))
}

// do sends a request and decodes the JSON response into out when out is not nil.
func (e *testEnv) do(t *testing.T, method, target string, body any, out any) int {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}

	return resp.StatusCode
}

type problemBody struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		expectedDetail string
	}{
		{
			name:           "successful creation",
			requestBody:    models.CreateWorkflowRequest{Name: "Welcome", TriggerSegmentID: models.StringPtr("seg-1")},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "validation error - missing name",
			requestBody:    models.CreateWorkflowRequest{},
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Name",
		},
		{
			name:           "unknown segment",
			requestBody:    models.CreateWorkflowRequest{Name: "Welcome", TriggerSegmentID: models.StringPtr("ghost")},
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "segment 'ghost' does not exist",
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Invalid JSON format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)

			if tt.expectedStatus == http.StatusCreated {
				var workflow models.Workflow

				status := env.do(t, http.MethodPost, "/workflows", tt.requestBody, &workflow)
				require.Equal(t, tt.expectedStatus, status)

				assert.NotEmpty(t, workflow.ID)
				assert.Equal(t, "Welcome", workflow.Name)
				assert.Equal(t, models.WorkflowStatusDraft, workflow.Status)
				assert.Empty(t, workflow.Steps)

				return
			}

			var problem problemBody

			status := env.do(t, http.MethodPost, "/workflows", tt.requestBody, &problem)
			require.Equal(t, tt.expectedStatus, status)
			assert.Contains(t, problem.Detail, tt.expectedDetail)
		})
	}
}

func TestAPIHandlers_GetWorkflows(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	for _, name := range []string{"One", "Two", "Three"} {
		status := env.do(t, http.MethodPost, "/workflows", models.CreateWorkflowRequest{Name: name}, nil)
		require.Equal(t, http.StatusCreated, status)
		time.Sleep(time.Millisecond)
	}

	var list models.WorkflowList

	status := env.do(t, http.MethodGet, "/workflows?page=2&page_size=2", nil, &list)
	require.Equal(t, http.StatusOK, status)

	require.Len(t, list.Data, 1)
	assert.Equal(t, "One", list.Data[0].Name)
	assert.Equal(t, models.Pagination{Page: 2, PageSize: 2, Total: 3, TotalPages: 2}, list.Pagination)

	var problem problemBody

	status = env.do(t, http.MethodGet, "/workflows?page=abc", nil, &problem)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid query parameters: page must be an integer, got 'abc'", problem.Detail)

	status = env.do(t, http.MethodGet, "/workflows?status=deleted", nil, &problem)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid status 'deleted'", problem.Detail)
}

func TestAPIHandlers_GetWorkflow(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.seed(t, testutil.ForkedSteps())

	var workflow models.Workflow

	status := env.do(t, http.MethodGet, "/workflows/wf-test", nil, &workflow)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, workflow.Steps, 9)
	assert.Equal(t, "w1", workflow.Steps[0].ID)
	assert.Equal(t, models.BranchYes, workflow.Steps[3].BranchValue())

	var problem problemBody

	status = env.do(t, http.MethodGet, "/workflows/missing", nil, &problem)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", problem.Type)
	assert.Equal(t, "workflow not found", problem.Detail)
}

func TestAPIHandlers_PatchWorkflow(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.seed(t, nil)

	var workflow models.Workflow

	status := env.do(t, http.MethodPatch, "/workflows/wf-test", map[string]any{
		"name":                    "Renamed",
		"unsubscribe_category_id": "cat-1",
		"track_clicks":            true,
	}, &workflow)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "Renamed", workflow.Name)
	assert.Equal(t, "cat-1", models.StringValue(workflow.UnsubscribeCategoryID))
	assert.True(t, workflow.TrackClicks)
	assert.True(t, workflow.HasUnsavedChanges)

	var problem problemBody

	status = env.do(t, http.MethodPatch, "/workflows/wf-test", map[string]any{"trigger_segment_id": "ghost"}, &problem)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "segment 'ghost' does not exist", problem.Detail)
}

func TestAPIHandlers_PatchWorkflow_Locked(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.seed(t, nil)

	_, err := env.locker.TryAcquire(t.Context(), lock.WorkflowKey("wf-test"), time.Minute)
	require.NoError(t, err)

	var problem problemBody

	status := env.do(t, http.MethodPatch, "/workflows/wf-test", map[string]any{"track_opens": true}, &problem)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", problem.Type)
	assert.Equal(t, "workflow is being modified by another request, please retry", problem.Detail)
}

func TestAPIHandlers_DeleteWorkflow(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.seed(t, nil)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/workflows/wf-test", nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/workflows/wf-test", nil, nil))
}

func TestAPIHandlers_CreateStep(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.seed(t, []models.WorkflowStep{testutil.Email("e1", 1, "s1")})

	var step models.WorkflowStep

	status := env.do(t, http.MethodPost, "/workflows/wf-test/steps", map[string]any{
		"step_type":     "wait",
		"position":      1,
		"wait_duration": 3,
		"wait_unit":     "hour",
	}, &step)
	require.Equal(t, http.StatusCreated, status)

	assert.Equal(t, models.StepTypeWait, step.StepType)
	assert.Equal(t, 1, step.Position)
	assert.Equal(t, 3, *step.Config.WaitDuration)

	var workflow models.Workflow

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/workflows/wf-test", nil, &workflow))
	require.Len(t, workflow.Steps, 2)
	assert.Equal(t, "e1", workflow.Steps[1].ID)
	assert.Equal(t, 2, workflow.Steps[1].Position)
	assert.True(t, workflow.HasUnsavedChanges)

	var problem problemBody

	status = env.do(t, http.MethodPost, "/workflows/wf-test/steps", map[string]any{
		"step_type": "email",
		"position":  3,
	}, &problem)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, problem.Detail, "sender_id")

	status = env.do(t, http.MethodPost, "/workflows/wf-test/steps", map[string]any{
		"step_type": "sms",
		"position":  3,
	}, &problem)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, problem.Detail, "StepType")
}

func TestAPIHandlers_UpdateAndDeleteStep(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.seed(t, testutil.ForkedSteps())

	var step models.WorkflowStep

	status := env.do(t, http.MethodPatch, "/workflows/wf-test/steps/w4", models.UpdateStepRequest{
		Config: models.StepConfig{WaitDuration: models.IntPtr(45), WaitUnit: models.WaitUnitMinute},
	}, &step)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 45, *step.Config.WaitDuration)

	var remaining []models.WorkflowStep

	status = env.do(t, http.MethodDelete, "/workflows/wf-test/steps/c1", nil, &remaining)
	require.Equal(t, http.StatusOK, status)

	ids := make([]string, 0, len(remaining))
	for _, s := range remaining {
		ids = append(ids, s.ID)
	}

	assert.Equal(t, []string{"w1", "e1", "w4", "e4"}, ids)

	var problem problemBody

	status = env.do(t, http.MethodDelete, "/workflows/wf-test/steps/c1", nil, &problem)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "step not found", problem.Detail)
}

func TestAPIHandlers_ReorderSteps(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.seed(t, []models.WorkflowStep{
		testutil.Email("A", 1, "s1"),
		testutil.Email("B", 2, "s1"),
	})

	var steps []models.WorkflowStep

	status := env.do(t, http.MethodPut, "/workflows/wf-test/steps/reorder", models.ReorderRequest{
		Steps: []models.ReorderItem{{ID: "B", Position: 1}, {ID: "A", Position: 2}},
	}, &steps)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, steps, 2)
	assert.Equal(t, "B", steps[0].ID)
	assert.Equal(t, "A", steps[1].ID)

	var problem problemBody

	status = env.do(t, http.MethodPut, "/workflows/wf-test/steps/reorder", models.ReorderRequest{
		Steps: []models.ReorderItem{{ID: "B", Position: 2}},
	}, &problem)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, problem.Detail, "duplicate step position")

	status = env.do(t, http.MethodPut, "/workflows/wf-test/steps/reorder", map[string]any{"steps": []any{}}, &problem)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_SaveAndActivate(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.seed(t, testutil.ForkedSteps())

	var workflow models.Workflow

	status := env.do(t, http.MethodPost, "/workflows/wf-test/save", nil, &workflow)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, workflow.DraftVersion)
	assert.False(t, workflow.HasUnsavedChanges)

	status = env.do(t, http.MethodPost, "/workflows/wf-test/activate?version_number=1", nil, &workflow)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.WorkflowStatusActive, workflow.Status)
	require.NotNil(t, workflow.ActiveVersion)
	assert.Equal(t, 1, *workflow.ActiveVersion)

	var versions models.ListResponse[models.WorkflowVersion]

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/workflows/wf-test/versions", nil, &versions))
	require.Len(t, versions.Data, 1)
	assert.Len(t, versions.Data[0].Steps, 9)

	tests := []struct {
		target         string
		expectedStatus int
		expectedDetail string
	}{
		{"/workflows/wf-test/activate", http.StatusBadRequest, "version_number query parameter is required"},
		{"/workflows/wf-test/activate?version_number=x", http.StatusBadRequest, "version_number must be a positive integer"},
		{"/workflows/wf-test/activate?version_number=0", http.StatusBadRequest, "version_number must be a positive integer"},
		{"/workflows/wf-test/activate?version_number=7", http.StatusNotFound, "version 7 not found"},
	}

	for _, tt := range tests {
		var problem problemBody

		status := env.do(t, http.MethodPost, tt.target, nil, &problem)
		assert.Equal(t, tt.expectedStatus, status, tt.target)
		assert.Equal(t, tt.expectedDetail, problem.Detail, tt.target)
	}
}

func TestAPIHandlers_Lookups(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	var segments models.ListResponse[models.Segment]

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/segments", nil, &segments))
	assert.Equal(t, []models.Segment{{ID: "seg-1", Name: "Newsletter"}}, segments.Data)

	var senders models.ListResponse[models.Sender]

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/senders", nil, &senders))
	assert.Len(t, senders.Data, 2)

	var categories models.ListResponse[models.ContactCategory]

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/contact-categories", nil, &categories))
	assert.Len(t, categories.Data, 1)

	var templates models.ListResponse[models.Template]

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/templates", nil, &templates))
	assert.Len(t, templates.Data, 1)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	var health web.HealthResponse

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "Persistence layer is healthy", health.Checkers["repository"])
}
