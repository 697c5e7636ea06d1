package main

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/mono-send/send-smartly/pkg/client"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/persistence/file"
	"github.com/mono-send/send-smartly/pkg/reconcile"
	"github.com/mono-send/send-smartly/pkg/services"
	"github.com/mono-send/send-smartly/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	require.NoError(t, p.LookupRepository().ReplaceLookups(t.Context(), models.Lookups{
		Segments: []models.Segment{
			{ID: "seg-1", Name: "Newsletter", ContactCount: 12},
			{ID: "seg-2", Name: "Trial users", ContactCount: 3},
		},
		Categories: []models.ContactCategory{{ID: "cat-1", Name: "Product news"}},
		Senders:    []models.Sender{{ID: "s1", Name: "Sales", Email: "sales@example.com"}},
		Templates:  []models.Template{{ID: "t1", Name: "Welcome", Subject: "Hello"}},
	}))

	app := fiber.New()
	web.RegisterRoutes(app, web.NewAPIHandlers(
		services.NewWorkflow(p),
		services.NewSteps(p),
		services.NewVersions(p),
		services.NewLookups(p),
		validator.New(validator.WithRequiredStructEnabled()),
	))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	t.Cleanup(func() {
		_ = app.Shutdown()
	})

	return "http://" + ln.Addr().String()
}

// run executes the CLI against apiURL and returns what it printed.
func run(t *testing.T, apiURL string, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer

	command := newCommand()
	command.Writer = &stdout
	command.ErrWriter = io.Discard

	err := command.Run(t.Context(), append([]string{"sendsmartly", "--api-url", apiURL}, args...))

	return stdout.String(), err
}

func TestCLI_BuildAndActivate(t *testing.T) {
	url := startServer(t)

	id, err := run(t, url, "create", "--name", "Welcome", "--segment", "seg-1")
	require.NoError(t, err)
	id = strings.TrimSpace(id)
	require.NotEmpty(t, id)

	_, err = run(t, url, "add-email", "--sender", "s1", "--template", "t1", "--subject", "First", id)
	require.NoError(t, err)

	_, err = run(t, url, "add-email", "--sender", "s1", "--template", "t1", "--subject", "Second",
		"--wait", "3", "--unit", "day", id)
	require.NoError(t, err)

	_, err = run(t, url, "reorder", id, "1", "0")
	require.NoError(t, err)

	shown, err := run(t, url, "show", id)
	require.NoError(t, err)
	assert.Contains(t, shown, "Welcome")
	assert.Less(t, strings.Index(shown, `"Second"`), strings.Index(shown, `"First"`))
	assert.Contains(t, shown, "sales@example.com")
	assert.Contains(t, shown, "unsaved changes")

	_, err = run(t, url, "add-condition", "--type", "clicked", id)
	require.NoError(t, err)

	_, err = run(t, url, "add-email", "--branch", "no", "--sender", "s1", "--template", "t1", "--subject", "Nudge", id)
	require.NoError(t, err)

	shown, err = run(t, url, "show", id)
	require.NoError(t, err)
	assert.Contains(t, shown, "clicked")
	assert.Contains(t, shown, `"Nudge"`)

	saved, err := run(t, url, "save", "--name", "Welcome series", id)
	require.NoError(t, err)
	assert.Equal(t, "saved version 1\n", saved)

	activated, err := run(t, url, "activate", id)
	require.NoError(t, err)
	assert.Equal(t, "activated version 2\n", activated)

	listed, err := run(t, url, "list")
	require.NoError(t, err)
	assert.Contains(t, listed, "Welcome series")
	assert.Contains(t, listed, "active")

	versions, err := run(t, url, "versions", id)
	require.NoError(t, err)
	assert.Contains(t, versions, "Welcome series")
}

func TestCLI_EditStepsAndSettings(t *testing.T) {
	url := startServer(t)

	id, err := run(t, url, "create", "--name", "Trial", "--segment", "seg-1")
	require.NoError(t, err)
	id = strings.TrimSpace(id)

	_, err = run(t, url, "add-email", "--sender", "s1", "--template", "t1", "--subject", "First", id)
	require.NoError(t, err)

	c, err := client.New(url)
	require.NoError(t, err)

	workflow, err := c.GetWorkflow(t.Context(), id)
	require.NoError(t, err)
	require.Len(t, workflow.Steps, 1)
	emailID := workflow.Steps[0].ID

	_, err = run(t, url, "update-email", "--sender", "s1", "--template", "t1", "--subject", "Edited",
		"--wait", "2", "--unit", "hour", id, emailID)
	require.NoError(t, err)

	workflow, err = c.GetWorkflow(t.Context(), id)
	require.NoError(t, err)
	require.Len(t, workflow.Steps, 2)

	steps := models.SortedSteps(workflow.Steps)
	assert.Equal(t, models.StepTypeWait, steps[0].StepType)
	assert.Equal(t, 2, models.IntValue(steps[0].Config.WaitDuration))
	assert.Equal(t, models.WaitUnitHour, steps[0].Config.WaitUnit)
	assert.Equal(t, "Edited", steps[1].Config.SubjectOverride)

	_, err = run(t, url, "set-segment", id, "seg-2")
	require.NoError(t, err)

	workflow, err = c.GetWorkflow(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "seg-2", models.StringValue(workflow.TriggerSegmentID))

	_, err = run(t, url, "save", "--track-opens", "--exit", "removed", "--unsubscribe-category", "cat-1", id)
	require.NoError(t, err)

	workflow, err = c.GetWorkflow(t.Context(), id)
	require.NoError(t, err)
	assert.True(t, workflow.TrackOpens)
	assert.False(t, workflow.TrackClicks)
	assert.True(t, workflow.ExitOnSegmentLeave)
	assert.False(t, workflow.ExitOnAllEmails)
	assert.Equal(t, "cat-1", models.StringValue(workflow.UnsubscribeCategoryID))
	assert.Equal(t, "Trial", workflow.Name)

	_, err = run(t, url, "add-condition", id)
	require.NoError(t, err)

	_, err = run(t, url, "add-email", "--branch", "yes", "--sender", "s1", "--template", "t1", "--subject", "Thanks", id)
	require.NoError(t, err)

	_, err = run(t, url, "remove-branch-email", "--branch", "yes", id)
	require.NoError(t, err)

	shown, err := run(t, url, "show", id)
	require.NoError(t, err)
	assert.NotContains(t, shown, `"Thanks"`)

	_, err = run(t, url, "remove-condition", id)
	require.NoError(t, err)

	workflow, err = c.GetWorkflow(t.Context(), id)
	require.NoError(t, err)

	for _, step := range workflow.Steps {
		assert.NotEqual(t, models.StepTypeCondition, step.StepType)
	}

	_, err = run(t, url, "update-email", id)
	require.ErrorIs(t, err, errMissingEmailID)

	_, err = run(t, url, "save", "--exit", "never", id)
	require.Error(t, err)
}

func TestCLI_Lookups(t *testing.T) {
	printed, err := run(t, startServer(t), "lookups")
	require.NoError(t, err)

	assert.Contains(t, printed, "Newsletter")
	assert.Contains(t, printed, "sales@example.com")
	assert.Contains(t, printed, "Hello")
}

func TestCLI_Errors(t *testing.T) {
	url := startServer(t)

	_, err := run(t, url, "show")
	require.ErrorIs(t, err, errMissingWorkflowID)

	_, err = run(t, url, "show", "missing")
	require.Error(t, err)

	_, err = run(t, "ftp://example.com", "list")
	require.Error(t, err)
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name    string
		want    reconcile.ListKind
		wantErr bool
	}{
		{name: "", want: reconcile.ListMain},
		{name: "main", want: reconcile.ListMain},
		{name: "Merged", want: reconcile.ListMerged},
		{name: "branch", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseList(tt.name)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseBranch("maybe")
	require.Error(t, err)

	_, err = parseConditionType("bounced")
	require.Error(t, err)
}
