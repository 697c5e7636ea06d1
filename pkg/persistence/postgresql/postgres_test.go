package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/persistence"
	"github.com/mono-send/send-smartly/pkg/persistence/postgresql"
	"github.com/mono-send/send-smartly/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{
		"workflow_versions", "workflow_steps", "workflows",
		"segments", "contact_categories", "senders", "templates",
		"schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("sendsmartly_test"),
			postgres.WithUsername("sendsmartly"),
			postgres.WithPassword("sendsmartly"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"workflows", "workflow_steps", "workflow_versions", "segments", "senders"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := &models.Workflow{
		Name:               "Onboarding",
		Status:             models.WorkflowStatusDraft,
		TriggerSegmentID:   models.StringPtr("seg-1"),
		TrackOpens:         true,
		ExitOnSegmentLeave: true,
		DraftVersion:       2,
		ActiveVersion:      models.IntPtr(1),
		Stats:              models.WorkflowStats{Enrolled: 10, Completed: 3},
		Steps:              testutil.ForkedSteps(),
	}

	require.NoError(t, repo.Save(ctx, workflow))
	require.NotEmpty(t, workflow.ID)

	fetched, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, "Onboarding", fetched.Name)
	assert.Equal(t, "seg-1", *fetched.TriggerSegmentID)
	assert.Nil(t, fetched.UnsubscribeCategoryID)
	assert.True(t, fetched.TrackOpens)
	assert.True(t, fetched.ExitOnSegmentLeave)
	assert.Equal(t, 1, *fetched.ActiveVersion)
	assert.Equal(t, 2, fetched.DraftVersion)
	assert.Equal(t, 10, fetched.Stats.Enrolled)

	require.Len(t, fetched.Steps, 9)
	assert.Equal(t, "w1", fetched.Steps[0].ID)
	assert.Equal(t, workflow.ID, fetched.Steps[0].WorkflowID)
	assert.Equal(t, models.WaitUnitDay, fetched.Steps[0].Config.WaitUnit)

	yes := fetched.Steps[4]
	assert.Equal(t, "e2", yes.ID)
	assert.Equal(t, "c1", *yes.ParentStepID)
	assert.Equal(t, models.BranchYes, *yes.Branch)

	workflow.Steps = workflow.Steps[:2]
	workflow.Name = "Renamed"
	require.NoError(t, repo.Save(ctx, workflow))

	fetched, err = repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fetched.Name)
	assert.Len(t, fetched.Steps, 2)
}

func TestWorkflowRepository_GetByID_NotFound(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	_, err := p.WorkflowRepository().GetByID(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_ListAndDelete(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	for _, name := range []string{"B", "A", "C"} {
		status := models.WorkflowStatusDraft
		if name == "A" {
			status = models.WorkflowStatusActive
		}

		require.NoError(t, repo.Save(ctx, &models.Workflow{ID: "wf-" + name, Name: name, Status: status}))
	}

	result, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{Limit: 2, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, result.Workflows, 2)
	assert.Equal(t, "A", result.Workflows[0].Name)
	assert.Equal(t, int64(3), result.TotalCount)
	assert.True(t, result.HasNextPage)

	active := models.WorkflowStatusActive

	result, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{Status: &active})
	require.NoError(t, err)
	require.Len(t, result.Workflows, 1)
	assert.Equal(t, "wf-A", result.Workflows[0].ID)

	require.NoError(t, repo.Delete(ctx, "wf-A"))

	_, err = repo.GetByID(ctx, "wf-A")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestVersionRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	require.NoError(t, p.WorkflowRepository().Save(ctx, &models.Workflow{ID: "wf-1", Name: "V", Status: models.WorkflowStatusDraft}))

	repo := p.VersionRepository()

	for number := 1; number <= 2; number++ {
		require.NoError(t, repo.SaveVersion(ctx, &models.WorkflowVersion{
			WorkflowID: "wf-1",
			Number:     number,
			Settings:   models.Settings{Name: "V", TrackClicks: true},
			Steps:      []models.WorkflowStep{testutil.Email("e1", 1, "s1")},
		}))
	}

	err := repo.SaveVersion(ctx, &models.WorkflowVersion{WorkflowID: "wf-1", Number: 1})
	assert.ErrorIs(t, err, persistence.ErrVersionAlreadyExists)

	versions, err := repo.Versions(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Number)
	assert.True(t, versions[0].Settings.TrackClicks)
	assert.Equal(t, "e1", versions[0].Steps[0].ID)

	require.NoError(t, repo.DeleteVersion(ctx, "wf-1", 1))

	_, err = repo.Version(ctx, "wf-1", 1)
	assert.True(t, persistence.IsVersionNotFound(err))
}

func TestLookupRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.LookupRepository()

	require.NoError(t, repo.ReplaceLookups(ctx, models.Lookups{
		Segments:   []models.Segment{{ID: "seg-2", Name: "Trial", ContactCount: 5}, {ID: "seg-1", Name: "Customers"}},
		Categories: []models.ContactCategory{{ID: "cat-1", Name: "Product"}},
		Senders:    []models.Sender{{ID: "s1", Name: "Ana", Email: "ana@example.com"}},
		Templates:  []models.Template{{ID: "t1", Name: "Welcome", Subject: "Hello"}},
	}))

	segments, err := repo.Segments(ctx)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "Customers", segments[0].Name)

	categories, err := repo.ContactCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)

	senders, err := repo.Senders(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", senders[0].Email)

	templates, err := repo.Templates(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello", templates[0].Subject)
}
