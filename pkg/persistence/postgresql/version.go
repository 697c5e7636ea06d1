package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/persistence"
)

const uniqueViolation = "23505"

// VersionRepository stores saved snapshots as JSONB documents.
type VersionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewVersionRepository(db *sql.DB, logger *slog.Logger) *VersionRepository {
	return &VersionRepository{db: db, logger: logger}
}

func (r *VersionRepository) SaveVersion(ctx context.Context, version *models.WorkflowVersion) error {
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	settingsJSON, err := json.Marshal(version.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	stepsJSON, err := json.Marshal(version.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_versions (workflow_id, version_number, settings, steps, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, version.WorkflowID, version.Number, settingsJSON, stepsJSON, version.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewVersionError("SaveVersion", version.WorkflowID, version.Number, persistence.ErrVersionAlreadyExists)
		}

		return fmt.Errorf("failed to save version %d of workflow %s: %w", version.Number, version.WorkflowID, err)
	}

	return nil
}

func (r *VersionRepository) Versions(ctx context.Context, workflowID string) ([]*models.WorkflowVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT workflow_id, version_number, settings, steps, created_at
		FROM workflow_versions
		WHERE workflow_id = $1
		ORDER BY version_number DESC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions of workflow %s: %w", workflowID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	versions := make([]*models.WorkflowVersion, 0)

	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}

		versions = append(versions, version)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

func (r *VersionRepository) Version(ctx context.Context, workflowID string, number int) (*models.WorkflowVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT workflow_id, version_number, settings, steps, created_at
		FROM workflow_versions
		WHERE workflow_id = $1 AND version_number = $2
	`, workflowID, number)

	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewVersionError("Version", workflowID, number, persistence.ErrVersionNotFound)
		}

		return nil, err
	}

	return version, nil
}

func (r *VersionRepository) DeleteVersion(ctx context.Context, workflowID string, number int) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM workflow_versions WHERE workflow_id = $1 AND version_number = $2", workflowID, number)
	if err != nil {
		return fmt.Errorf("failed to delete version %d of workflow %s: %w", number, workflowID, err)
	}

	return nil
}

func scanVersion(row scanner) (*models.WorkflowVersion, error) {
	var (
		version      models.WorkflowVersion
		settingsJSON []byte
		stepsJSON    []byte
	)

	err := row.Scan(&version.WorkflowID, &version.Number, &settingsJSON, &stepsJSON, &version.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan version: %w", err)
	}

	err = json.Unmarshal(settingsJSON, &version.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	err = json.Unmarshal(stepsJSON, &version.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	return &version, nil
}
