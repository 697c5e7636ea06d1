package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/persistence"
)

// VersionRepository keeps each snapshot in versions/<workflow id>/<number>.json.
type VersionRepository struct {
	root string
	mu   sync.RWMutex
}

func NewVersionRepository(root string) *VersionRepository {
	return &VersionRepository{root: root}
}

func (vr *VersionRepository) SaveVersion(_ context.Context, version *models.WorkflowVersion) error {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	dir := path.Join(vr.root, "versions", version.WorkflowID)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create versions directory: %w", err)
	}

	filePath := vr.filePath(version.WorkflowID, version.Number)
	if _, err := os.Stat(filePath); err == nil {
		return persistence.NewVersionError("SaveVersion", version.WorkflowID, version.Number, persistence.ErrVersionAlreadyExists)
	}

	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(version, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal version %d of workflow %s: %w", version.Number, version.WorkflowID, err)
	}

	return os.WriteFile(filePath, data, 0600)
}

func (vr *VersionRepository) Versions(_ context.Context, workflowID string) ([]*models.WorkflowVersion, error) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()

	root := os.DirFS(path.Join(vr.root, "versions", workflowID))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list version files: %w", err)
	}

	versions := make([]*models.WorkflowVersion, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		number, err := strconv.Atoi(strings.TrimSuffix(file, ".json"))
		if err != nil {
			continue
		}

		version, err := vr.read(workflowID, number)
		if err != nil {
			return nil, err
		}

		versions = append(versions, version)
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Number > versions[j].Number
	})

	return versions, nil
}

func (vr *VersionRepository) Version(_ context.Context, workflowID string, number int) (*models.WorkflowVersion, error) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()

	return vr.read(workflowID, number)
}

func (vr *VersionRepository) DeleteVersion(_ context.Context, workflowID string, number int) error {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	err := os.Remove(vr.filePath(workflowID, number))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete version %d of workflow %s: %w", number, workflowID, err)
	}

	return nil
}

func (vr *VersionRepository) read(workflowID string, number int) (*models.WorkflowVersion, error) {
	body, err := os.ReadFile(vr.filePath(workflowID, number))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewVersionError("Version", workflowID, number, persistence.ErrVersionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch version %d of workflow %s: %w", number, workflowID, err)
	}

	var version models.WorkflowVersion

	err = json.Unmarshal(body, &version)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal version %d of workflow %s: %w", number, workflowID, err)
	}

	return &version, nil
}

func (vr *VersionRepository) filePath(workflowID string, number int) string {
	return filepath.Clean(path.Join(vr.root, "versions", workflowID, strconv.Itoa(number)+".json"))
}
