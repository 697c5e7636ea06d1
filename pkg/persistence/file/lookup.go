package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/mono-send/send-smartly/pkg/models"
)

// LookupRepository keeps all lookup lists in a single lookups.json.
type LookupRepository struct {
	root string
	mu   sync.RWMutex
}

func NewLookupRepository(root string) *LookupRepository {
	return &LookupRepository{root: root}
}

func (lr *LookupRepository) Segments(_ context.Context) ([]models.Segment, error) {
	lookups, err := lr.load()

	return lookups.Segments, err
}

func (lr *LookupRepository) ContactCategories(_ context.Context) ([]models.ContactCategory, error) {
	lookups, err := lr.load()

	return lookups.Categories, err
}

func (lr *LookupRepository) Senders(_ context.Context) ([]models.Sender, error) {
	lookups, err := lr.load()

	return lookups.Senders, err
}

func (lr *LookupRepository) Templates(_ context.Context) ([]models.Template, error) {
	lookups, err := lr.load()

	return lookups.Templates, err
}

func (lr *LookupRepository) ReplaceLookups(_ context.Context, lookups models.Lookups) error {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	err := os.MkdirAll(lr.root, 0750)
	if err != nil {
		return fmt.Errorf("failed to create root directory: %w", err)
	}

	data, err := json.MarshalIndent(lookups, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lookups: %w", err)
	}

	return os.WriteFile(path.Join(lr.root, "lookups.json"), data, 0600)
}

func (lr *LookupRepository) load() (models.Lookups, error) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()

	lookups := models.Lookups{
		Segments:   []models.Segment{},
		Categories: []models.ContactCategory{},
		Senders:    []models.Sender{},
		Templates:  []models.Template{},
	}

	body, err := os.ReadFile(path.Join(lr.root, "lookups.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return lookups, nil
		}

		return lookups, fmt.Errorf("failed to read lookups: %w", err)
	}

	err = json.Unmarshal(body, &lookups)
	if err != nil {
		return lookups, fmt.Errorf("failed to unmarshal lookups: %w", err)
	}

	return lookups, nil
}
