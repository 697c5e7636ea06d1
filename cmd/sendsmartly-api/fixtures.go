package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/services"
	"gopkg.in/yaml.v3"
)

func loadFixtures(path string) (models.Lookups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Lookups{}, fmt.Errorf("failed to read fixtures: %w", err)
	}

	var lookups models.Lookups
	if err := yaml.Unmarshal(data, &lookups); err != nil {
		return models.Lookups{}, fmt.Errorf("failed to parse fixtures %s: %w", path, err)
	}

	return lookups, nil
}

// seedFixtures replaces the stored segments, categories, senders and templates with
// the contents of a YAML file.
func seedFixtures(ctx context.Context, lookups *services.Lookups, path string) (models.Lookups, error) {
	fixtures, err := loadFixtures(path)
	if err != nil {
		return models.Lookups{}, err
	}

	if err := lookups.Replace(ctx, fixtures); err != nil {
		return models.Lookups{}, fmt.Errorf("failed to seed fixtures: %w", err)
	}

	return fixtures, nil
}
