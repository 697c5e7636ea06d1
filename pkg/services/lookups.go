package services

import (
	"context"
	"fmt"

	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/persistence"
)

// Lookups serves the selector lists of the editor.
type Lookups struct {
	base
}

func NewLookups(p persistence.Persistence, opts ...Option) *Lookups {
	return &Lookups{base: newBase(p, opts)}
}

func (l *Lookups) Segments(ctx context.Context) ([]models.Segment, error) {
	return orEmpty(l.persistence.LookupRepository().Segments(ctx))
}

func (l *Lookups) ContactCategories(ctx context.Context) ([]models.ContactCategory, error) {
	return orEmpty(l.persistence.LookupRepository().ContactCategories(ctx))
}

func (l *Lookups) Senders(ctx context.Context) ([]models.Sender, error) {
	return orEmpty(l.persistence.LookupRepository().Senders(ctx))
}

func (l *Lookups) Templates(ctx context.Context) ([]models.Template, error) {
	return orEmpty(l.persistence.LookupRepository().Templates(ctx))
}

// Replace overwrites every lookup list, used when seeding fixtures.
func (l *Lookups) Replace(ctx context.Context, lookups models.Lookups) error {
	if err := l.persistence.LookupRepository().ReplaceLookups(ctx, lookups); err != nil {
		return fmt.Errorf("failed to replace lookups: %w", err)
	}

	l.logger.InfoContext(ctx, "lookups replaced",
		"segments", len(lookups.Segments),
		"categories", len(lookups.Categories),
		"senders", len(lookups.Senders),
		"templates", len(lookups.Templates))

	return nil
}

func orEmpty[T any](items []T, err error) ([]T, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to load lookups: %w", err)
	}

	if items == nil {
		items = []T{}
	}

	return items, nil
}
