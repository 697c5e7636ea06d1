package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mono-send/send-smartly/pkg/models"
)

// LookupRepository reads the selector lists from their own tables.
type LookupRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLookupRepository(db *sql.DB, logger *slog.Logger) *LookupRepository {
	return &LookupRepository{db: db, logger: logger}
}

func (r *LookupRepository) Segments(ctx context.Context) ([]models.Segment, error) {
	return queryList(ctx, r, "SELECT id, name, contact_count FROM segments ORDER BY name",
		func(rows *sql.Rows) (models.Segment, error) {
			var s models.Segment
			err := rows.Scan(&s.ID, &s.Name, &s.ContactCount)

			return s, err
		})
}

func (r *LookupRepository) ContactCategories(ctx context.Context) ([]models.ContactCategory, error) {
	return queryList(ctx, r, "SELECT id, name FROM contact_categories ORDER BY name",
		func(rows *sql.Rows) (models.ContactCategory, error) {
			var c models.ContactCategory
			err := rows.Scan(&c.ID, &c.Name)

			return c, err
		})
}

func (r *LookupRepository) Senders(ctx context.Context) ([]models.Sender, error) {
	return queryList(ctx, r, "SELECT id, name, email FROM senders ORDER BY name",
		func(rows *sql.Rows) (models.Sender, error) {
			var s models.Sender
			err := rows.Scan(&s.ID, &s.Name, &s.Email)

			return s, err
		})
}

func (r *LookupRepository) Templates(ctx context.Context) ([]models.Template, error) {
	return queryList(ctx, r, "SELECT id, name, subject FROM templates ORDER BY name",
		func(rows *sql.Rows) (models.Template, error) {
			var t models.Template
			err := rows.Scan(&t.ID, &t.Name, &t.Subject)

			return t, err
		})
}

// ReplaceLookups truncates and refills every lookup table in one transaction.
func (r *LookupRepository) ReplaceLookups(ctx context.Context, lookups models.Lookups) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "TRUNCATE segments, contact_categories, senders, templates")
	if err != nil {
		return fmt.Errorf("failed to truncate lookups: %w", err)
	}

	for _, s := range lookups.Segments {
		_, err = tx.ExecContext(ctx, "INSERT INTO segments (id, name, contact_count) VALUES ($1, $2, $3)", s.ID, s.Name, s.ContactCount)
		if err != nil {
			return fmt.Errorf("failed to insert segment %s: %w", s.ID, err)
		}
	}

	for _, c := range lookups.Categories {
		_, err = tx.ExecContext(ctx, "INSERT INTO contact_categories (id, name) VALUES ($1, $2)", c.ID, c.Name)
		if err != nil {
			return fmt.Errorf("failed to insert contact category %s: %w", c.ID, err)
		}
	}

	for _, s := range lookups.Senders {
		_, err = tx.ExecContext(ctx, "INSERT INTO senders (id, name, email) VALUES ($1, $2, $3)", s.ID, s.Name, s.Email)
		if err != nil {
			return fmt.Errorf("failed to insert sender %s: %w", s.ID, err)
		}
	}

	for _, t := range lookups.Templates {
		_, err = tx.ExecContext(ctx, "INSERT INTO templates (id, name, subject) VALUES ($1, $2, $3)", t.ID, t.Name, t.Subject)
		if err != nil {
			return fmt.Errorf("failed to insert template %s: %w", t.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit lookups: %w", err)
	}

	return nil
}

func queryList[T any](ctx context.Context, r *LookupRepository, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lookups: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	out := make([]T, 0)

	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lookup: %w", err)
		}

		out = append(out, item)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating lookups: %w", err)
	}

	return out, nil
}
