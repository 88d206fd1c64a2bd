package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"rookery-counter/internal/catalog"
)

// SupportStore reads the reference tables loaded once at session start.
type SupportStore struct {
	db DBTX
}

// NewSupportStore creates a store bound to a database or transaction.
func NewSupportStore(db DBTX) *SupportStore {
	return &SupportStore{db: db}
}

// Categories loads a species' age/sex categories in display order.
func (s *SupportStore) Categories(ctx context.Context, species string) ([]catalog.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT species, animal_category, color_representation_large,
		       color_representation_small, count_category, description, display_order
		FROM support_age_sex_categories
		WHERE species = ?
		ORDER BY display_order, animal_category
	`, species)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories for %q: %w", species, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var cats []catalog.Category
	for rows.Next() {
		var c catalog.Category
		var large, small, desc sql.NullString
		var countable int
		if err := rows.Scan(&c.Species, &c.Name, &large, &small, &countable,
			&desc, &c.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.ColorLarge = large.String
		c.ColorSmall = small.String
		c.Countable = countable != 0
		c.Description = desc.String
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return cats, nil
}

// LocalSiteNames lists the named sub-areas of a survey site.
func (s *SupportStore) LocalSiteNames(ctx context.Context, site int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT local_site_name FROM support_local_sites
		WHERE site = ?
		ORDER BY local_site_id
	`, site)
	if err != nil {
		return nil, fmt.Errorf("failed to list local sites for site %d: %w", site, err)
	}
	return scanStrings(rows, "local sites")
}

// CountTypes lists the declared count types (photo sources).
func (s *SupportStore) CountTypes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type_id FROM support_count_type_id ORDER BY type_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list count types: %w", err)
	}
	return scanStrings(rows, "count types")
}
