package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"rookery-counter/internal/session"
)

// EffortStore reads the day's declared survey coverage. The annotation
// workflow validates against it but never writes it; the effort editor does.
type EffortStore struct {
	db DBTX
}

// NewEffortStore creates a store bound to a database or transaction.
func NewEffortStore(db DBTX) *EffortStore {
	return &EffortStore{db: db}
}

// LocalSites lists the local sites declared for the survey's count type.
func (s *EffortStore) LocalSites(ctx context.Context, sv session.Survey) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT local_site FROM count_effort_sites
		WHERE r_year = ? AND site = ? AND r_date = ? AND time_start = ?
		  AND creator = ? AND species = ? AND count_type = ?
		ORDER BY local_site
	`, sv.Year, sv.Site, sv.Date, sv.TimeStart, sv.Creator, sv.Species, sv.CountType)
	if err != nil {
		return nil, fmt.Errorf("failed to list effort sites: %w", err)
	}
	return scanStrings(rows, "effort sites")
}

// HasLocalSite reports whether localSite was declared for the count type.
func (s *EffortStore) HasLocalSite(ctx context.Context, sv session.Survey, localSite string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM count_effort_sites
		WHERE r_year = ? AND site = ? AND r_date = ? AND time_start = ?
		  AND creator = ? AND species = ? AND count_type = ? AND local_site = ?
	`, sv.Year, sv.Site, sv.Date, sv.TimeStart, sv.Creator, sv.Species, sv.CountType, localSite).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check effort site %q: %w", localSite, err)
	}
	return n > 0, nil
}

// Categories lists the animal categories declared for the count type,
// driving the category button bar.
func (s *EffortStore) Categories(ctx context.Context, sv session.Survey) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT animal_category FROM count_effort_categories
		WHERE r_year = ? AND site = ? AND r_date = ? AND time_start = ?
		  AND creator = ? AND species = ? AND count_type = ?
		ORDER BY animal_category
	`, sv.Year, sv.Site, sv.Date, sv.TimeStart, sv.Creator, sv.Species, sv.CountType)
	if err != nil {
		return nil, fmt.Errorf("failed to list effort categories: %w", err)
	}
	return scanStrings(rows, "effort categories")
}

// DeclareLocalSite records that a local site was surveyed. Used by the
// effort editor; ignores an already-declared site.
func (s *EffortStore) DeclareLocalSite(ctx context.Context, sv session.Survey, localSite string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO count_effort_sites
		(r_year, site, r_date, time_start, creator, species, observer, local_site, count_type, datecreated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sv.Year, sv.Site, sv.Date, sv.TimeStart, sv.Creator, sv.Species, sv.Observer,
		localSite, sv.CountType, Stamp(sv.Creator))
	if err != nil {
		return fmt.Errorf("failed to declare effort site %q: %w", localSite, err)
	}
	return nil
}

// DeclareCategory records that a category was covered by the day's effort.
func (s *EffortStore) DeclareCategory(ctx context.Context, sv session.Survey, category string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO count_effort_categories
		(r_year, site, r_date, time_start, creator, species, observer, animal_category, count_type, datecreated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sv.Year, sv.Site, sv.Date, sv.TimeStart, sv.Creator, sv.Species, sv.Observer,
		category, sv.CountType, Stamp(sv.Creator))
	if err != nil {
		return fmt.Errorf("failed to declare effort category %q: %w", category, err)
	}
	return nil
}

// RenameLocalSite renames a declared site; the schema trigger propagates
// the rename into existing count rows.
func (s *EffortStore) RenameLocalSite(ctx context.Context, sv session.Survey, from, to string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE count_effort_sites SET local_site = ?
		WHERE r_year = ? AND site = ? AND r_date = ? AND time_start = ?
		  AND creator = ? AND species = ? AND count_type = ? AND local_site = ?
	`, to, sv.Year, sv.Site, sv.Date, sv.TimeStart, sv.Creator, sv.Species, sv.CountType, from)
	if err != nil {
		return fmt.Errorf("failed to rename effort site %q to %q: %w", from, to, err)
	}
	return nil
}

func scanStrings(rows *sql.Rows, what string) ([]string, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}
	return out, nil
}
