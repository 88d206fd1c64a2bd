package store

import (
	"context"
	"fmt"

	"rookery-counter/internal/session"
)

// SourceStore registers photos under the survey scope. Count records hold
// a cascading foreign key to these rows, so a photo must be registered
// before a marker on it can be persisted.
type SourceStore struct {
	db DBTX
}

// NewSourceStore creates a store bound to a database or transaction.
func NewSourceStore(db DBTX) *SourceStore {
	return &SourceStore{db: db}
}

// Ensure registers a photo, ignoring one already registered.
func (s *SourceStore) Ensure(ctx context.Context, sv session.Survey, file string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO count_source
		(r_year, site, r_date, time_start, creator, species, file_name, count_type, observer, datecreated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sv.Year, sv.Site, sv.Date, sv.TimeStart, sv.Creator, sv.Species, file,
		sv.CountType, sv.Observer, Stamp(sv.Creator))
	if err != nil {
		return fmt.Errorf("failed to register photo %q: %w", file, err)
	}
	return nil
}

// Files lists the photos registered for the survey scope, in name order.
func (s *SourceStore) Files(ctx context.Context, sv session.Survey) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name FROM count_source
		WHERE r_year = ? AND site = ? AND r_date = ? AND time_start = ?
		  AND creator = ? AND species = ? AND count_type = ?
		ORDER BY file_name
	`, sv.Year, sv.Site, sv.Date, sv.TimeStart, sv.Creator, sv.Species, sv.CountType)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return scanStrings(rows, "photos")
}
