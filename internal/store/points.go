package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"rookery-counter/internal/session"
)

// PointStore reads and writes marker records in both count tables.
type PointStore struct {
	db DBTX
}

// NewPointStore creates a store bound to a database or transaction.
func NewPointStore(db DBTX) *PointStore {
	return &PointStore{db: db}
}

const pointColumns = `r_year, site, r_date, time_start, creator, species,
	iLeft, iTop, file_name, count_type, observer, local_site,
	animal_category, datecreated, dateupdated`

// Create inserts a record. A primary-key collision surfaces as an error;
// the duplicate guard upstream should prevent it, but it is never swallowed.
func (s *PointStore) Create(ctx context.Context, kind Kind, rec PointRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+kind.table()+` (`+pointColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Year, rec.Site, rec.Date, rec.TimeStart, rec.Creator, rec.Species,
		rec.Left, rec.Top, rec.FileName, rec.CountType, rec.Observer,
		rec.LocalSite, rec.Category, rec.DateCreated, nullIfEmpty(rec.DateUpdated))
	if err != nil {
		return fmt.Errorf("failed to create %s record at (%d,%d): %w", kind, rec.Left, rec.Top, err)
	}
	return nil
}

// UpdatePosition moves a record to new coordinates. No-op when unchanged.
// On success the record's coordinates and update stamp are mutated in place.
func (s *PointStore) UpdatePosition(ctx context.Context, kind Kind, rec *PointRecord, left, top int) error {
	if rec.Left == left && rec.Top == top {
		return nil
	}
	stamp := Stamp(rec.Creator)
	_, err := s.db.ExecContext(ctx, `
		UPDATE `+kind.table()+`
		SET iLeft = ?, iTop = ?, dateupdated = ?
		WHERE r_year = ? AND site = ? AND r_date = ? AND time_start = ?
		  AND creator = ? AND species = ? AND iLeft = ? AND iTop = ?
		  AND file_name = ? AND count_type = ?
	`, left, top, stamp,
		rec.Year, rec.Site, rec.Date, rec.TimeStart, rec.Creator, rec.Species,
		rec.Left, rec.Top, rec.FileName, rec.CountType)
	if err != nil {
		return fmt.Errorf("failed to move %s record (%d,%d) -> (%d,%d): %w",
			kind, rec.Left, rec.Top, left, top, err)
	}
	rec.Left = left
	rec.Top = top
	rec.DateUpdated = stamp
	return nil
}

// UpdateCategory re-tags a record within the same kind. Kind changes
// (point <-> pattern) are a delete-and-create handled by the caller.
func (s *PointStore) UpdateCategory(ctx context.Context, kind Kind, rec *PointRecord, category string) error {
	if rec.Category == category {
		return nil
	}
	stamp := Stamp(rec.Creator)
	if err := s.updateField(ctx, kind, rec, "animal_category", category, stamp); err != nil {
		return fmt.Errorf("failed to change category of (%d,%d) to %q: %w", rec.Left, rec.Top, category, err)
	}
	rec.Category = category
	rec.DateUpdated = stamp
	return nil
}

// UpdateLocalSite moves a record to a different local site.
func (s *PointStore) UpdateLocalSite(ctx context.Context, kind Kind, rec *PointRecord, localSite string) error {
	if rec.LocalSite == localSite {
		return nil
	}
	stamp := Stamp(rec.Creator)
	if err := s.updateField(ctx, kind, rec, "local_site", localSite, stamp); err != nil {
		return fmt.Errorf("failed to change local site of (%d,%d) to %q: %w", rec.Left, rec.Top, localSite, err)
	}
	rec.LocalSite = localSite
	rec.DateUpdated = stamp
	return nil
}

func (s *PointStore) updateField(ctx context.Context, kind Kind, rec *PointRecord, column, value, stamp string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE `+kind.table()+`
		SET `+column+` = ?, dateupdated = ?
		WHERE r_year = ? AND site = ? AND r_date = ? AND time_start = ?
		  AND creator = ? AND species = ? AND iLeft = ? AND iTop = ?
		  AND file_name = ? AND count_type = ?
	`, value, stamp,
		rec.Year, rec.Site, rec.Date, rec.TimeStart, rec.Creator, rec.Species,
		rec.Left, rec.Top, rec.FileName, rec.CountType)
	return err
}

// Delete removes a record by its natural key.
func (s *PointStore) Delete(ctx context.Context, kind Kind, rec PointRecord) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM `+kind.table()+`
		WHERE r_year = ? AND site = ? AND r_date = ? AND time_start = ?
		  AND creator = ? AND species = ? AND iLeft = ? AND iTop = ?
		  AND file_name = ? AND count_type = ?
	`, rec.Year, rec.Site, rec.Date, rec.TimeStart, rec.Creator, rec.Species,
		rec.Left, rec.Top, rec.FileName, rec.CountType)
	if err != nil {
		return fmt.Errorf("failed to delete %s record at (%d,%d): %w", kind, rec.Left, rec.Top, err)
	}
	return nil
}

// ForFile lists the records of one kind for a photo within the survey scope.
func (s *PointStore) ForFile(ctx context.Context, kind Kind, sv session.Survey, file string) ([]PointRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pointColumns+` FROM `+kind.table()+`
		WHERE r_year = ? AND site = ? AND r_date = ? AND time_start = ?
		  AND creator = ? AND species = ? AND file_name = ? AND count_type = ?
		ORDER BY iTop, iLeft
	`, sv.Year, sv.Site, sv.Date, sv.TimeStart, sv.Creator, sv.Species, file, sv.CountType)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", kind, err)
	}
	return scanRecords(rows)
}

// AllForFile lists point and pattern records together, the resident set
// the duplicate and sentinel rules are checked against.
func (s *PointStore) AllForFile(ctx context.Context, sv session.Survey, file string) ([]PointRecord, []PointRecord, error) {
	points, err := s.ForFile(ctx, KindPoint, sv, file)
	if err != nil {
		return nil, nil, err
	}
	patterns, err := s.ForFile(ctx, KindPattern, sv, file)
	if err != nil {
		return nil, nil, err
	}
	return points, patterns, nil
}

// OtherSpecies lists records on the same photo made for other species
// under the same survey day. These render as read-only ghosts.
func (s *PointStore) OtherSpecies(ctx context.Context, kind Kind, sv session.Survey, file string) ([]PointRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pointColumns+` FROM `+kind.table()+`
		WHERE r_year = ? AND site = ? AND r_date = ? AND time_start = ?
		  AND creator = ? AND species <> ? AND file_name = ? AND count_type = ?
		ORDER BY species, iTop, iLeft
	`, sv.Year, sv.Site, sv.Date, sv.TimeStart, sv.Creator, sv.Species, file, sv.CountType)
	if err != nil {
		return nil, fmt.Errorf("failed to list other-species %s records: %w", kind, err)
	}
	return scanRecords(rows)
}

// CountsForFile tallies records per category for one photo, used to prime
// the completion tracker when a photo is opened.
func (s *PointStore) CountsForFile(ctx context.Context, sv session.Survey, file string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, kind := range []Kind{KindPoint, KindPattern} {
		rows, err := s.db.QueryContext(ctx, `
			SELECT animal_category, COUNT(*) FROM `+kind.table()+`
			WHERE r_year = ? AND site = ? AND r_date = ? AND time_start = ?
			  AND creator = ? AND species = ? AND file_name = ? AND count_type = ?
			GROUP BY animal_category
		`, sv.Year, sv.Site, sv.Date, sv.TimeStart, sv.Creator, sv.Species, file, sv.CountType)
		if err != nil {
			return nil, fmt.Errorf("failed to tally %s records: %w", kind, err)
		}
		for rows.Next() {
			var cat string
			var n int
			if err := rows.Scan(&cat, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan tally: %w", err)
			}
			counts[cat] += n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating tally: %w", err)
		}
		rows.Close()
	}
	return counts, nil
}

func scanRecords(rows *sql.Rows) ([]PointRecord, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var recs []PointRecord
	for rows.Next() {
		var r PointRecord
		var observer, created, updated sql.NullString
		if err := rows.Scan(&r.Year, &r.Site, &r.Date, &r.TimeStart, &r.Creator,
			&r.Species, &r.Left, &r.Top, &r.FileName, &r.CountType, &observer,
			&r.LocalSite, &r.Category, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Observer = observer.String
		r.DateCreated = created.String
		r.DateUpdated = updated.String
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return recs, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
