// Package store is the persistence boundary for survey count records.
// Every write goes through one of the stores here; nothing else touches SQL.
package store

import (
	"context"
	"database/sql"
	"time"

	"rookery-counter/internal/catalog"
	"rookery-counter/internal/session"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx. The hosting window owns
// one transaction per photo-editing session and binds stores to it; the
// stores never begin or commit transactions themselves.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Kind selects which count table a record lives in.
type Kind int

const (
	KindPoint Kind = iota
	KindPattern
)

// KindFor returns the record kind for a category name.
func KindFor(category string) Kind {
	if catalog.IsPattern(category) {
		return KindPattern
	}
	return KindPoint
}

func (k Kind) table() string {
	if k == KindPattern {
		return "count_patternscount"
	}
	return "count_pointscount"
}

// String names the kind for logs and completion notifications.
func (k Kind) String() string {
	if k == KindPattern {
		return "pattern"
	}
	return "point"
}

// PointRecord is one persisted marker. The survey columns plus
// (Left, Top, FileName, CountType) form the natural key.
type PointRecord struct {
	Year      int
	Site      int
	Date      int
	TimeStart string
	Creator   string
	Species   string
	FileName  string
	CountType string
	LocalSite string
	Category  string
	Left      int
	Top       int
	Observer  string

	DateCreated string
	DateUpdated string
}

// NewPointRecord builds a record for the given survey scope with a fresh
// creation stamp.
func NewPointRecord(sv session.Survey, file string, left, top int, localSite, category string) PointRecord {
	return PointRecord{
		Year:        sv.Year,
		Site:        sv.Site,
		Date:        sv.Date,
		TimeStart:   sv.TimeStart,
		Creator:     sv.Creator,
		Species:     sv.Species,
		FileName:    file,
		CountType:   sv.CountType,
		LocalSite:   localSite,
		Category:    category,
		Left:        left,
		Top:         top,
		Observer:    sv.Observer,
		DateCreated: Stamp(sv.Creator),
	}
}

// IsSentinel reports whether the record is a reviewed-but-empty marker.
func (r PointRecord) IsSentinel() bool {
	return r.Left == catalog.SentinelPosition && r.Top == catalog.SentinelPosition &&
		catalog.IsSentinel(r.Category)
}

// Stamp formats the creation/update timestamp: local time plus the
// creator id, e.g. "2026-08-15 09:30:00 amr".
func Stamp(creator string) string {
	return time.Now().Format("2006-01-02 15:04:05") + " " + creator
}
