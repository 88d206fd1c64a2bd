package store

import (
	"context"
	"database/sql"
	"testing"

	"rookery-counter/internal/catalog"
	"rookery-counter/internal/db"
	"rookery-counter/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSurvey() session.Survey {
	return session.Survey{
		Year:      2026,
		Site:      3,
		Date:      20260815,
		TimeStart: "093000",
		Creator:   "amr",
		Species:   "Harbor Seal",
		Observer:  "KD",
		CountType: "Ground",
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// seedPhoto registers a photo so count rows satisfy the source foreign key.
func seedPhoto(t *testing.T, conn *sql.DB, sv session.Survey, file string) {
	t.Helper()
	require.NoError(t, NewSourceStore(conn).Ensure(context.Background(), sv, file))
}

func TestCreateAndListRecords(t *testing.T) {
	conn := openTestDB(t)
	sv := testSurvey()
	seedPhoto(t, conn, sv, "IMG_0001.JPG")
	points := NewPointStore(conn)
	ctx := context.Background()

	rec := NewPointRecord(sv, "IMG_0001.JPG", 120, 80, "B3", "Pup")
	require.NoError(t, points.Create(ctx, KindPoint, rec))

	got, err := points.ForFile(ctx, KindPoint, sv, "IMG_0001.JPG")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 120, got[0].Left)
	assert.Equal(t, 80, got[0].Top)
	assert.Equal(t, "Pup", got[0].Category)
	assert.Equal(t, "B3", got[0].LocalSite)
	assert.Contains(t, got[0].DateCreated, sv.Creator)
	assert.Empty(t, got[0].DateUpdated)
}

func TestCreateDuplicateKeyFails(t *testing.T) {
	conn := openTestDB(t)
	sv := testSurvey()
	seedPhoto(t, conn, sv, "a.jpg")
	points := NewPointStore(conn)
	ctx := context.Background()

	rec := NewPointRecord(sv, "a.jpg", 10, 10, "B3", "Adult")
	require.NoError(t, points.Create(ctx, KindPoint, rec))

	// Same coordinates, different category: the composite key collides and
	// the constraint violation must surface, not be swallowed.
	dup := NewPointRecord(sv, "a.jpg", 10, 10, "B3", "Pup")
	err := points.Create(ctx, KindPoint, dup)
	assert.Error(t, err)
}

func TestUpdatePosition(t *testing.T) {
	conn := openTestDB(t)
	sv := testSurvey()
	seedPhoto(t, conn, sv, "a.jpg")
	points := NewPointStore(conn)
	ctx := context.Background()

	rec := NewPointRecord(sv, "a.jpg", 50, 50, "B3", "Adult")
	require.NoError(t, points.Create(ctx, KindPoint, rec))

	require.NoError(t, points.UpdatePosition(ctx, KindPoint, &rec, 60, 70))
	assert.Equal(t, 60, rec.Left)
	assert.Equal(t, 70, rec.Top)
	assert.NotEmpty(t, rec.DateUpdated)

	got, err := points.ForFile(ctx, KindPoint, sv, "a.jpg")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 60, got[0].Left)
	assert.Equal(t, 70, got[0].Top)

	// Unchanged coordinates are a no-op and leave the update stamp alone.
	before := rec.DateUpdated
	require.NoError(t, points.UpdatePosition(ctx, KindPoint, &rec, 60, 70))
	assert.Equal(t, before, rec.DateUpdated)
}

func TestDelete(t *testing.T) {
	conn := openTestDB(t)
	sv := testSurvey()
	seedPhoto(t, conn, sv, "a.jpg")
	points := NewPointStore(conn)
	ctx := context.Background()

	rec := NewPointRecord(sv, "a.jpg", 5, 5, "B3", "Adult")
	require.NoError(t, points.Create(ctx, KindPoint, rec))
	require.NoError(t, points.Delete(ctx, KindPoint, rec))

	got, err := points.ForFile(ctx, KindPoint, sv, "a.jpg")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKindRouting(t *testing.T) {
	assert.Equal(t, KindPattern, KindFor("inj"))
	assert.Equal(t, KindPattern, KindFor("INJ"))
	assert.Equal(t, KindPoint, KindFor("Pup"))

	conn := openTestDB(t)
	sv := testSurvey()
	seedPhoto(t, conn, sv, "a.jpg")
	points := NewPointStore(conn)
	ctx := context.Background()

	rec := NewPointRecord(sv, "a.jpg", 9, 9, "B3", "inj")
	require.NoError(t, points.Create(ctx, KindFor(rec.Category), rec))

	pts, pats, err := points.AllForFile(ctx, sv, "a.jpg")
	require.NoError(t, err)
	assert.Empty(t, pts)
	require.Len(t, pats, 1)
	assert.Equal(t, "inj", pats[0].Category)
}

func TestSentinelRecord(t *testing.T) {
	sv := testSurvey()
	rec := NewPointRecord(sv, "a.jpg", catalog.SentinelPosition, catalog.SentinelPosition, "B3", catalog.NoAnimal)
	assert.True(t, rec.IsSentinel())

	real := NewPointRecord(sv, "a.jpg", 10, 10, "B3", "Adult")
	assert.False(t, real.IsSentinel())
}

func TestOtherSpecies(t *testing.T) {
	conn := openTestDB(t)
	sv := testSurvey()
	other := sv
	other.Species = "Steller Sea Lion"
	seedPhoto(t, conn, sv, "a.jpg")
	seedPhoto(t, conn, other, "a.jpg")
	points := NewPointStore(conn)
	ctx := context.Background()

	require.NoError(t, points.Create(ctx, KindPoint, NewPointRecord(sv, "a.jpg", 1, 1, "B3", "Adult")))
	require.NoError(t, points.Create(ctx, KindPoint, NewPointRecord(other, "a.jpg", 2, 2, "B3", "Bull")))

	ghosts, err := points.OtherSpecies(ctx, KindPoint, sv, "a.jpg")
	require.NoError(t, err)
	require.Len(t, ghosts, 1)
	assert.Equal(t, "Steller Sea Lion", ghosts[0].Species)
}

func TestCountsForFile(t *testing.T) {
	conn := openTestDB(t)
	sv := testSurvey()
	seedPhoto(t, conn, sv, "a.jpg")
	points := NewPointStore(conn)
	ctx := context.Background()

	require.NoError(t, points.Create(ctx, KindPoint, NewPointRecord(sv, "a.jpg", 1, 1, "B3", "Adult")))
	require.NoError(t, points.Create(ctx, KindPoint, NewPointRecord(sv, "a.jpg", 2, 2, "B3", "Adult")))
	require.NoError(t, points.Create(ctx, KindPattern, NewPointRecord(sv, "a.jpg", 3, 3, "B3", "inj")))

	counts, err := points.CountsForFile(ctx, sv, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Adult": 2, "inj": 1}, counts)
}

func TestSourceCascadeDelete(t *testing.T) {
	conn := openTestDB(t)
	sv := testSurvey()
	seedPhoto(t, conn, sv, "a.jpg")
	points := NewPointStore(conn)
	ctx := context.Background()

	require.NoError(t, points.Create(ctx, KindPoint, NewPointRecord(sv, "a.jpg", 1, 1, "B3", "Adult")))

	// Removing the photo registration cascades to its count rows.
	_, err := conn.ExecContext(ctx, `DELETE FROM count_source WHERE file_name = 'a.jpg'`)
	require.NoError(t, err)

	got, err := points.ForFile(ctx, KindPoint, sv, "a.jpg")
	require.NoError(t, err)
	assert.Empty(t, got)
}
