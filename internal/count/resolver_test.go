package count

import (
	"context"
	"database/sql"
	"testing"

	"rookery-counter/internal/catalog"
	"rookery-counter/internal/db"
	"rookery-counter/internal/session"
	"rookery-counter/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scripted prompt fakes. Each records what it was asked.

type fakeCategoryPicker struct {
	choice catalog.Category
	ok     bool
	calls  int
}

func (f *fakeCategoryPicker) PickCategory(cats []catalog.Category) (catalog.Category, bool) {
	f.calls++
	return f.choice, f.ok
}

type fakeSitePicker struct {
	choice string
	ok     bool
	calls  int
}

func (f *fakeSitePicker) PickLocalSite(sites []string) (string, bool) {
	f.calls++
	return f.choice, f.ok
}

type fakeConfirmer struct {
	answers []bool
	asked   []string
}

func (f *fakeConfirmer) Confirm(title, message string) bool {
	f.asked = append(f.asked, title)
	if len(f.answers) == 0 {
		return false
	}
	ans := f.answers[0]
	f.answers = f.answers[1:]
	return ans
}

// fakeEffortEditor optionally declares the site when "edited", so the
// resolver's re-validation can succeed.
type fakeEffortEditor struct {
	complete bool
	onEdit   func(sv session.Survey)
	calls    int
}

func (f *fakeEffortEditor) EditEffort(sv session.Survey) bool {
	f.calls++
	if f.onEdit != nil {
		f.onEdit(sv)
	}
	return f.complete
}

type fixture struct {
	conn     *sql.DB
	sess     *session.Session
	points   *store.PointStore
	efforts  *store.EffortStore
	tracker  *Tracker
	catPick  *fakeCategoryPicker
	sitePick *fakeSitePicker
	confirm  *fakeConfirmer
	editor   *fakeEffortEditor
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	sess := &session.Session{
		Survey: session.Survey{
			Year: 2026, Site: 3, Date: 20260815, TimeStart: "093000",
			Creator: "amr", Species: "Harbor Seal", Observer: "KD", CountType: "Ground",
		},
		Categories: []catalog.Category{
			{Species: "Harbor Seal", Name: "Adult", ColorLarge: "#0000FF", ColorSmall: "#0000AA", Countable: true, DisplayOrder: 1},
			{Species: "Harbor Seal", Name: "Pup", ColorLarge: "#FF0000", ColorSmall: "#AA0000", Countable: true, DisplayOrder: 2},
			{Species: "Harbor Seal", Name: "inj", ColorLarge: "#777777", ColorSmall: "#333333", DisplayOrder: 3},
		},
	}

	f := &fixture{
		conn:     conn,
		sess:     sess,
		points:   store.NewPointStore(conn),
		efforts:  store.NewEffortStore(conn),
		tracker:  NewTracker(nil),
		catPick:  &fakeCategoryPicker{},
		sitePick: &fakeSitePicker{choice: "B3", ok: true},
		confirm:  &fakeConfirmer{},
		editor:   &fakeEffortEditor{},
	}
	f.resolver = NewResolver(sess, Deps{
		Points:     f.points,
		Efforts:    f.efforts,
		SiteNames:  []string{"A1", "B3"},
		Categories: f.catPick,
		Sites:      f.sitePick,
		Confirm:    f.confirm,
		EffortEdit: f.editor,
		Sink:       f.tracker,
	})

	ctx := context.Background()
	require.NoError(t, store.NewSourceStore(conn).Ensure(ctx, sess.Survey, "IMG_0001.JPG"))
	require.NoError(t, f.efforts.DeclareLocalSite(ctx, sess.Survey, "B3"))
	return f
}

func (f *fixture) allRecords(t *testing.T) ([]store.PointRecord, []store.PointRecord) {
	t.Helper()
	pts, pats, err := f.points.AllForFile(context.Background(), f.sess.Survey, "IMG_0001.JPG")
	require.NoError(t, err)
	return pts, pats
}

func TestPlacePointNoActiveCategoryIsSilentNoop(t *testing.T) {
	f := newFixture(t)

	p, err := f.resolver.PlacePoint(context.Background(), "IMG_0001.JPG", 10, 10, false)
	require.NoError(t, err)
	assert.Nil(t, p)

	pts, pats := f.allRecords(t)
	assert.Empty(t, pts)
	assert.Empty(t, pats)
}

func TestPlacePointWithPicker(t *testing.T) {
	f := newFixture(t)
	f.catPick.choice = f.sess.Categories[1] // Pup
	f.catPick.ok = true

	p, err := f.resolver.PlacePoint(context.Background(), "IMG_0001.JPG", 120, 80, true)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Pup", p.Record.Category)
	assert.Equal(t, "B3", p.Record.LocalSite)
	assert.Equal(t, store.KindPoint, p.Kind)

	// The picked category sticks for subsequent placements.
	cat, ok := f.sess.ActiveCategory()
	require.True(t, ok)
	assert.Equal(t, "Pup", cat.Name)

	// Second point: site already selected and photo non-empty, no re-prompt.
	sitePicks := f.sitePick.calls
	p2, err := f.resolver.PlacePoint(context.Background(), "IMG_0001.JPG", 30, 40, false)
	require.NoError(t, err)
	require.NotNil(t, p2)
	assert.Equal(t, sitePicks, f.sitePick.calls)
}

func TestPlacePointCategoryPickerCancelled(t *testing.T) {
	f := newFixture(t)
	f.catPick.ok = false

	p, err := f.resolver.PlacePoint(context.Background(), "IMG_0001.JPG", 10, 10, true)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPlacePointLocalSitePickerCancelled(t *testing.T) {
	f := newFixture(t)
	f.sess.SetActiveCategory("Adult")
	f.sitePick.ok = false

	p, err := f.resolver.PlacePoint(context.Background(), "IMG_0001.JPG", 10, 10, false)
	require.NoError(t, err)
	assert.Nil(t, p)

	pts, _ := f.allRecords(t)
	assert.Empty(t, pts)
}

func TestEffortValidationDeclined(t *testing.T) {
	f := newFixture(t)
	f.sess.Survey.CountType = "Map" // B3 declared for Ground only
	ctx := context.Background()
	require.NoError(t, store.NewSourceStore(f.conn).Ensure(ctx, f.sess.Survey, "IMG_0001.JPG"))

	f.sess.SetActiveCategory("Adult")
	f.confirm.answers = []bool{false} // decline "fill out effort"

	p, err := f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 10, 10, false)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, []string{"Fill out Effort?"}, f.confirm.asked)
	assert.Equal(t, 0, f.editor.calls)

	pts, pats := f.allRecords(t)
	assert.Empty(t, pts)
	assert.Empty(t, pats)
}

func TestEffortValidationRemediated(t *testing.T) {
	f := newFixture(t)
	f.sess.Survey.CountType = "Map"
	ctx := context.Background()
	require.NoError(t, store.NewSourceStore(f.conn).Ensure(ctx, f.sess.Survey, "IMG_0001.JPG"))

	f.sess.SetActiveCategory("Adult")
	f.confirm.answers = []bool{true}
	f.editor.complete = true
	f.editor.onEdit = func(sv session.Survey) {
		_ = f.efforts.DeclareLocalSite(ctx, sv, "B3")
	}

	p, err := f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 10, 10, false)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1, f.editor.calls)
}

func TestEffortEditorLeftSiteUndeclared(t *testing.T) {
	f := newFixture(t)
	f.sess.Survey.CountType = "Map"
	ctx := context.Background()
	require.NoError(t, store.NewSourceStore(f.conn).Ensure(ctx, f.sess.Survey, "IMG_0001.JPG"))

	f.sess.SetActiveCategory("Adult")
	f.confirm.answers = []bool{true}
	f.editor.complete = true // editor "completed" but never declared B3

	p, err := f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 10, 10, false)
	require.NoError(t, err)
	assert.Nil(t, p, "re-validation after editing must still gate creation")
}

func TestDuplicateCoordinateGuardIgnoresCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sess.SetActiveCategory("Adult")

	p, err := f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 10, 10, false)
	require.NoError(t, err)
	require.NotNil(t, p)

	// Same pixel, different category: refused without error.
	f.sess.SetActiveCategory("Pup")
	p, err = f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 10, 10, false)
	require.NoError(t, err)
	assert.Nil(t, p)

	pts, _ := f.allRecords(t)
	assert.Len(t, pts, 1)
}

func TestPatternCategoryRouting(t *testing.T) {
	f := newFixture(t)
	f.sess.SetActiveCategory("inj")

	p, err := f.resolver.PlacePoint(context.Background(), "IMG_0001.JPG", 15, 25, false)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, store.KindPattern, p.Kind)

	pts, pats := f.allRecords(t)
	assert.Empty(t, pts)
	require.Len(t, pats, 1)
	assert.Equal(t, "inj", pats[0].Category)
}

func TestSentinelPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Photo reviewed as empty.
	f.sess.SetLocalSite("B3")
	p, err := f.resolver.PlaceSentinel(ctx, "IMG_0001.JPG", catalog.NoAnimal)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, StateNoAnimal, f.tracker.StateOf("IMG_0001.JPG"))

	// A real Pup marker silently replaces the lone sentinel.
	f.sess.SetActiveCategory("Pup")
	p, err = f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 120, 80, false)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Empty(t, f.confirm.asked, "sentinel removal before a real point needs no confirmation")

	pts, pats := f.allRecords(t)
	assert.Empty(t, pats)
	require.Len(t, pts, 1)
	assert.Equal(t, "Pup", pts[0].Category)
	assert.Equal(t, 120, pts[0].Left)
	assert.Equal(t, 80, pts[0].Top)
	assert.Equal(t, StateCounted, f.tracker.StateOf("IMG_0001.JPG"))
}

func TestSentinelOverRealPointsNeedsTwoConfirmations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sess.SetActiveCategory("Adult")

	for _, pos := range [][2]int{{10, 10}, {20, 20}} {
		p, err := f.resolver.PlacePoint(ctx, "IMG_0001.JPG", pos[0], pos[1], false)
		require.NoError(t, err)
		require.NotNil(t, p)
	}

	// First confirmation declined: nothing changes.
	f.confirm.answers = []bool{false}
	p, err := f.resolver.PlaceSentinel(ctx, "IMG_0001.JPG", catalog.NoMarked)
	require.NoError(t, err)
	assert.Nil(t, p)
	pts, _ := f.allRecords(t)
	assert.Len(t, pts, 2)

	// Second confirmation declined: still nothing.
	f.confirm.answers = []bool{true, false}
	p, err = f.resolver.PlaceSentinel(ctx, "IMG_0001.JPG", catalog.NoMarked)
	require.NoError(t, err)
	assert.Nil(t, p)
	pts, _ = f.allRecords(t)
	assert.Len(t, pts, 2)

	// Both confirmed: real points give way to the sentinel.
	f.confirm.answers = []bool{true, true}
	p, err = f.resolver.PlaceSentinel(ctx, "IMG_0001.JPG", catalog.NoMarked)
	require.NoError(t, err)
	require.NotNil(t, p)

	pts, pats := f.allRecords(t)
	assert.Empty(t, pats)
	require.Len(t, pts, 1)
	assert.True(t, pts[0].IsSentinel())
	assert.Equal(t, StateNoMarked, f.tracker.StateOf("IMG_0001.JPG"))
}

func TestSentinelExclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sess.SetActiveCategory("Adult")
	f.confirm.answers = []bool{true, true}

	// Interleave real and sentinel placements; the invariant must hold
	// after every successful operation.
	checkExclusive := func() {
		pts, pats := f.allRecords(t)
		var sentinels, real int
		for _, r := range pts {
			if r.IsSentinel() {
				sentinels++
			} else {
				real++
			}
		}
		real += len(pats)
		if sentinels > 0 {
			assert.Zero(t, real, "sentinel and real records must not coexist")
			assert.Equal(t, 1, sentinels, "at most one sentinel per photo")
		}
	}

	_, err := f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 5, 5, false)
	require.NoError(t, err)
	checkExclusive()

	_, err = f.resolver.PlaceSentinel(ctx, "IMG_0001.JPG", catalog.NoAnimal)
	require.NoError(t, err)
	checkExclusive()

	_, err = f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 6, 6, false)
	require.NoError(t, err)
	checkExclusive()
}

func TestSentinelReplacesOtherSentinelSilently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.PlaceSentinel(ctx, "IMG_0001.JPG", catalog.NoAnimal)
	require.NoError(t, err)

	p, err := f.resolver.PlaceSentinel(ctx, "IMG_0001.JPG", catalog.NoMarked)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Empty(t, f.confirm.asked)

	pts, _ := f.allRecords(t)
	require.Len(t, pts, 1)
	assert.Equal(t, catalog.NoMarked, pts[0].Category)

	// Re-placing the same sentinel is a no-op.
	p, err = f.resolver.PlaceSentinel(ctx, "IMG_0001.JPG", catalog.NoMarked)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRemoveRecordsUpdatesTracker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sess.SetActiveCategory("Adult")

	p, err := f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 10, 10, false)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, StateCounted, f.tracker.StateOf("IMG_0001.JPG"))

	err = f.resolver.RemoveRecords(ctx, "IMG_0001.JPG", []RecordRef{{Kind: p.Kind, Record: p.Record}})
	require.NoError(t, err)
	assert.Equal(t, StateUncounted, f.tracker.StateOf("IMG_0001.JPG"))

	pts, _ := f.allRecords(t)
	assert.Empty(t, pts)
}

func TestChangeCategoryAcrossKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sess.SetActiveCategory("Adult")

	p, err := f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 10, 10, false)
	require.NoError(t, err)
	require.NotNil(t, p)

	// Adult (point kind) -> inj (pattern kind) moves the row between tables.
	f.catPick.choice = f.sess.Categories[2]
	f.catPick.ok = true
	cat, ok, err := f.resolver.ChangeCategory(ctx, "IMG_0001.JPG", []RecordRef{{Kind: p.Kind, Record: p.Record}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "inj", cat.Name)

	pts, pats := f.allRecords(t)
	assert.Empty(t, pts)
	require.Len(t, pats, 1)
	assert.Equal(t, 10, pats[0].Left)
}

func TestChangeLocalSiteValidatesEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sess.SetActiveCategory("Adult")

	p, err := f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 10, 10, false)
	require.NoError(t, err)
	require.NotNil(t, p)

	// A1 is not declared; decline remediation.
	f.sitePick.choice = "A1"
	f.confirm.answers = []bool{false}
	_, ok, err := f.resolver.ChangeLocalSite(ctx, []RecordRef{{Kind: p.Kind, Record: p.Record}})
	require.NoError(t, err)
	assert.False(t, ok)

	pts, _ := f.allRecords(t)
	require.Len(t, pts, 1)
	assert.Equal(t, "B3", pts[0].LocalSite)

	// Declare A1 and retry.
	require.NoError(t, f.efforts.DeclareLocalSite(ctx, f.sess.Survey, "A1"))
	site, ok, err := f.resolver.ChangeLocalSite(ctx, []RecordRef{{Kind: p.Kind, Record: p.Record}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A1", site)

	pts, _ = f.allRecords(t)
	require.Len(t, pts, 1)
	assert.Equal(t, "A1", pts[0].LocalSite)
}

func TestDuplicateGuardSeesOtherSpeciesGhosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := f.sess.Survey
	other.Species = "Steller Sea Lion"
	require.NoError(t, store.NewSourceStore(f.conn).Ensure(ctx, other, "IMG_0001.JPG"))
	require.NoError(t, f.points.Create(ctx, store.KindPoint,
		store.NewPointRecord(other, "IMG_0001.JPG", 10, 10, "B3", "Bull")))

	f.sess.SetActiveCategory("Adult")
	p, err := f.resolver.PlacePoint(ctx, "IMG_0001.JPG", 10, 10, false)
	require.NoError(t, err)
	assert.Nil(t, p, "a ghost marker occupies the pixel")
}
