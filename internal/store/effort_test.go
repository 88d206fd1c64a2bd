package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffortDeclareAndValidate(t *testing.T) {
	conn := openTestDB(t)
	sv := testSurvey()
	efforts := NewEffortStore(conn)
	ctx := context.Background()

	ok, err := efforts.HasLocalSite(ctx, sv, "B3")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, efforts.DeclareLocalSite(ctx, sv, "B3"))
	require.NoError(t, efforts.DeclareLocalSite(ctx, sv, "B3")) // idempotent
	require.NoError(t, efforts.DeclareLocalSite(ctx, sv, "A1"))

	ok, err = efforts.HasLocalSite(ctx, sv, "B3")
	require.NoError(t, err)
	assert.True(t, ok)

	sites, err := efforts.LocalSites(ctx, sv)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B3"}, sites)

	// Declared for this count type only.
	mapSv := sv
	mapSv.CountType = "Map"
	ok, err = efforts.HasLocalSite(ctx, mapSv, "B3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEffortCategories(t *testing.T) {
	conn := openTestDB(t)
	sv := testSurvey()
	efforts := NewEffortStore(conn)
	ctx := context.Background()

	require.NoError(t, efforts.DeclareCategory(ctx, sv, "Adult"))
	require.NoError(t, efforts.DeclareCategory(ctx, sv, "Pup"))

	cats, err := efforts.Categories(ctx, sv)
	require.NoError(t, err)
	assert.Equal(t, []string{"Adult", "Pup"}, cats)
}

func TestRenameLocalSitePropagates(t *testing.T) {
	conn := openTestDB(t)
	sv := testSurvey()
	efforts := NewEffortStore(conn)
	points := NewPointStore(conn)
	ctx := context.Background()

	seedPhoto(t, conn, sv, "a.jpg")
	require.NoError(t, efforts.DeclareLocalSite(ctx, sv, "B3"))
	require.NoError(t, points.Create(ctx, KindPoint, NewPointRecord(sv, "a.jpg", 4, 4, "B3", "Adult")))

	require.NoError(t, efforts.RenameLocalSite(ctx, sv, "B3", "B3-east"))

	got, err := points.ForFile(ctx, KindPoint, sv, "a.jpg")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B3-east", got[0].LocalSite)
}

func TestSourceFiles(t *testing.T) {
	conn := openTestDB(t)
	sv := testSurvey()
	source := NewSourceStore(conn)
	ctx := context.Background()

	require.NoError(t, source.Ensure(ctx, sv, "b.jpg"))
	require.NoError(t, source.Ensure(ctx, sv, "a.jpg"))
	require.NoError(t, source.Ensure(ctx, sv, "a.jpg")) // idempotent

	files, err := source.Files(ctx, sv)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, files)
}

func TestSupportReferenceData(t *testing.T) {
	conn := openTestDB(t)
	support := NewSupportStore(conn)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx, `
		INSERT INTO support_age_sex_categories
		(species, animal_category, color_representation_large, color_representation_small,
		 count_category, description, display_order)
		VALUES
		('Harbor Seal', 'Pup', '#FF0000', '#AA0000', 1, 'young of the year', 2),
		('Harbor Seal', 'Adult', '#0000FF', '#0000AA', 1, '', 1),
		('Harbor Seal', 'inj', '#777777', '#333333', 0, 'patterned', 3)
	`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `
		INSERT INTO support_local_sites (site, local_site_id, local_site_name)
		VALUES (3, 2, 'B3'), (3, 1, 'A1')
	`)
	require.NoError(t, err)

	cats, err := support.Categories(ctx, "Harbor Seal")
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "Adult", cats[0].Name)
	assert.Equal(t, "Pup", cats[1].Name)
	assert.True(t, cats[0].Countable)
	assert.False(t, cats[2].Countable)
	assert.Equal(t, "#FF0000", cats[1].ColorLarge)

	sites, err := support.LocalSiteNames(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B3"}, sites)
}
