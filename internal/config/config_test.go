package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
database:
  path: /tmp/survey.db
photos:
  root: /photos/2026
survey:
  year: 2026
  site: 12
  species: Harbor Seal
  creator: amr
  observer: KD
  count_type: Map
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/survey.db", s.Database.Path)
	assert.Equal(t, "/photos/2026", s.Photos.Root)
	assert.Equal(t, 2026, s.Survey.Year)
	assert.Equal(t, 12, s.Survey.Site)
	assert.Equal(t, "Harbor Seal", s.Survey.Species)
	assert.Equal(t, "Map", s.Survey.CountType)
	assert.Equal(t, "debug", s.Log.Level)
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "counts.db", s.Database.Path)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "Ground", s.Survey.CountType)
}

func TestValidate(t *testing.T) {
	s := &Settings{}
	s.Database.Path = "x.db"
	s.Survey.CountType = "Ground"
	assert.NoError(t, s.Validate())

	s.Database.Path = ""
	assert.Error(t, s.Validate())

	s.Database.Path = "x.db"
	s.Survey.Year = -1
	assert.Error(t, s.Validate())

	s.Survey.Year = 0
	s.Survey.CountType = ""
	assert.Error(t, s.Validate())
}
