package selections_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypack/waypack/pkg/selections"
	"github.com/waypack/waypack/pkg/version"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, warnings, err := selections.Load(dir)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Empty(t, s.Names())
	assert.False(t, s.Dirty())
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := selections.New()
	s.Set("foo", version.FromVersion(mustParse(t, "1.2.3")))
	s.Set("bar", version.FromPath("../bar"))
	s.Set("baz", version.FromBranch("feature-x"))
	require.NoError(t, s.Save(dir, false))

	loaded, warnings, err := selections.Load(dir)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	foo, ok := loaded.Get("foo")
	require.True(t, ok)
	assert.True(t, foo.Matches(mustParse(t, "1.2.3")))

	bar, ok := loaded.Get("bar")
	require.True(t, ok)
	assert.Equal(t, version.VariantPath, bar.Variant)
	assert.Equal(t, "../bar", bar.Path)

	baz, ok := loaded.Get("baz")
	require.True(t, ok)
	assert.Equal(t, version.VariantBranch, baz.Variant)
	assert.Equal(t, "feature-x", baz.Branch)
}

func TestSaveIsNoOpWhenClean(t *testing.T) {
	dir := t.TempDir()
	s := selections.New()
	require.NoError(t, s.Save(dir, false))

	_, err := os.Stat(filepath.Join(dir, selections.FileName))
	assert.True(t, os.IsNotExist(err), "clean selections should not be written")
}

func TestLoadMalformedFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, selections.FileName), []byte("not json"), 0644))

	s, warnings, err := selections.Load(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Empty(t, s.Names())
}

func TestLoadRejectsUnsupportedFileVersion(t *testing.T) {
	dir := t.TempDir()
	content := `{"fileVersion": 2, "versions": {"foo": "1.0.0"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, selections.FileName), []byte(content), 0644))

	s, warnings, err := selections.Load(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Empty(t, s.Names())
}

func TestSetSamePinDoesNotDirty(t *testing.T) {
	s := selections.New()
	dep := version.FromVersion(mustParse(t, "1.0.0"))
	s.Set("foo", dep)
	assert.True(t, s.Dirty())

	dir := t.TempDir()
	require.NoError(t, s.Save(dir, false))
	assert.False(t, s.Dirty())

	s.Set("foo", dep)
	assert.False(t, s.Dirty(), "re-setting the same pin should not mark the store dirty")
}

func mustParse(t *testing.T, spec string) version.Version {
	t.Helper()
	v, err := version.Parse(spec)
	require.NoError(t, err)
	return v
}
