package pkgmgr_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypack/waypack/pkg/dpaths"
	"github.com/waypack/waypack/pkg/pkgmgr"
	"github.com/waypack/waypack/pkg/version"
)

func writeInstalledPackage(t *testing.T, root, name, versionStr string) {
	t.Helper()
	dir := filepath.Join(root, name+"-"+versionStr, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "waypack.json"),
		[]byte(`{"name":"`+name+`","version":"`+versionStr+`"}`), 0644))
}

func TestScanIndexesInstalledPackages(t *testing.T) {
	project := t.TempDir()
	writeInstalledPackage(t, project, "http", "1.0.0")
	writeInstalledPackage(t, project, "http", "1.2.0")

	m := pkgmgr.New(dpaths.Locations{Project: project})
	require.NoError(t, m.Scan(context.Background()))

	assert.Equal(t, []string{"http"}, m.Names())
	assert.Len(t, m.Packages("http"), 2)
}

func TestGetPackageExactMatch(t *testing.T) {
	project := t.TempDir()
	writeInstalledPackage(t, project, "http", "1.0.0")

	m := pkgmgr.New(dpaths.Locations{Project: project})
	require.NoError(t, m.Scan(context.Background()))

	v, err := version.Parse("1.0.0")
	require.NoError(t, err)
	pkg, ok := m.GetPackage("http", v)
	require.True(t, ok)
	assert.Equal(t, "http", pkg.Recipe.Name)

	other, err := version.Parse("2.0.0")
	require.NoError(t, err)
	_, ok = m.GetPackage("http", other)
	assert.False(t, ok)
}

func TestGetBestPackagePicksHighestSatisfying(t *testing.T) {
	project := t.TempDir()
	writeInstalledPackage(t, project, "http", "1.0.0")
	writeInstalledPackage(t, project, "http", "1.2.0")
	writeInstalledPackage(t, project, "http", "2.0.0")

	m := pkgmgr.New(dpaths.Locations{Project: project})
	require.NoError(t, m.Scan(context.Background()))

	dep, err := version.ParseSpec("~>1.0")
	require.NoError(t, err)

	best, ok := m.GetBestPackage("http", dep)
	require.True(t, ok)
	assert.Equal(t, "1.2.0", best.EffectiveVersion().String())
}

func TestGetBestPackagePrefersNonPreRelease(t *testing.T) {
	project := t.TempDir()
	writeInstalledPackage(t, project, "http", "1.0.0")
	writeInstalledPackage(t, project, "http", "1.0.0-beta.1")

	m := pkgmgr.New(dpaths.Locations{Project: project})
	require.NoError(t, m.Scan(context.Background()))

	dep, err := version.ParseSpec("*")
	require.NoError(t, err)

	best, ok := m.GetBestPackage("http", dep)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", best.EffectiveVersion().String())
}

func TestGetOrLoadPackageCachesByPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "waypack.json"), []byte(`{"name":"silly","version":"1.0.0"}`), 0644))

	m := pkgmgr.New(dpaths.Locations{})
	pkg1, err := m.GetOrLoadPackage(context.Background(), dir)
	require.NoError(t, err)

	pkg2, err := m.GetOrLoadPackage(context.Background(), dir)
	require.NoError(t, err)
	assert.Same(t, pkg1, pkg2)
}

func TestOverridePathScannedAheadOfLocations(t *testing.T) {
	project := t.TempDir()
	override := t.TempDir()
	writeInstalledPackage(t, override, "http", "9.9.9")

	m := pkgmgr.New(dpaths.Locations{Project: project})
	m.AddOverridePath(override)
	require.NoError(t, m.Scan(context.Background()))

	assert.Len(t, m.Packages("http"), 1)
}
