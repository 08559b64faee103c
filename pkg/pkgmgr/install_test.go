package pkgmgr_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/waypack/waypack/pkg/depregistry"
	"github.com/waypack/waypack/pkg/dpaths"
	"github.com/waypack/waypack/pkg/pkgmgr"
	"github.com/waypack/waypack/pkg/version"
)

// newRegistryFixture builds a depregistry.FilesystemRegistry publishing
// one package/version whose archive contains a minimal recipe.
func newRegistryFixture(t *testing.T, name, versionStr string) depregistry.Registry {
	t.Helper()
	root := t.TempDir()

	index := map[string]interface{}{
		"packages": map[string]interface{}{
			name: []map[string]interface{}{
				{"version": versionStr, "archiveDir": "archive", "recipeFile": "archive/waypack.json"},
			},
		},
	}
	data, err := yaml.Marshal(index)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, depregistry.IndexFileName), data, 0644))

	archiveDir := filepath.Join(root, name, "archive")
	require.NoError(t, os.MkdirAll(archiveDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(archiveDir, "waypack.json"),
		[]byte(`{"name":"`+name+`","version":"`+versionStr+`"}`), 0644))

	reg, err := depregistry.NewFilesystemRegistry(root)
	require.NoError(t, err)
	return reg
}

func TestInstallFetchesAndIndexesPackage(t *testing.T) {
	reg := newRegistryFixture(t, "http", "1.0.0")
	project := t.TempDir()

	m := pkgmgr.New(dpaths.Locations{Project: project})
	v, err := version.Parse("1.0.0")
	require.NoError(t, err)

	pkg, err := m.Install(context.Background(), reg, project, "http", v)
	require.NoError(t, err)
	assert.Equal(t, "http", pkg.Recipe.Name)

	dst := filepath.Join(project, "http-1.0.0", "http", "waypack.json")
	assert.FileExists(t, dst)

	again, ok := m.GetPackage("http", v)
	require.True(t, ok)
	assert.Equal(t, "http", again.Recipe.Name)
}

func TestInstallIsIdempotentWhenAlreadyPresent(t *testing.T) {
	reg := newRegistryFixture(t, "http", "1.0.0")
	project := t.TempDir()

	m := pkgmgr.New(dpaths.Locations{Project: project})
	v, err := version.Parse("1.0.0")
	require.NoError(t, err)

	_, err = m.Install(context.Background(), reg, project, "http", v)
	require.NoError(t, err)

	pkg, err := m.Install(context.Background(), reg, project, "http", v)
	require.NoError(t, err)
	assert.Equal(t, "http", pkg.Recipe.Name)
}

func TestRemoveDeletesDirectoryAndIndexEntry(t *testing.T) {
	reg := newRegistryFixture(t, "http", "1.0.0")
	project := t.TempDir()

	m := pkgmgr.New(dpaths.Locations{Project: project})
	v, err := version.Parse("1.0.0")
	require.NoError(t, err)

	_, err = m.Install(context.Background(), reg, project, "http", v)
	require.NoError(t, err)

	require.NoError(t, m.Remove(project, "http", v))

	_, ok := m.GetPackage("http", v)
	assert.False(t, ok)
	assert.NoDirExists(t, filepath.Join(project, "http-1.0.0"))
}
