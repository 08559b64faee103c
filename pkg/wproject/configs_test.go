package wproject_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/dpaths"
	"github.com/waypack/waypack/pkg/pkgmgr"
	"github.com/waypack/waypack/pkg/recipe"
	"github.com/waypack/waypack/pkg/wproject"
)

func TestGetPackageConfigsSingleLibraryDependency(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, `{"name":"app","version":"1.0.0","dependencies":{"lib":"*"}}`)

	project := t.TempDir()
	writeInstalled(t, project, "lib", "1.0.0")
	mgr := pkgmgr.New(dpaths.Locations{Project: project})
	require.NoError(t, mgr.Scan(context.Background()))

	proj, err := wproject.Load(context.Background(), dir, mgr, recipe.Platform{})
	require.NoError(t, err)

	configs, err := proj.GetPackageConfigs(recipe.Platform{}, "", true)
	require.NoError(t, err)
	assert.Equal(t, "library", configs["app"])
	assert.Equal(t, "library", configs["lib"])
}

func TestGetPackageConfigsRootConfigIsSeeded(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, `{
		"name": "app", "version": "1.0.0",
		"configurations": [
			{"name": "unittest", "targetType": "executable", "mainSourceFile": "app/main.d"},
			{"name": "library", "targetType": "library"}
		]
	}`)

	proj, err := wproject.Load(context.Background(), dir, nil, recipe.Platform{})
	require.NoError(t, err)

	configs, err := proj.GetPackageConfigs(recipe.Platform{}, "unittest", true)
	require.NoError(t, err)
	assert.Equal(t, "unittest", configs["app"])
}

func TestGetPackageConfigsNoValidConfigurationForPlatform(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, `{
		"name": "app", "version": "1.0.0",
		"dependencies": {"lib": "*"}
	}`)

	project := t.TempDir()
	writeRecipe(t, filepath.Join(project, "lib-1.0.0", "lib"), `{
		"name": "lib", "version": "1.0.0",
		"configurations": [
			{"name": "windows-only", "targetType": "library", "platforms": ["windows"]}
		]
	}`)
	mgr := pkgmgr.New(dpaths.Locations{Project: project})
	require.NoError(t, mgr.Scan(context.Background()))

	proj, err := wproject.Load(context.Background(), dir, mgr, recipe.Platform{OS: "linux"})
	require.NoError(t, err)

	_, err = proj.GetPackageConfigs(recipe.Platform{OS: "linux"}, "", true)
	require.Error(t, err)
	assert.True(t, derrors.Is(err, derrors.NoValidConfiguration))
}

func TestGetPackageConfigsPrunesToSingleCandidatePerPackage(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, `{
		"name": "app", "version": "1.0.0",
		"dependencies": {"lib": "*"}
	}`)

	project := t.TempDir()
	writeRecipe(t, filepath.Join(project, "lib-1.0.0", "lib"), `{
		"name": "lib", "version": "1.0.0",
		"configurations": [
			{"name": "static", "targetType": "library"},
			{"name": "shared", "targetType": "library"}
		]
	}`)
	mgr := pkgmgr.New(dpaths.Locations{Project: project})
	require.NoError(t, mgr.Scan(context.Background()))

	proj, err := wproject.Load(context.Background(), dir, mgr, recipe.Platform{})
	require.NoError(t, err)

	configs, err := proj.GetPackageConfigs(recipe.Platform{}, "", true)
	require.NoError(t, err)
	assert.Contains(t, []string{"static", "shared"}, configs["lib"])
}
