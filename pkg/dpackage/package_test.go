package dpackage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/dpackage"
	"github.com/waypack/waypack/pkg/recipe"
	"github.com/waypack/waypack/pkg/version"
)

func writeRecipe(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644))
}

func mustVersion(t *testing.T, s string) *version.Version {
	t.Helper()
	v, err := version.Parse(s)
	require.NoError(t, err)
	return &v
}

func TestLoadDiscoversCanonicalRecipeFile(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "waypack.json", `{"name":"silly","version":"1.0.0"}`)

	pkg, err := dpackage.Load(context.Background(), dir, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "silly", pkg.Recipe.Name)
	assert.Equal(t, "silly", pkg.QualifiedName())
}

func TestLoadPrefersVersionOverride(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "waypack.json", `{"name":"silly"}`)

	pkg, err := dpackage.Load(context.Background(), dir, "", nil, mustVersion(t, "2.0.0"))
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", pkg.EffectiveVersion().String())
}

func TestLoadSubPackageInheritsParentVersion(t *testing.T) {
	parentDir := t.TempDir()
	writeRecipe(t, parentDir, "waypack.json", `{"name":"silly","version":"1.0.0"}`)
	parent, err := dpackage.Load(context.Background(), parentDir, "", nil, nil)
	require.NoError(t, err)

	childDir := t.TempDir()
	writeRecipe(t, childDir, "waypack.json", `{"name":"http"}`)
	child, err := dpackage.Load(context.Background(), childDir, "", parent, nil)
	require.NoError(t, err)

	assert.Equal(t, "silly:http", child.QualifiedName())
	assert.Equal(t, "1.0.0", child.EffectiveVersion().String())
}

func TestLoadNoRecipeFileIsRecipeNotFound(t *testing.T) {
	_, err := dpackage.Load(context.Background(), t.TempDir(), "", nil, nil)
	require.Error(t, err)
	assert.True(t, derrors.Is(err, derrors.RecipeNotFound))
}

func TestLoadDefaultsSourcePathFromConventionalDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "source"), 0755))
	writeRecipe(t, dir, "waypack.json", `{"name":"silly","version":"1.0.0"}`)

	pkg, err := dpackage.Load(context.Background(), dir, "", nil, nil)
	require.NoError(t, err)

	settings, err := pkg.GetBuildSettings(recipe.Platform{}, pkg.Configurations()[0])
	require.NoError(t, err)
	assert.Contains(t, settings.SourcePaths, "source")
	assert.Contains(t, settings.ImportPaths, "source")
}

func TestLoadDefaultsStringImportPathFromViews(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "views"), 0755))
	writeRecipe(t, dir, "waypack.json", `{"name":"silly","version":"1.0.0"}`)

	pkg, err := dpackage.Load(context.Background(), dir, "", nil, nil)
	require.NoError(t, err)

	settings, err := pkg.GetBuildSettings(recipe.Platform{}, pkg.Configurations()[0])
	require.NoError(t, err)
	assert.Contains(t, settings.StringImportPaths, "views")
}

func TestLoadDetectsApplicationMainFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "source"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "source", "app.d"), []byte("void main() {}"), 0644))
	writeRecipe(t, dir, "waypack.json", `{"name":"silly","version":"1.0.0"}`)

	pkg, err := dpackage.Load(context.Background(), dir, "", nil, nil)
	require.NoError(t, err)

	names := pkg.Configurations()
	assert.Contains(t, names, "application")
	assert.Contains(t, names, "library")

	appSettings, err := pkg.GetBuildSettings(recipe.Platform{}, "application")
	require.NoError(t, err)
	assert.Equal(t, recipe.TargetExecutable, appSettings.TargetType)
	assert.Equal(t, filepath.Join("source", "app.d"), appSettings.MainSourceFile)

	libSettings, err := pkg.GetBuildSettings(recipe.Platform{}, "library")
	require.NoError(t, err)
	assert.Equal(t, recipe.TargetLibrary, libSettings.TargetType)
	assert.Contains(t, libSettings.ExcludedSourceFiles, filepath.Join("source", "app.d"))
}

func TestLoadSynthesizesSingleLibraryConfigurationByDefault(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "waypack.json", `{"name":"silly","version":"1.0.0"}`)

	pkg, err := dpackage.Load(context.Background(), dir, "", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"library"}, pkg.Configurations())
}

func TestLoadSynthesizesApplicationConfigurationForExecutable(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "waypack.json", `{"name":"silly","version":"1.0.0","targetType":"executable"}`)

	pkg, err := dpackage.Load(context.Background(), dir, "", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"application"}, pkg.Configurations())
}

func TestLoadLintsMissingName(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "waypack.json", `{"version":"1.0.0"}`)

	pkg, err := dpackage.Load(context.Background(), dir, "", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, pkg.Recipe.Warnings, "package has no name")
}

func TestLoadLintsSubPackageLicenseMismatch(t *testing.T) {
	parentDir := t.TempDir()
	writeRecipe(t, parentDir, "waypack.json", `{"name":"silly","version":"1.0.0","license":"MIT"}`)
	parent, err := dpackage.Load(context.Background(), parentDir, "", nil, nil)
	require.NoError(t, err)

	childDir := t.TempDir()
	writeRecipe(t, childDir, "waypack.json", `{"name":"http","license":"Apache-2.0"}`)
	child, err := dpackage.Load(context.Background(), childDir, "", parent, nil)
	require.NoError(t, err)

	require.NotEmpty(t, child.Recipe.Warnings)
}
