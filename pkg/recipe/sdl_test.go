package recipe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypack/waypack/pkg/recipe"
)

func TestDecodeSDLDefaultTargetTypeLibrary(t *testing.T) {
	src := []byte(`name "test"
configuration "a" {
}
`)
	r, err := recipe.DecodeSDL(src, "")
	require.NoError(t, err)
	require.Len(t, r.Configurations, 1)
	assert.Equal(t, "a", r.Configurations[0].Name)
	assert.Equal(t, recipe.TargetLibrary, r.Configurations[0].Settings.Resolve(recipe.Platform{}).TargetType)
}

func TestDecodeSDLDefaultTargetTypeInheritsAutodetect(t *testing.T) {
	src := []byte(`name "test"
targetType "autodetect"
configuration "a" {
}
`)
	r, err := recipe.DecodeSDL(src, "")
	require.NoError(t, err)
	require.Len(t, r.Configurations, 1)
	assert.Equal(t, recipe.TargetLibrary, r.Configurations[0].Settings.Resolve(recipe.Platform{}).TargetType)
}

func TestDecodeSDLDefaultTargetTypeInheritsExecutable(t *testing.T) {
	src := []byte(`name "test"
targetType "executable"
configuration "a" {
}
`)
	r, err := recipe.DecodeSDL(src, "")
	require.NoError(t, err)
	require.Len(t, r.Configurations, 1)
	assert.Equal(t, recipe.TargetExecutable, r.Configurations[0].Settings.Resolve(recipe.Platform{}).TargetType)
}

func TestDecodeSDLRepeatedTagsAccumulate(t *testing.T) {
	src := []byte(`name "multi"
sourcePaths "src"
sourcePaths "gen"
dflags "-g" platform="linux"
dflags "-O2"
`)
	r, err := recipe.DecodeSDL(src, "")
	require.NoError(t, err)

	s := r.Root.Resolve(recipe.Platform{OS: "linux"})
	assert.Equal(t, []string{"src", "gen"}, s.SourcePaths)
	assert.ElementsMatch(t, []string{"-g", "-O2"}, s.DFlags)

	other := r.Root.Resolve(recipe.Platform{OS: "windows"})
	assert.Equal(t, []string{"-O2"}, other.DFlags)
}

func TestDecodeSDLConfigurationBlockAndDependency(t *testing.T) {
	src := []byte(`name "app"
targetType "executable"
dependency "vibe-d" version="~>0.9.0"

configuration "unittest" {
	targetType "executable"
	dependency "silly" version=">=1.0.0 <2.0.0"
	versions "UnitTest"
}
`)
	r, err := recipe.DecodeSDL(src, "")
	require.NoError(t, err)

	cfg, ok := r.Configuration("unittest")
	require.True(t, ok)
	s := cfg.Settings.Resolve(recipe.Platform{})
	assert.Equal(t, recipe.TargetExecutable, s.TargetType)
	assert.Equal(t, []string{"UnitTest"}, s.Versions)
	require.Contains(t, s.Dependencies, "silly")

	rootDeps := r.Root.Resolve(recipe.Platform{}).Dependencies
	require.Contains(t, rootDeps, "vibe-d")
}

func TestDecodeSDLSubPackageByPath(t *testing.T) {
	src := []byte(`name "root"
subPackage "tools/cli"
`)
	r, err := recipe.DecodeSDL(src, "")
	require.NoError(t, err)
	require.Len(t, r.SubPackages, 1)
	assert.Equal(t, "tools/cli", r.SubPackages[0].Path)
}

func TestDecodeSDLInlineSubPackageBlock(t *testing.T) {
	src := []byte(`name "root"
subPackage {
	name "inner"
	targetType "library"
}
`)
	r, err := recipe.DecodeSDL(src, "")
	require.NoError(t, err)
	require.Len(t, r.SubPackages, 1)
	require.NotNil(t, r.SubPackages[0].Recipe)
	assert.Equal(t, "inner", r.SubPackages[0].Recipe.Name)
}

func TestDecodeSDLUnknownTagWarns(t *testing.T) {
	src := []byte(`name "x"
bogusTag "whatever"
`)
	r, err := recipe.DecodeSDL(src, "")
	require.NoError(t, err)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "bogusTag")
}

func TestSDLRoundTrip(t *testing.T) {
	src := []byte(`name "roundtrip"
version "0.4.0"
targetType "executable"
sourcePaths "source"
dflags "-g" platform="linux"
dependency "bar" version=">=1.0.0 <2.0.0"
`)
	r, err := recipe.DecodeSDL(src, "")
	require.NoError(t, err)

	encoded, err := recipe.EncodeSDL(r, recipe.Platform{OS: "linux"})
	require.NoError(t, err)

	r2, err := recipe.DecodeSDL(encoded, "")
	require.NoError(t, err)

	p := recipe.Platform{OS: "linux"}
	s1 := r.Root.Resolve(p)
	s2 := r2.Root.Resolve(p)
	assert.Equal(t, s1.TargetType, s2.TargetType)
	assert.Equal(t, s1.SourcePaths, s2.SourcePaths)
	assert.Equal(t, s1.DFlags, s2.DFlags)
	require.Contains(t, s2.Dependencies, "bar")
}

func TestSDLRoundTripPreservesEveryPlatformVariant(t *testing.T) {
	src := []byte(`name "multiplat"
dflags "-common"
dflags "-fPIC" platform="linux"
dflags "-DWIN32" platform="windows"
targetPath "bin/linux" platform="linux-x86_64"
`)
	r, err := recipe.DecodeSDL(src, "")
	require.NoError(t, err)

	encoded, err := recipe.EncodeSDL(r, recipe.Platform{OS: "linux"})
	require.NoError(t, err)

	r2, err := recipe.DecodeSDL(encoded, "")
	require.NoError(t, err)

	for _, p := range []recipe.Platform{
		{OS: "linux"},
		{OS: "windows"},
		{OS: "linux", Arch: "x86_64"},
	} {
		s1 := r.Root.Resolve(p)
		s2 := r2.Root.Resolve(p)
		assert.ElementsMatch(t, s1.DFlags, s2.DFlags, "platform %+v", p)
		assert.Equal(t, s1.TargetPath, s2.TargetPath, "platform %+v", p)
	}
}

func TestSDLToJSONCrossFormat(t *testing.T) {
	sdlSrc := []byte(`name "cross"
version "1.0.0"
targetType "library"
sourcePaths "src"
`)
	r, err := recipe.DecodeSDL(sdlSrc, "")
	require.NoError(t, err)

	asJSON, err := recipe.EncodeJSON(r, recipe.Platform{})
	require.NoError(t, err)

	r2, err := recipe.DecodeJSON(asJSON, "")
	require.NoError(t, err)

	assert.Equal(t, r.Name, r2.Name)
	s1 := r.Root.Resolve(recipe.Platform{})
	s2 := r2.Root.Resolve(recipe.Platform{})
	assert.Equal(t, s1.TargetType, s2.TargetType)
	assert.Equal(t, s1.SourcePaths, s2.SourcePaths)
}
