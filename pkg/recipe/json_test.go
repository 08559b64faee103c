package recipe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypack/waypack/pkg/recipe"
	"github.com/waypack/waypack/pkg/version"
)

func TestDecodeJSONBasicFields(t *testing.T) {
	src := []byte(`{
		"name": "mylib",
		"version": "1.2.3",
		"targetType": "library",
		"sourcePaths": ["src"],
		"dependencies": { "foo": "^1.0.0" }
	}`)
	r, err := recipe.DecodeJSON(src, "")
	require.NoError(t, err)

	assert.Equal(t, "mylib", r.Name)
	require.NotNil(t, r.Version)
	assert.Equal(t, "1.2.3", r.Version.String())

	s := r.Root.Resolve(recipe.Platform{OS: "linux"})
	assert.Equal(t, recipe.TargetLibrary, s.TargetType)
	assert.Equal(t, []string{"src"}, s.SourcePaths)
	require.Contains(t, s.Dependencies, "foo")
	assert.Equal(t, version.VariantRange, s.Dependencies["foo"].Variant)
}

func TestDecodeJSONPlatformFilterSuffix(t *testing.T) {
	src := []byte(`{
		"name": "plat",
		"dflags": ["-common"],
		"dflags-linux": ["-fPIC"],
		"dflags-windows": ["-DWIN32"]
	}`)
	r, err := recipe.DecodeJSON(src, "")
	require.NoError(t, err)

	linux := r.Root.Resolve(recipe.Platform{OS: "linux"})
	assert.ElementsMatch(t, []string{"-common", "-fPIC"}, linux.DFlags)

	windows := r.Root.Resolve(recipe.Platform{OS: "windows"})
	assert.ElementsMatch(t, []string{"-common", "-DWIN32"}, windows.DFlags)
}

func TestDecodeJSONUnknownAttributeWarns(t *testing.T) {
	src := []byte(`{"name": "x", "bogusField": "whatever"}`)
	r, err := recipe.DecodeJSON(src, "")
	require.NoError(t, err)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "bogusField")
}

func TestDecodeJSONConfigurationDefaultsTargetType(t *testing.T) {
	src := []byte(`{
		"name": "app",
		"targetType": "executable",
		"configurations": [
			{"name": "default"},
			{"name": "unittest", "targetType": "library"}
		]
	}`)
	r, err := recipe.DecodeJSON(src, "")
	require.NoError(t, err)

	def, ok := r.Configuration("default")
	require.True(t, ok)
	assert.Equal(t, recipe.TargetExecutable, def.Settings.Resolve(recipe.Platform{}).TargetType)

	ut, ok := r.Configuration("unittest")
	require.True(t, ok)
	assert.Equal(t, recipe.TargetLibrary, ut.Settings.Resolve(recipe.Platform{}).TargetType)
}

func TestDecodeJSONDuplicateConfigurationRejected(t *testing.T) {
	src := []byte(`{
		"name": "app",
		"configurations": [{"name": "default"}, {"name": "default"}]
	}`)
	_, err := recipe.DecodeJSON(src, "")
	require.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	src := []byte(`{
		"name": "roundtrip",
		"version": "0.4.0",
		"targetType": "executable",
		"sourcePaths": ["source"],
		"dflags-linux": ["-g"],
		"dependencies": {"bar": {"version": ">=1.0.0 <2.0.0", "optional": true}}
	}`)
	r, err := recipe.DecodeJSON(src, "")
	require.NoError(t, err)

	encoded, err := recipe.EncodeJSON(r, recipe.Platform{OS: "linux"})
	require.NoError(t, err)

	r2, err := recipe.DecodeJSON(encoded, "")
	require.NoError(t, err)

	p := recipe.Platform{OS: "linux"}
	s1 := r.Root.Resolve(p)
	s2 := r2.Root.Resolve(p)
	assert.Equal(t, s1.TargetType, s2.TargetType)
	assert.Equal(t, s1.SourcePaths, s2.SourcePaths)
	assert.Equal(t, s1.DFlags, s2.DFlags)
	require.Contains(t, s2.Dependencies, "bar")
	assert.True(t, s2.Dependencies["bar"].Optional)
}

func TestJSONRoundTripPreservesEveryPlatformVariant(t *testing.T) {
	src := []byte(`{
		"name": "multiplat",
		"dflags": ["-common"],
		"dflags-linux": ["-fPIC"],
		"dflags-windows": ["-DWIN32"],
		"targetPath-linux-x86_64": "bin/linux"
	}`)
	r, err := recipe.DecodeJSON(src, "")
	require.NoError(t, err)

	encoded, err := recipe.EncodeJSON(r, recipe.Platform{OS: "linux"})
	require.NoError(t, err)

	r2, err := recipe.DecodeJSON(encoded, "")
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

func TestDecodeJSONInlineSubPackage(t *testing.T) {
	src := []byte(`{
		"name": "root",
		"subPackages": [
			"tools/cli",
			{"name": "inline-sub", "targetType": "library"}
		]
	}`)
	r, err := recipe.DecodeJSON(src, "")
	require.NoError(t, err)
	require.Len(t, r.SubPackages, 2)
	assert.Equal(t, "tools/cli", r.SubPackages[0].Path)
	require.NotNil(t, r.SubPackages[1].Recipe)
	assert.Equal(t, "inline-sub", r.SubPackages[1].Recipe.Name)
}
