package dpackage

import (
	"os"
	"strings"

	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/dpaths"
	"github.com/waypack/waypack/pkg/recipe"
	"github.com/waypack/waypack/pkg/version"
)

// Configurations returns configuration names in declaration order.
func (p *Package) Configurations() []string {
	return p.Recipe.ConfigurationNames()
}

// mergedTemplate resolves the root template merged with the named
// configuration's template, root first so configuration-level scalars
// win ties (spec.md §4.2 getBuildSettings).
func (p *Package) mergedTemplate(configName string) (recipe.Template, error) {
	cfg, ok := p.Recipe.Configuration(configName)
	if !ok {
		return recipe.Template{}, derrors.Newf(derrors.UnknownConfiguration, "package %q has no configuration %q", p.QualifiedName(), configName)
	}
	return p.Recipe.Root.Merge(cfg.Settings), nil
}

// GetBuildSettings resolves the root template plus the named
// configuration's template through platform filters (spec.md §4.2
// getBuildSettings). If targetName is left unset, it defaults to the
// qualified name with ':' replaced by '_'.
func (p *Package) GetBuildSettings(platform recipe.Platform, configName string) (recipe.Settings, error) {
	merged, err := p.mergedTemplate(configName)
	if err != nil {
		return recipe.Settings{}, err
	}

	settings := merged.Resolve(platform)
	if settings.TargetName == "" {
		settings.TargetName = p.sanitizedTargetName()
	}
	return settings, nil
}

// GetDefaultConfiguration returns the first configuration whose platform
// filter admits platform and, unless allowNonLibrary is set, whose
// target type is not executable (spec.md §4.2 getDefaultConfiguration).
func (p *Package) GetDefaultConfiguration(platform recipe.Platform, allowNonLibrary bool) (string, bool) {
	for _, cfg := range p.Recipe.Configurations {
		if !recipe.MatchesAnyFilter(cfg.Platforms, platform) {
			continue
		}
		settings, err := p.GetBuildSettings(platform, cfg.Name)
		if err != nil {
			continue
		}
		if settings.TargetType == recipe.TargetExecutable && !allowNonLibrary {
			continue
		}
		return cfg.Name, true
	}
	return "", false
}

// GetPlatformConfigurations returns every configuration admitting
// platform, applying the same executable filter as
// GetDefaultConfiguration: isMain allows executable configurations to be
// offered to a referrer that is itself the build root, the way a
// dependent package may never select a peer's executable configuration
// (spec.md §4.2 getPlatformConfigurations).
func (p *Package) GetPlatformConfigurations(platform recipe.Platform, isMain bool) []string {
	var out []string
	for _, cfg := range p.Recipe.Configurations {
		if !recipe.MatchesAnyFilter(cfg.Platforms, platform) {
			continue
		}
		settings, err := p.GetBuildSettings(platform, cfg.Name)
		if err != nil {
			continue
		}
		if settings.TargetType == recipe.TargetExecutable && !isMain {
			continue
		}
		out = append(out, cfg.Name)
	}
	return out
}

// GetSubConfiguration resolves a sub-configuration override for dep,
// declared either inside configName or at the recipe root (spec.md §4.2
// getSubConfiguration).
func (p *Package) GetSubConfiguration(configName, dep string) (string, bool) {
	if cfg, ok := p.Recipe.Configuration(configName); ok {
		if v, ok := cfg.Settings.SubConfigurations[dep]; ok {
			return v, true
		}
	}
	if v, ok := p.Recipe.Root.SubConfigurations[dep]; ok {
		return v, true
	}
	return "", false
}

// builtinBuildType mirrors one of the fixed named build-type presets
// (spec.md §4.2 addBuildTypeSettings).
type builtinBuildType struct {
	options recipe.BuildOption
	dflags  []string
}

var builtinBuildTypes = map[string]builtinBuildType{
	"plain": {},
	"debug": {options: recipe.OptionDebugMode | recipe.OptionDebugInfo},
	"release": {options: recipe.OptionReleaseMode | recipe.OptionOptimize | recipe.OptionInline},
	"release-debug": {options: recipe.OptionReleaseMode | recipe.OptionOptimize | recipe.OptionInline | recipe.OptionDebugInfo},
	"release-nobounds": {options: recipe.OptionReleaseMode | recipe.OptionOptimize | recipe.OptionInline | recipe.OptionNoBoundsCheck},
	"unittest": {options: recipe.OptionUnittests | recipe.OptionDebugMode | recipe.OptionDebugInfo},
	"docs": {options: recipe.OptionSyntaxOnly, dflags: []string{"-D", "-Dddocs"}},
	"ddox": {options: recipe.OptionSyntaxOnly, dflags: []string{"-D", "-Dddocs", "-X", "-Xfdocs.json"}},
	"profile": {options: recipe.OptionProfile | recipe.OptionOptimize | recipe.OptionInline | recipe.OptionDebugInfo},
	"profile-gc": {options: recipe.OptionProfileGC | recipe.OptionDebugInfo},
	"cov": {options: recipe.OptionCoverage},
	"unittest-cov": {options: recipe.OptionUnittests | recipe.OptionCoverage},
}

// dflagsBuildType is the special "$DFLAGS" build type that pulls extra
// compiler flags from the environment rather than a fixed preset.
const dflagsBuildType = "$DFLAGS"

// AddBuildTypeSettings mixes the named build type into dst (spec.md
// §4.2 addBuildTypeSettings). A build type declared in the recipe's own
// BuildTypes map overrides a same-named built-in; "$DFLAGS" pulls extra
// flags from the DFLAGS environment variable.
func (p *Package) AddBuildTypeSettings(dst *recipe.Settings, platform recipe.Platform, buildType string) error {
	if buildType == dflagsBuildType {
		if v := os.Getenv(dpaths.EnvDFlags); v != "" {
			dst.DFlags = append(dst.DFlags, strings.Fields(v)...)
		}
		return nil
	}

	if tmpl, ok := p.Recipe.BuildTypes[buildType]; ok {
		dst.Append(tmpl.Resolve(platform))
		return nil
	}

	builtin, ok := builtinBuildTypes[buildType]
	if !ok {
		return derrors.Newf(derrors.UnknownBuildType, "package %q has no build type %q", p.QualifiedName(), buildType)
	}
	dst.BuildOptions |= builtin.options
	dst.DFlags = append(dst.DFlags, builtin.dflags...)
	return nil
}

// HasDependency reports whether configName declares a dependency named
// name for platform, root template included.
func (p *Package) HasDependency(platform recipe.Platform, configName, name string) bool {
	_, ok := p.GetDependencies(platform, configName)[name]
	return ok
}

// GetDependencies returns the dependency map for configName on
// platform, merging the root template's dependencies with the
// configuration's own (spec.md §4.2 getDependencies).
func (p *Package) GetDependencies(platform recipe.Platform, configName string) map[string]version.Dependency {
	merged, err := p.mergedTemplate(configName)
	if err != nil {
		return nil
	}
	return merged.Resolve(platform).Dependencies
}
