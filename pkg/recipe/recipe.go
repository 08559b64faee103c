// Package recipe implements the Recipe model (spec.md §3) and its two
// textual codecs (spec.md §4.1): the in-memory representation of a
// package description, independent of any particular file format.
package recipe

import (
	"regexp"

	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/version"
)

// NamePattern is the allowed shape for a package name: lowercase
// alphanumeric plus '-' and '_'.
var NamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Configuration is one named variant of build settings within a recipe.
type Configuration struct {
	Name      string
	Platforms []string
	Settings  Template
}

// SubPackage is a sub-package declared inside another package's recipe,
// either inline (Recipe non-nil) or by relative path (Path non-empty).
type SubPackage struct {
	Path   string
	Recipe *Recipe
}

// Recipe is the parsed contents of a package description file.
type Recipe struct {
	Name        string
	Version     *version.Version
	Description string
	Authors     []string
	License     string
	Homepage    string

	Root          Template
	Configurations []Configuration
	BuildTypes    map[string]Template
	SubPackages   []SubPackage

	// Warnings collects non-fatal lint diagnostics produced while
	// decoding or defaulting (spec.md §4.1 UnknownAttribute, §4.2 lint
	// warnings).
	Warnings []string
}

// Validate checks the invariants from spec.md §3: unique configuration
// names, no nested sub-packages inside an inline sub-package recipe, and
// a well-formed name (when non-empty; an empty name is caught elsewhere
// as a "missing name" lint warning rather than a hard failure).
func (r *Recipe) Validate() error {
	if r.Name != "" && !NamePattern.MatchString(r.Name) {
		return derrors.Newf(derrors.InvalidValue, "package name %q must be lowercase alphanumeric, '-' or '_'", r.Name)
	}
	seen := make(map[string]bool, len(r.Configurations))
	for _, c := range r.Configurations {
		if seen[c.Name] {
			return derrors.Newf(derrors.InvalidValue, "duplicate configuration name %q", c.Name)
		}
		seen[c.Name] = true
	}
	for _, sp := range r.SubPackages {
		if sp.Recipe != nil && len(sp.Recipe.SubPackages) > 0 {
			return derrors.Newf(derrors.InvalidValue, "inline sub-package %q may not declare further sub-packages", sp.Recipe.Name)
		}
	}
	return nil
}

// NewSynthesizedConfiguration builds a Configuration of the shape
// Package construction synthesizes when a recipe declares none of its
// own (spec.md §4.2 step 5): an unconditional target type, an optional
// main source file, and an optional list of excluded source files (used
// to carve the application entry point out of the library variant).
func NewSynthesizedConfiguration(name, targetType, mainFile string, excludedSourceFiles []string) Configuration {
	settings := Template{TargetType: stringField{{Value: targetType}}}
	if mainFile != "" {
		settings.MainSourceFile = stringField{{Value: mainFile}}
	}
	if len(excludedSourceFiles) > 0 {
		settings.ExcludedSourceFiles = stringListField{{Values: excludedSourceFiles}}
	}
	return Configuration{Name: name, Settings: settings}
}

// ConfigurationNames returns configuration names in declaration order.
func (r *Recipe) ConfigurationNames() []string {
	names := make([]string, len(r.Configurations))
	for i, c := range r.Configurations {
		names[i] = c.Name
	}
	return names
}

// Configuration looks up a configuration by name.
func (r *Recipe) Configuration(name string) (*Configuration, bool) {
	for i := range r.Configurations {
		if r.Configurations[i].Name == name {
			return &r.Configurations[i], true
		}
	}
	return nil, false
}

// ApplyTargetTypeDefaults implements the shared defaulting rule from
// spec.md §4.1: a configuration with no explicit target type inherits
// the recipe's top-level target type, or "library" if that is also
// autodetect/absent. This only sets a *scalar unfiltered* fallback: an
// explicit platform-tagged declaration on the configuration still wins
// for platforms it names.
func ApplyTargetTypeDefaults(r *Recipe) {
	rootType, rootHas := r.Root.TargetType.resolve(Platform{})
	fallback := "library"
	if rootHas && rootType != "autodetect" && rootType != "" {
		fallback = rootType
	}
	for i := range r.Configurations {
		cfg := &r.Configurations[i]
		if _, has := cfg.Settings.TargetType.resolve(Platform{}); !has {
			cfg.Settings.TargetType = append(cfg.Settings.TargetType, taggedString{Value: fallback})
		}
	}
}
