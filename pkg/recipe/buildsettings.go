package recipe

import "github.com/waypack/waypack/pkg/version"

// TargetType enumerates what a configuration builds.
type TargetType int

const (
	TargetAutodetect TargetType = iota
	TargetNone
	TargetExecutable
	TargetLibrary
	TargetStaticLibrary
	TargetDynamicLibrary
	TargetSourceLibrary
)

var targetTypeNames = map[string]TargetType{
	"autodetect":     TargetAutodetect,
	"none":           TargetNone,
	"executable":     TargetExecutable,
	"library":        TargetLibrary,
	"staticLibrary":  TargetStaticLibrary,
	"dynamicLibrary": TargetDynamicLibrary,
	"sourceLibrary":  TargetSourceLibrary,
}

// ParseTargetType maps a recipe string onto a TargetType.
func ParseTargetType(s string) (TargetType, bool) {
	t, ok := targetTypeNames[s]
	return t, ok
}

// String renders the target type back to its recipe spelling.
func (t TargetType) String() string {
	for k, v := range targetTypeNames {
		if v == t {
			return k
		}
	}
	return "autodetect"
}

// BuildOption is a single bit in the build-options bitset.
type BuildOption uint64

const (
	OptionNone BuildOption = 0
	OptionDebugMode BuildOption = 1 << iota
	OptionReleaseMode
	OptionCoverage
	OptionDebugInfo
	OptionOptimize
	OptionInline
	OptionNoBoundsCheck
	OptionUnittests
	OptionSyntaxOnly
	OptionWarnings
	OptionWarningsAsErrors
	OptionIgnoreUnknownPragmas
	OptionProfile
	OptionProfileGC
	OptionVerbose
)

// Requirement is a single bit in the build-requirements bitset.
type Requirement uint64

const (
	RequireNone Requirement = 0
	RequireAllowWarnings Requirement = 1 << iota
	RequireAutoBoundsCheck
	RequireDisallowInlining
	RequireNoDefaultFlags
	RequireRelaxedValidation
)

// taggedString is one platform-scoped scalar value.
type taggedString struct {
	Filter string
	Value  string
}

// stringField holds a scalar setting's declarations across platform
// filters. Resolution folds them in declaration order: the last entry
// whose filter admits the target platform wins.
type stringField []taggedString

func (f stringField) resolve(p Platform) (string, bool) {
	var (
		val   string
		found bool
	)
	for _, t := range f {
		if MatchesFilter(t.Filter, p) {
			val = t.Value
			found = true
		}
	}
	return val, found
}

func (f stringField) merge(other stringField) stringField {
	return append(append(stringField{}, f...), other...)
}

// stringListField holds a list-valued setting's declarations. Unlike
// stringField, all matching filters contribute (lists accumulate).
type taggedStrings struct {
	Filter string
	Values []string
}

type stringListField []taggedStrings

func (f stringListField) resolve(p Platform) []string {
	var out []string
	for _, t := range f {
		if MatchesFilter(t.Filter, p) {
			out = append(out, t.Values...)
		}
	}
	return out
}

func (f stringListField) merge(other stringListField) stringListField {
	return append(append(stringListField{}, f...), other...)
}

// declared reports whether any value has been recorded at all, across
// every platform filter. Used by Package construction to decide whether
// a directory-convention default should apply (spec.md §4.2 step 3).
func (f stringListField) declared() bool {
	return len(f) > 0
}

// allValues returns every declared value across every platform filter,
// used where a construction-time scan needs to consider all
// possibilities regardless of which platform ultimately builds (spec.md
// §4.2 step 4's main-file detection).
func (f stringListField) allValues() []string {
	var out []string
	for _, t := range f {
		out = append(out, t.Values...)
	}
	return out
}

// taggedDeps holds one platform-scoped dependency map declaration.
type taggedDeps struct {
	Filter string
	Deps   map[string]version.Dependency
}

type dependencyField []taggedDeps

func (f dependencyField) resolve(p Platform) map[string]version.Dependency {
	out := make(map[string]version.Dependency)
	for _, t := range f {
		if MatchesFilter(t.Filter, p) {
			for k, v := range t.Deps {
				out[k] = v
			}
		}
	}
	return out
}

func (f dependencyField) merge(other dependencyField) dependencyField {
	return append(append(dependencyField{}, f...), other...)
}

// taggedFlags holds one platform-scoped bitset contribution.
type taggedFlags struct {
	Filter string
	Bits   uint64
}

type flagsField []taggedFlags

func (f flagsField) resolve(p Platform) uint64 {
	var bits uint64
	for _, t := range f {
		if MatchesFilter(t.Filter, p) {
			bits |= t.Bits
		}
	}
	return bits
}

func (f flagsField) merge(other flagsField) flagsField {
	return append(append(flagsField{}, f...), other...)
}

// Template is the pre-platform-filter form of a build settings block
// (spec.md §3 BuildSettingsTemplate): every field carries its
// declarations across whatever platform filters the recipe used, to be
// folded down to concrete Settings once a Platform is known.
type Template struct {
	TargetType       stringField
	TargetPath       stringField
	TargetName       stringField
	WorkingDirectory stringField
	MainSourceFile   stringField

	SourcePaths       stringListField
	ImportPaths       stringListField
	StringImportPaths stringListField
	SourceFiles       stringListField
	ImportFiles       stringListField
	StringImportFiles stringListField
	ExcludedSourceFiles stringListField

	Dependencies dependencyField

	// SubConfigurations pins a dependency name to one of its own
	// configurations (§4.2 getSubConfiguration).
	SubConfigurations map[string]string

	BuildRequirements flagsField
	BuildOptions      flagsField

	DFlags    stringListField
	LFlags    stringListField
	Libs      stringListField
	Versions  stringListField
	DebugVersions stringListField

	PreGenerateCommands  stringListField
	PostGenerateCommands stringListField
	PreBuildCommands     stringListField
	PostBuildCommands    stringListField
}

// Merge appends dst's declarations after those already in the receiver,
// matching §4.2's "root template first, then configuration template
// (configuration overrides and extends)" order: since scalar fields keep
// the *last* matching entry, appending the configuration template after
// the root template lets configuration-level values win ties while list
// fields from both still accumulate.
func (t Template) Merge(dst Template) Template {
	return Template{
		TargetType:       t.TargetType.merge(dst.TargetType),
		TargetPath:       t.TargetPath.merge(dst.TargetPath),
		TargetName:       t.TargetName.merge(dst.TargetName),
		WorkingDirectory: t.WorkingDirectory.merge(dst.WorkingDirectory),
		MainSourceFile:   t.MainSourceFile.merge(dst.MainSourceFile),

		SourcePaths:         t.SourcePaths.merge(dst.SourcePaths),
		ImportPaths:         t.ImportPaths.merge(dst.ImportPaths),
		StringImportPaths:   t.StringImportPaths.merge(dst.StringImportPaths),
		SourceFiles:         t.SourceFiles.merge(dst.SourceFiles),
		ImportFiles:         t.ImportFiles.merge(dst.ImportFiles),
		StringImportFiles:   t.StringImportFiles.merge(dst.StringImportFiles),
		ExcludedSourceFiles: t.ExcludedSourceFiles.merge(dst.ExcludedSourceFiles),

		Dependencies: t.Dependencies.merge(dst.Dependencies),

		SubConfigurations: mergeStringMap(t.SubConfigurations, dst.SubConfigurations),

		BuildRequirements: t.BuildRequirements.merge(dst.BuildRequirements),
		BuildOptions:      t.BuildOptions.merge(dst.BuildOptions),

		DFlags:        t.DFlags.merge(dst.DFlags),
		LFlags:        t.LFlags.merge(dst.LFlags),
		Libs:          t.Libs.merge(dst.Libs),
		Versions:      t.Versions.merge(dst.Versions),
		DebugVersions: t.DebugVersions.merge(dst.DebugVersions),

		PreGenerateCommands:  t.PreGenerateCommands.merge(dst.PreGenerateCommands),
		PostGenerateCommands: t.PostGenerateCommands.merge(dst.PostGenerateCommands),
		PreBuildCommands:     t.PreBuildCommands.merge(dst.PreBuildCommands),
		PostBuildCommands:    t.PostBuildCommands.merge(dst.PostBuildCommands),
	}
}

func mergeStringMap(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// StringImportPathsDeclared reports whether the recipe declared any
// string-import paths of its own, under any platform filter.
func (t Template) StringImportPathsDeclared() bool { return t.StringImportPaths.declared() }

// SourcePathsDeclared reports whether the recipe declared any source
// paths of its own, under any platform filter.
func (t Template) SourcePathsDeclared() bool { return t.SourcePaths.declared() }

// AllSourcePaths returns every declared source path across every
// platform filter, used by construction-time main-file detection which
// must consider all platforms a recipe might eventually build for.
func (t Template) AllSourcePaths() []string { return t.SourcePaths.allValues() }

// AddSourcePath records an unconditional (platform-filter "") source and
// import path, used to apply the "source/"/"src/" directory-convention
// default.
func (t *Template) AddSourcePath(path string) {
	t.SourcePaths = append(t.SourcePaths, taggedStrings{Values: []string{path}})
	t.ImportPaths = append(t.ImportPaths, taggedStrings{Values: []string{path}})
}

// AddStringImportPath records an unconditional string-import path, used
// to apply the "views/" directory-convention default.
func (t *Template) AddStringImportPath(path string) {
	t.StringImportPaths = append(t.StringImportPaths, taggedStrings{Values: []string{path}})
}

// TargetTypeString resolves the template's own target type against the
// zero Platform (i.e. only its unconditional declarations), returning
// ok=false if none was declared.
func (t Template) TargetTypeString() (string, bool) {
	return t.TargetType.resolve(Platform{})
}

// Settings is the resolved, platform-concrete form of a Template.
type Settings struct {
	TargetType       TargetType
	TargetPath       string
	TargetName       string
	WorkingDirectory string
	MainSourceFile   string

	SourcePaths         []string
	ImportPaths         []string
	StringImportPaths   []string
	SourceFiles         []string
	ImportFiles         []string
	StringImportFiles   []string
	ExcludedSourceFiles []string

	Dependencies map[string]version.Dependency

	BuildRequirements Requirement
	BuildOptions      BuildOption

	DFlags        []string
	LFlags        []string
	Libs          []string
	Versions      []string
	DebugVersions []string

	PreGenerateCommands  []string
	PostGenerateCommands []string
	PreBuildCommands     []string
	PostBuildCommands    []string
}

// Resolve folds a Template down to concrete Settings for platform p.
func (t Template) Resolve(p Platform) Settings {
	targetTypeStr, _ := t.TargetType.resolve(p)
	tt, _ := ParseTargetType(targetTypeStr)
	targetPath, _ := t.TargetPath.resolve(p)
	targetName, _ := t.TargetName.resolve(p)
	workDir, _ := t.WorkingDirectory.resolve(p)
	mainFile, _ := t.MainSourceFile.resolve(p)

	return Settings{
		TargetType:       tt,
		TargetPath:       targetPath,
		TargetName:       targetName,
		WorkingDirectory: workDir,
		MainSourceFile:   mainFile,

		SourcePaths:         t.SourcePaths.resolve(p),
		ImportPaths:         t.ImportPaths.resolve(p),
		StringImportPaths:   t.StringImportPaths.resolve(p),
		SourceFiles:         t.SourceFiles.resolve(p),
		ImportFiles:         t.ImportFiles.resolve(p),
		StringImportFiles:   t.StringImportFiles.resolve(p),
		ExcludedSourceFiles: t.ExcludedSourceFiles.resolve(p),

		Dependencies: t.Dependencies.resolve(p),

		BuildRequirements: Requirement(t.BuildRequirements.resolve(p)),
		BuildOptions:      BuildOption(t.BuildOptions.resolve(p)),

		DFlags:        t.DFlags.resolve(p),
		LFlags:        t.LFlags.resolve(p),
		Libs:          t.Libs.resolve(p),
		Versions:      t.Versions.resolve(p),
		DebugVersions: t.DebugVersions.resolve(p),

		PreGenerateCommands:  t.PreGenerateCommands.resolve(p),
		PostGenerateCommands: t.PostGenerateCommands.resolve(p),
		PreBuildCommands:     t.PreBuildCommands.resolve(p),
		PostBuildCommands:    t.PostBuildCommands.resolve(p),
	}
}

// Append merges settings from src into dst in place, used by
// Package.addBuildTypeSettings and Project.addBuildSettings to
// accumulate contributions from multiple packages/build types.
func (s *Settings) Append(src Settings) {
	s.SourcePaths = append(s.SourcePaths, src.SourcePaths...)
	s.ImportPaths = append(s.ImportPaths, src.ImportPaths...)
	s.StringImportPaths = append(s.StringImportPaths, src.StringImportPaths...)
	s.SourceFiles = append(s.SourceFiles, src.SourceFiles...)
	s.ImportFiles = append(s.ImportFiles, src.ImportFiles...)
	s.StringImportFiles = append(s.StringImportFiles, src.StringImportFiles...)
	s.ExcludedSourceFiles = append(s.ExcludedSourceFiles, src.ExcludedSourceFiles...)
	s.BuildRequirements |= src.BuildRequirements
	s.BuildOptions |= src.BuildOptions
	s.DFlags = append(s.DFlags, src.DFlags...)
	s.LFlags = append(s.LFlags, src.LFlags...)
	s.Libs = append(s.Libs, src.Libs...)
	s.Versions = append(s.Versions, src.Versions...)
	s.DebugVersions = append(s.DebugVersions, src.DebugVersions...)
	s.PreGenerateCommands = append(s.PreGenerateCommands, src.PreGenerateCommands...)
	s.PostGenerateCommands = append(s.PostGenerateCommands, src.PostGenerateCommands...)
	s.PreBuildCommands = append(s.PreBuildCommands, src.PreBuildCommands...)
	s.PostBuildCommands = append(s.PostBuildCommands, src.PostBuildCommands...)
	if src.TargetType != TargetAutodetect {
		s.TargetType = src.TargetType
	}
	if src.TargetPath != "" {
		s.TargetPath = src.TargetPath
	}
	if src.TargetName != "" {
		s.TargetName = src.TargetName
	}
	if src.WorkingDirectory != "" {
		s.WorkingDirectory = src.WorkingDirectory
	}
	if src.MainSourceFile != "" {
		s.MainSourceFile = src.MainSourceFile
	}
	if s.Dependencies == nil {
		s.Dependencies = make(map[string]version.Dependency)
	}
	for k, v := range src.Dependencies {
		s.Dependencies[k] = v
	}
}
