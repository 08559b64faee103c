package recipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/version"
)

// jsonScalarFields and jsonListFields map a JSON attribute base name (the part
// before any "-platform-filter" suffix) onto how it is stored on a
// Template. Recognizing the base name lets DecodeJSON strip a trailing
// platform filter from any key, per spec.md §4.1.
var jsonScalarFields = map[string]func(*Template, string, string){
	"targetType":       func(t *Template, filter, v string) { t.TargetType = append(t.TargetType, taggedString{filter, v}) },
	"targetPath":       func(t *Template, filter, v string) { t.TargetPath = append(t.TargetPath, taggedString{filter, v}) },
	"targetName":       func(t *Template, filter, v string) { t.TargetName = append(t.TargetName, taggedString{filter, v}) },
	"workingDirectory": func(t *Template, filter, v string) { t.WorkingDirectory = append(t.WorkingDirectory, taggedString{filter, v}) },
	"mainSourceFile":   func(t *Template, filter, v string) { t.MainSourceFile = append(t.MainSourceFile, taggedString{filter, v}) },
}

var jsonListFields = map[string]func(*Template, string, []string){
	"sourcePaths":         func(t *Template, filter string, v []string) { t.SourcePaths = append(t.SourcePaths, taggedStrings{filter, v}) },
	"importPaths":         func(t *Template, filter string, v []string) { t.ImportPaths = append(t.ImportPaths, taggedStrings{filter, v}) },
	"stringImportPaths":   func(t *Template, filter string, v []string) { t.StringImportPaths = append(t.StringImportPaths, taggedStrings{filter, v}) },
	"sourceFiles":         func(t *Template, filter string, v []string) { t.SourceFiles = append(t.SourceFiles, taggedStrings{filter, v}) },
	"importFiles":         func(t *Template, filter string, v []string) { t.ImportFiles = append(t.ImportFiles, taggedStrings{filter, v}) },
	"stringImportFiles":   func(t *Template, filter string, v []string) { t.StringImportFiles = append(t.StringImportFiles, taggedStrings{filter, v}) },
	"excludedSourceFiles": func(t *Template, filter string, v []string) { t.ExcludedSourceFiles = append(t.ExcludedSourceFiles, taggedStrings{filter, v}) },
	"dflags":              func(t *Template, filter string, v []string) { t.DFlags = append(t.DFlags, taggedStrings{filter, v}) },
	"lflags":              func(t *Template, filter string, v []string) { t.LFlags = append(t.LFlags, taggedStrings{filter, v}) },
	"libs":                func(t *Template, filter string, v []string) { t.Libs = append(t.Libs, taggedStrings{filter, v}) },
	"versions":            func(t *Template, filter string, v []string) { t.Versions = append(t.Versions, taggedStrings{filter, v}) },
	"debugVersions":       func(t *Template, filter string, v []string) { t.DebugVersions = append(t.DebugVersions, taggedStrings{filter, v}) },
	"preGenerateCommands":  func(t *Template, filter string, v []string) { t.PreGenerateCommands = append(t.PreGenerateCommands, taggedStrings{filter, v}) },
	"postGenerateCommands": func(t *Template, filter string, v []string) { t.PostGenerateCommands = append(t.PostGenerateCommands, taggedStrings{filter, v}) },
	"preBuildCommands":     func(t *Template, filter string, v []string) { t.PreBuildCommands = append(t.PreBuildCommands, taggedStrings{filter, v}) },
	"postBuildCommands":    func(t *Template, filter string, v []string) { t.PostBuildCommands = append(t.PostBuildCommands, taggedStrings{filter, v}) },
}

var recognizedTopLevel = map[string]bool{
	"name": true, "version": true, "description": true, "authors": true,
	"license": true, "homepage": true, "configurations": true,
	"buildTypes": true, "subPackages": true, "dependencies": true,
	"subConfigurations": true, "buildRequirements": true, "buildOptions": true,
}

// splitFilterSuffix separates a JSON key like "dflags-linux-x86_64" into
// its base attribute name and platform filter ("linux-x86_64"). Keys
// with no recognized base (after trying progressively shorter prefixes)
// are returned unsplit with an empty filter.
func splitFilterSuffix(key string, known map[string]bool) (base, filter string) {
	if known[key] {
		return key, ""
	}
	parts := strings.Split(key, "-")
	for i := len(parts) - 1; i > 0; i-- {
		candidate := strings.Join(parts[:i], "-")
		if known[candidate] {
			return candidate, strings.Join(parts[i:], "-")
		}
	}
	return key, ""
}

func allKnownBases() map[string]bool {
	known := make(map[string]bool)
	for k := range jsonScalarFields {
		known[k] = true
	}
	for k := range jsonListFields {
		known[k] = true
	}
	return known
}

// DecodeJSON parses raw JSON recipe bytes into a Recipe. parentName, if
// non-empty, is used only to make error messages readable; the decoded
// recipe's Name field always comes from the "name" key when present.
func DecodeJSON(data []byte, parentName string) (*Recipe, error) {
	data = stripBOM(data)

	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, derrors.Wrapf(err, derrors.MalformedSyntax, "malformed JSON recipe")
	}

	r := &Recipe{BuildTypes: make(map[string]Template)}
	known := allKnownBases()

	for key, val := range raw {
		base, filter := splitFilterSuffix(key, known)
		switch base {
		case "name":
			s, _ := val.(string)
			r.Name = s
		case "version":
			s, _ := val.(string)
			if s != "" {
				v, err := version.Parse(s)
				if err != nil {
					return nil, derrors.Wrapf(err, derrors.InvalidValue, "invalid version %q", s)
				}
				r.Version = &v
			}
		case "description":
			r.Description, _ = val.(string)
		case "license":
			r.License, _ = val.(string)
		case "homepage":
			r.Homepage, _ = val.(string)
		case "authors":
			r.Authors = toStringSlice(val)
		case "dependencies":
			deps, err := decodeDependencyMap(val)
			if err != nil {
				return nil, err
			}
			r.Root.Dependencies = append(r.Root.Dependencies, taggedDeps{filter, deps})
		case "subConfigurations":
			m, _ := val.(map[string]interface{})
			r.Root.SubConfigurations = mergeStringMap(r.Root.SubConfigurations, toStringMap(m))
		case "buildRequirements":
			r.Root.BuildRequirements = append(r.Root.BuildRequirements, taggedFlags{filter, decodeFlagBits(val, requirementBits)})
		case "buildOptions":
			r.Root.BuildOptions = append(r.Root.BuildOptions, taggedFlags{filter, decodeFlagBits(val, optionBits)})
		case "configurations":
			cfgs, err := decodeConfigurations(val)
			if err != nil {
				return nil, err
			}
			r.Configurations = cfgs
		case "buildTypes":
			bts, err := decodeBuildTypes(val)
			if err != nil {
				return nil, err
			}
			r.BuildTypes = bts
		case "subPackages":
			sps, err := decodeSubPackages(val)
			if err != nil {
				return nil, err
			}
			r.SubPackages = sps
		default:
			if fn, ok := jsonScalarFields[base]; ok {
				s, _ := val.(string)
				fn(&r.Root, filter, s)
			} else if fn, ok := jsonListFields[base]; ok {
				fn(&r.Root, filter, toStringSlice(val))
			} else {
				r.Warnings = append(r.Warnings, fmt.Sprintf("unknown attribute %q ignored", key))
			}
		}
	}

	ApplyTargetTypeDefaults(r)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeConfigurations(val interface{}) ([]Configuration, error) {
	arr, ok := val.([]interface{})
	if !ok {
		return nil, derrors.New(derrors.InvalidValue, "\"configurations\" must be an array")
	}
	known := allKnownBases()
	var out []Configuration
	for _, item := range arr {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, derrors.New(derrors.InvalidValue, "each configuration must be an object")
		}
		c := Configuration{}
		for key, v := range obj {
			base, filter := splitFilterSuffix(key, known)
			switch base {
			case "name":
				c.Name, _ = v.(string)
			case "platforms":
				c.Platforms = toStringSlice(v)
			case "dependencies":
				deps, err := decodeDependencyMap(v)
				if err != nil {
					return nil, err
				}
				c.Settings.Dependencies = append(c.Settings.Dependencies, taggedDeps{filter, deps})
			case "subConfigurations":
				m, _ := v.(map[string]interface{})
				c.Settings.SubConfigurations = mergeStringMap(c.Settings.SubConfigurations, toStringMap(m))
			case "buildRequirements":
				c.Settings.BuildRequirements = append(c.Settings.BuildRequirements, taggedFlags{filter, decodeFlagBits(v, requirementBits)})
			case "buildOptions":
				c.Settings.BuildOptions = append(c.Settings.BuildOptions, taggedFlags{filter, decodeFlagBits(v, optionBits)})
			default:
				if fn, ok := jsonScalarFields[base]; ok {
					s, _ := v.(string)
					fn(&c.Settings, filter, s)
				} else if fn, ok := jsonListFields[base]; ok {
					fn(&c.Settings, filter, toStringSlice(v))
				}
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeBuildTypes(val interface{}) (map[string]Template, error) {
	obj, ok := val.(map[string]interface{})
	if !ok {
		return nil, derrors.New(derrors.InvalidValue, "\"buildTypes\" must be an object")
	}
	known := allKnownBases()
	out := make(map[string]Template, len(obj))
	for name, raw := range obj {
		settingsObj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		var t Template
		for key, v := range settingsObj {
			base, filter := splitFilterSuffix(key, known)
			if fn, ok := jsonScalarFields[base]; ok {
				s, _ := v.(string)
				fn(&t, filter, s)
			} else if fn, ok := jsonListFields[base]; ok {
				fn(&t, filter, toStringSlice(v))
			}
		}
		out[name] = t
	}
	return out, nil
}

func decodeSubPackages(val interface{}) ([]SubPackage, error) {
	arr, ok := val.([]interface{})
	if !ok {
		return nil, derrors.New(derrors.InvalidValue, "\"subPackages\" must be an array")
	}
	var out []SubPackage
	for _, item := range arr {
		switch v := item.(type) {
		case string:
			out = append(out, SubPackage{Path: v})
		case map[string]interface{}, []byte:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, derrors.Wrap(err, derrors.InvalidValue, "invalid inline sub-package")
			}
			inline, err := DecodeJSON(raw, "")
			if err != nil {
				return nil, err
			}
			out = append(out, SubPackage{Recipe: inline})
		default:
			return nil, derrors.New(derrors.InvalidValue, "sub-package entries must be a string path or object")
		}
	}
	return out, nil
}

func decodeDependencyMap(val interface{}) (map[string]version.Dependency, error) {
	obj, ok := val.(map[string]interface{})
	if !ok {
		return nil, derrors.New(derrors.InvalidValue, "\"dependencies\" must be an object")
	}
	out := make(map[string]version.Dependency, len(obj))
	for name, raw := range obj {
		switch v := raw.(type) {
		case string:
			dep, err := version.ParseSpec(v)
			if err != nil {
				return nil, derrors.Wrapf(err, derrors.InvalidValue, "dependency %q: %v", name, err)
			}
			out[name] = dep
		case map[string]interface{}:
			dep, err := decodeDependencyObject(v)
			if err != nil {
				return nil, derrors.Wrapf(err, derrors.InvalidValue, "dependency %q: %v", name, err)
			}
			out[name] = dep
		default:
			return nil, derrors.Newf(derrors.InvalidValue, "dependency %q has an unsupported shape", name)
		}
	}
	return out, nil
}

func decodeDependencyObject(obj map[string]interface{}) (version.Dependency, error) {
	var dep version.Dependency
	var err error
	if p, ok := obj["path"].(string); ok && p != "" {
		dep = version.FromPath(p)
	} else if v, ok := obj["version"].(string); ok && v != "" {
		dep, err = version.ParseSpec(v)
		if err != nil {
			return version.Dependency{}, err
		}
	} else {
		return version.Dependency{}, fmt.Errorf("missing \"version\" or \"path\"")
	}
	if b, ok := obj["optional"].(bool); ok {
		dep.Optional = b
	}
	if b, ok := obj["default"].(bool); ok {
		dep.Default = b
	}
	return dep, nil
}

func toStringSlice(val interface{}) []string {
	switch v := val.(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toStringMap(m map[string]interface{}) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

var optionBits = map[string]uint64{
	"debugMode": uint64(OptionDebugMode), "releaseMode": uint64(OptionReleaseMode),
	"coverage": uint64(OptionCoverage), "debugInfo": uint64(OptionDebugInfo),
	"optimize": uint64(OptionOptimize), "inline": uint64(OptionInline),
	"noBoundsCheck": uint64(OptionNoBoundsCheck), "unittests": uint64(OptionUnittests),
	"syntaxOnly": uint64(OptionSyntaxOnly), "warnings": uint64(OptionWarnings),
	"warningsAsErrors": uint64(OptionWarningsAsErrors), "ignoreUnknownPragmas": uint64(OptionIgnoreUnknownPragmas),
	"profile": uint64(OptionProfile), "profileGC": uint64(OptionProfileGC), "verbose": uint64(OptionVerbose),
}

var requirementBits = map[string]uint64{
	"allowWarnings": uint64(RequireAllowWarnings), "autoBoundsCheck": uint64(RequireAutoBoundsCheck),
	"disallowInlining": uint64(RequireDisallowInlining), "noDefaultFlags": uint64(RequireNoDefaultFlags),
	"relaxedValidation": uint64(RequireRelaxedValidation),
}

func decodeFlagBits(val interface{}, table map[string]uint64) uint64 {
	var bits uint64
	for _, name := range toStringSlice(val) {
		bits |= table[name]
	}
	return bits
}

// EncodeJSON serializes a Recipe back to its canonical JSON form. Key
// order is not guaranteed to match the original document, only value
// equivalence under DecodeJSON.
func EncodeJSON(r *Recipe, p Platform) ([]byte, error) {
	out := map[string]interface{}{}
	if r.Name != "" {
		out["name"] = r.Name
	}
	if r.Version != nil {
		out["version"] = r.Version.String()
	}
	if r.Description != "" {
		out["description"] = r.Description
	}
	if r.License != "" {
		out["license"] = r.License
	}
	if r.Homepage != "" {
		out["homepage"] = r.Homepage
	}
	if len(r.Authors) > 0 {
		out["authors"] = r.Authors
	}
	encodeTemplateInto(out, r.Root, p)

	if len(r.Configurations) > 0 {
		var cfgs []interface{}
		for _, c := range r.Configurations {
			cfgObj := map[string]interface{}{"name": c.Name}
			if len(c.Platforms) > 0 {
				cfgObj["platforms"] = c.Platforms
			}
			encodeTemplateInto(cfgObj, c.Settings, p)
			cfgs = append(cfgs, cfgObj)
		}
		out["configurations"] = cfgs
	}

	if len(r.BuildTypes) > 0 {
		bts := map[string]interface{}{}
		names := make([]string, 0, len(r.BuildTypes))
		for name := range r.BuildTypes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			obj := map[string]interface{}{}
			encodeTemplateInto(obj, r.BuildTypes[name], p)
			bts[name] = obj
		}
		out["buildTypes"] = bts
	}

	if len(r.SubPackages) > 0 {
		var sps []interface{}
		for _, sp := range r.SubPackages {
			if sp.Recipe != nil {
				inline, err := EncodeJSON(sp.Recipe, p)
				if err != nil {
					return nil, err
				}
				var m map[string]interface{}
				if err := json.Unmarshal(inline, &m); err != nil {
					return nil, err
				}
				sps = append(sps, m)
			} else {
				sps = append(sps, sp.Path)
			}
		}
		out["subPackages"] = sps
	}

	return json.MarshalIndent(out, "", "  ")
}

// encodeTemplateInto writes every platform-filter variant declared on t,
// not just the one matching p, so decode(encode(t)) keeps every
// <field>-<filter> key the original recipe carried.
func encodeTemplateInto(out map[string]interface{}, t Template, p Platform) {
	encodeStringField(out, "targetType", t.TargetType)
	encodeStringField(out, "targetPath", t.TargetPath)
	encodeStringField(out, "targetName", t.TargetName)
	encodeStringField(out, "workingDirectory", t.WorkingDirectory)
	encodeStringField(out, "mainSourceFile", t.MainSourceFile)

	encodeStringListField(out, "sourcePaths", t.SourcePaths)
	encodeStringListField(out, "importPaths", t.ImportPaths)
	encodeStringListField(out, "stringImportPaths", t.StringImportPaths)
	encodeStringListField(out, "sourceFiles", t.SourceFiles)
	encodeStringListField(out, "importFiles", t.ImportFiles)
	encodeStringListField(out, "stringImportFiles", t.StringImportFiles)
	encodeStringListField(out, "excludedSourceFiles", t.ExcludedSourceFiles)
	encodeStringListField(out, "dflags", t.DFlags)
	encodeStringListField(out, "lflags", t.LFlags)
	encodeStringListField(out, "libs", t.Libs)
	encodeStringListField(out, "versions", t.Versions)
	encodeStringListField(out, "debugVersions", t.DebugVersions)
	encodeStringListField(out, "preGenerateCommands", t.PreGenerateCommands)
	encodeStringListField(out, "postGenerateCommands", t.PostGenerateCommands)
	encodeStringListField(out, "preBuildCommands", t.PreBuildCommands)
	encodeStringListField(out, "postBuildCommands", t.PostBuildCommands)

	encodeFlagsField(out, "buildRequirements", t.BuildRequirements, requirementBits)
	encodeFlagsField(out, "buildOptions", t.BuildOptions, optionBits)

	if len(t.SubConfigurations) > 0 {
		out["subConfigurations"] = t.SubConfigurations
	}

	encodeDependencyField(out, t.Dependencies)
}

// filterKey joins a base attribute name with its platform filter the way
// splitFilterSuffix expects to split it back apart.
func filterKey(base, filter string) string {
	if filter == "" {
		return base
	}
	return base + "-" + filter
}

func encodeStringField(out map[string]interface{}, base string, f stringField) {
	for _, t := range f {
		if t.Value == "" {
			continue
		}
		out[filterKey(base, t.Filter)] = t.Value
	}
}

func encodeStringListField(out map[string]interface{}, base string, f stringListField) {
	grouped := map[string][]string{}
	var order []string
	for _, t := range f {
		if len(t.Values) == 0 {
			continue
		}
		if _, ok := grouped[t.Filter]; !ok {
			order = append(order, t.Filter)
		}
		grouped[t.Filter] = append(grouped[t.Filter], t.Values...)
	}
	for _, filter := range order {
		out[filterKey(base, filter)] = grouped[filter]
	}
}

func encodeFlagsField(out map[string]interface{}, base string, f flagsField, table map[string]uint64) {
	for _, t := range f {
		if t.Bits == 0 {
			continue
		}
		out[filterKey(base, t.Filter)] = flagNames(t.Bits, table)
	}
}

// flagNames reverses decodeFlagBits, used when re-encoding a recipe.
func flagNames(bits uint64, table map[string]uint64) []string {
	names := make([]string, 0, len(table))
	for name, bit := range table {
		if bits&bit != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func encodeDependencyField(out map[string]interface{}, f dependencyField) {
	for _, t := range f {
		if len(t.Deps) == 0 {
			continue
		}
		deps := map[string]interface{}{}
		for name, d := range t.Deps {
			obj := map[string]interface{}{}
			switch d.Variant {
			case version.VariantPath:
				obj["path"] = d.Path
			default:
				obj["version"] = d.String()
			}
			if d.Optional {
				obj["optional"] = true
			}
			if d.Default {
				obj["default"] = true
			}
			deps[name] = obj
		}
		out[filterKey("dependencies", t.Filter)] = deps
	}
}
