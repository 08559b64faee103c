package recipe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/version"
)

// sdlStatement is one parsed line: a tag name, its positional string
// arguments, and its key="value" attributes (used for platform filters
// and dependency options).
type sdlStatement struct {
	line  int
	tag   string
	args  []string
	attrs map[string]string
}

// sdlToken is one lexed unit of a line: either a bare word (key empty) or
// a key="quoted value" attribute. Quoted content is captured as a whole
// even when it contains embedded spaces, e.g. version=">=1.0.0 <2.0.0".
type sdlToken struct {
	key   string
	value string
}

// tokenizeSDLLine splits one line into a tag, positional args, and
// key="value" attributes, honoring double-quoted strings. Returns
// ok=false for blank/comment lines.
func tokenizeSDLLine(line string, lineNo int) (sdlStatement, bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
		return sdlStatement{}, false, nil
	}

	var tokens []sdlToken
	i, n := 0, len(trimmed)
	for i < n {
		for i < n && (trimmed[i] == ' ' || trimmed[i] == '\t') {
			i++
		}
		if i >= n {
			break
		}

		start := i
		for i < n && trimmed[i] != ' ' && trimmed[i] != '\t' && trimmed[i] != '"' {
			i++
		}
		prefix := trimmed[start:i]

		if i < n && trimmed[i] == '"' {
			i++
			var sb strings.Builder
			for i < n && trimmed[i] != '"' {
				if trimmed[i] == '\\' && i+1 < n {
					sb.WriteByte(trimmed[i+1])
					i += 2
					continue
				}
				sb.WriteByte(trimmed[i])
				i++
			}
			if i >= n {
				return sdlStatement{}, false, fmt.Errorf("line %d: unterminated string literal", lineNo)
			}
			i++
			tokens = append(tokens, sdlToken{key: strings.TrimSuffix(prefix, "="), value: sb.String()})
			continue
		}

		if eq := strings.IndexByte(prefix, '='); eq >= 0 {
			tokens = append(tokens, sdlToken{key: prefix[:eq], value: prefix[eq+1:]})
		} else {
			tokens = append(tokens, sdlToken{value: prefix})
		}
	}
	if len(tokens) == 0 {
		return sdlStatement{}, false, nil
	}

	stmt := sdlStatement{line: lineNo, tag: tokens[0].value, attrs: map[string]string{}}
	for _, tk := range tokens[1:] {
		if tk.key != "" {
			stmt.attrs[tk.key] = tk.value
			continue
		}
		stmt.args = append(stmt.args, tk.value)
	}
	return stmt, true, nil
}

// DecodeSDL parses SDL-format recipe bytes into a Recipe.
func DecodeSDL(data []byte, parentName string) (*Recipe, error) {
	data = stripBOM(data)
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	r := &Recipe{BuildTypes: make(map[string]Template)}
	if err := parseSDLBlock(lines, 0, len(lines), &parseContext{recipe: r, template: &r.Root}); err != nil {
		return nil, err
	}

	ApplyTargetTypeDefaults(r)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

type parseContext struct {
	recipe   *Recipe
	template *Template
	// cfg is set while inside a "configuration" block so "platforms"
	// can be recorded on it rather than discarded.
	cfg *Configuration
}

// parseSDLBlock processes lines[start:end), recursing into nested
// "{ ... }" blocks (configuration/buildType/subPackage).
func parseSDLBlock(lines []string, start, end int, ctx *parseContext) error {
	i := start
	for i < end {
		lineNo := i + 1
		stmt, ok, err := tokenizeSDLLine(lines[i], lineNo)
		if err != nil {
			return derrors.Wrap(err, derrors.MalformedSyntax, "sdl syntax error")
		}
		i++
		if !ok {
			continue
		}

		opensBlock := false
		if len(stmt.args) > 0 && stmt.args[len(stmt.args)-1] == "{" {
			stmt.args = stmt.args[:len(stmt.args)-1]
			opensBlock = true
		}

		if !opensBlock {
			if err := applySDLStatement(stmt, ctx); err != nil {
				return err
			}
			continue
		}

		depth := 1
		j := i
		for j < end {
			t := strings.TrimSpace(lines[j])
			if t == "}" {
				depth--
				if depth == 0 {
					break
				}
			} else if strings.HasSuffix(t, "{") {
				depth++
			}
			j++
		}
		if j >= end {
			return derrors.Newf(derrors.MalformedSyntax, "line %d: unterminated block", lineNo)
		}
		if err := dispatchSDLBlock(stmt, ctx, lines, i, j); err != nil {
			return err
		}
		i = j + 1
	}
	return nil
}

func dispatchSDLBlock(stmt sdlStatement, ctx *parseContext, lines []string, start, end int) error {
	switch stmt.tag {
	case "configuration":
		if len(stmt.args) == 0 {
			return derrors.Newf(derrors.MalformedSyntax, "line %d: configuration requires a name", stmt.line)
		}
		cfg := Configuration{Name: stmt.args[0]}
		sub := &parseContext{recipe: ctx.recipe, template: &cfg.Settings, cfg: &cfg}
		if err := parseSDLBlock(lines, start, end, sub); err != nil {
			return err
		}
		ctx.recipe.Configurations = append(ctx.recipe.Configurations, cfg)
	case "buildType":
		if len(stmt.args) == 0 {
			return derrors.Newf(derrors.MalformedSyntax, "line %d: buildType requires a name", stmt.line)
		}
		var tmpl Template
		sub := &parseContext{recipe: ctx.recipe, template: &tmpl}
		if err := parseSDLBlock(lines, start, end, sub); err != nil {
			return err
		}
		ctx.recipe.BuildTypes[stmt.args[0]] = tmpl
	case "subPackage":
		inline := &Recipe{BuildTypes: make(map[string]Template)}
		sub := &parseContext{recipe: inline, template: &inline.Root}
		if err := parseSDLBlock(lines, start, end, sub); err != nil {
			return err
		}
		ApplyTargetTypeDefaults(inline)
		ctx.recipe.SubPackages = append(ctx.recipe.SubPackages, SubPackage{Recipe: inline})
	default:
		return derrors.Newf(derrors.MalformedSyntax, "line %d: %q does not take a block", stmt.line, stmt.tag)
	}
	return nil
}

func applySDLStatement(stmt sdlStatement, ctx *parseContext) error {
	filter := stmt.attrs["platform"]
	t := ctx.template

	switch stmt.tag {
	case "name":
		ctx.recipe.Name = first(stmt.args)
	case "version":
		v, err := version.Parse(first(stmt.args))
		if err != nil {
			return derrors.Wrapf(err, derrors.InvalidValue, "line %d: invalid version", stmt.line)
		}
		ctx.recipe.Version = &v
	case "description":
		ctx.recipe.Description = first(stmt.args)
	case "license":
		ctx.recipe.License = first(stmt.args)
	case "homepage":
		ctx.recipe.Homepage = first(stmt.args)
	case "author", "authors":
		ctx.recipe.Authors = append(ctx.recipe.Authors, stmt.args...)
	case "platforms":
		if ctx.cfg != nil {
			ctx.cfg.Platforms = append(ctx.cfg.Platforms, stmt.args...)
		}
	case "subPackage":
		if len(stmt.args) > 0 {
			ctx.recipe.SubPackages = append(ctx.recipe.SubPackages, SubPackage{Path: stmt.args[0]})
		}
	case "targetType":
		t.TargetType = append(t.TargetType, taggedString{filter, first(stmt.args)})
	case "targetPath":
		t.TargetPath = append(t.TargetPath, taggedString{filter, first(stmt.args)})
	case "targetName":
		t.TargetName = append(t.TargetName, taggedString{filter, first(stmt.args)})
	case "workingDirectory":
		t.WorkingDirectory = append(t.WorkingDirectory, taggedString{filter, first(stmt.args)})
	case "mainSourceFile":
		t.MainSourceFile = append(t.MainSourceFile, taggedString{filter, first(stmt.args)})
	case "sourcePaths", "sourcePath":
		t.SourcePaths = append(t.SourcePaths, taggedStrings{filter, stmt.args})
	case "importPaths", "importPath":
		t.ImportPaths = append(t.ImportPaths, taggedStrings{filter, stmt.args})
	case "stringImportPaths", "stringImportPath":
		t.StringImportPaths = append(t.StringImportPaths, taggedStrings{filter, stmt.args})
	case "sourceFiles", "sourceFile":
		t.SourceFiles = append(t.SourceFiles, taggedStrings{filter, stmt.args})
	case "importFiles", "importFile":
		t.ImportFiles = append(t.ImportFiles, taggedStrings{filter, stmt.args})
	case "stringImportFiles", "stringImportFile":
		t.StringImportFiles = append(t.StringImportFiles, taggedStrings{filter, stmt.args})
	case "excludedSourceFiles":
		t.ExcludedSourceFiles = append(t.ExcludedSourceFiles, taggedStrings{filter, stmt.args})
	case "dflags":
		t.DFlags = append(t.DFlags, taggedStrings{filter, stmt.args})
	case "lflags":
		t.LFlags = append(t.LFlags, taggedStrings{filter, stmt.args})
	case "libs":
		t.Libs = append(t.Libs, taggedStrings{filter, stmt.args})
	case "versions":
		t.Versions = append(t.Versions, taggedStrings{filter, stmt.args})
	case "debugVersions":
		t.DebugVersions = append(t.DebugVersions, taggedStrings{filter, stmt.args})
	case "preGenerateCommands":
		t.PreGenerateCommands = append(t.PreGenerateCommands, taggedStrings{filter, stmt.args})
	case "postGenerateCommands":
		t.PostGenerateCommands = append(t.PostGenerateCommands, taggedStrings{filter, stmt.args})
	case "preBuildCommands":
		t.PreBuildCommands = append(t.PreBuildCommands, taggedStrings{filter, stmt.args})
	case "postBuildCommands":
		t.PostBuildCommands = append(t.PostBuildCommands, taggedStrings{filter, stmt.args})
	case "buildRequirements":
		t.BuildRequirements = append(t.BuildRequirements, taggedFlags{filter, decodeFlagBits(toAny(stmt.args), requirementBits)})
	case "buildOptions":
		t.BuildOptions = append(t.BuildOptions, taggedFlags{filter, decodeFlagBits(toAny(stmt.args), optionBits)})
	case "subConfiguration":
		if len(stmt.args) < 2 {
			return derrors.Newf(derrors.MalformedSyntax, "line %d: subConfiguration requires a package and a configuration name", stmt.line)
		}
		if t.SubConfigurations == nil {
			t.SubConfigurations = map[string]string{}
		}
		t.SubConfigurations[stmt.args[0]] = stmt.args[1]
	case "dependency":
		if len(stmt.args) == 0 {
			return derrors.Newf(derrors.MalformedSyntax, "line %d: dependency requires a name", stmt.line)
		}
		dep, err := dependencyFromAttrs(stmt)
		if err != nil {
			return derrors.Wrapf(err, derrors.InvalidValue, "line %d: dependency %q", stmt.line, stmt.args[0])
		}
		t.Dependencies = append(t.Dependencies, taggedDeps{filter, map[string]version.Dependency{stmt.args[0]: dep}})
	default:
		ctx.recipe.Warnings = append(ctx.recipe.Warnings, fmt.Sprintf("line %d: unknown tag %q ignored", stmt.line, stmt.tag))
	}
	return nil
}

func dependencyFromAttrs(stmt sdlStatement) (version.Dependency, error) {
	var dep version.Dependency
	var err error
	if p, ok := stmt.attrs["path"]; ok {
		dep = version.FromPath(p)
	} else if v, ok := stmt.attrs["version"]; ok {
		dep, err = version.ParseSpec(v)
	} else if len(stmt.args) >= 2 {
		dep, err = version.ParseSpec(stmt.args[1])
	} else {
		return version.Dependency{}, fmt.Errorf("missing version or path")
	}
	if err != nil {
		return version.Dependency{}, err
	}
	if b, err := strconv.ParseBool(stmt.attrs["optional"]); err == nil {
		dep.Optional = b
	}
	if b, err := strconv.ParseBool(stmt.attrs["default"]); err == nil {
		dep.Default = b
	}
	return dep, nil
}

func first(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func toAny(ss []string) interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// EncodeSDL serializes a Recipe back to its canonical SDL form.
func EncodeSDL(r *Recipe, p Platform) ([]byte, error) {
	var sb strings.Builder
	writeSDLTop(&sb, r)
	writeSDLTemplate(&sb, "", r.Root, p)

	for _, c := range r.Configurations {
		fmt.Fprintf(&sb, "configuration %q {\n", c.Name)
		if len(c.Platforms) > 0 {
			fmt.Fprintf(&sb, "    platforms %s\n", quoteAll(c.Platforms))
		}
		writeSDLTemplate(&sb, "    ", c.Settings, p)
		sb.WriteString("}\n")
	}

	for name, t := range r.BuildTypes {
		fmt.Fprintf(&sb, "buildType %q {\n", name)
		writeSDLTemplate(&sb, "    ", t, p)
		sb.WriteString("}\n")
	}

	for _, sp := range r.SubPackages {
		if sp.Path != "" {
			fmt.Fprintf(&sb, "subPackage %q\n", sp.Path)
		} else if sp.Recipe != nil {
			sb.WriteString("subPackage {\n")
			inner, err := EncodeSDL(sp.Recipe, p)
			if err != nil {
				return nil, err
			}
			for _, l := range strings.Split(strings.TrimRight(string(inner), "\n"), "\n") {
				sb.WriteString("    " + l + "\n")
			}
			sb.WriteString("}\n")
		}
	}

	return []byte(sb.String()), nil
}

func writeSDLTop(sb *strings.Builder, r *Recipe) {
	if r.Name != "" {
		fmt.Fprintf(sb, "name %q\n", r.Name)
	}
	if r.Version != nil {
		fmt.Fprintf(sb, "version %q\n", r.Version.String())
	}
	if r.Description != "" {
		fmt.Fprintf(sb, "description %q\n", r.Description)
	}
	if r.License != "" {
		fmt.Fprintf(sb, "license %q\n", r.License)
	}
	if r.Homepage != "" {
		fmt.Fprintf(sb, "homepage %q\n", r.Homepage)
	}
	for _, a := range r.Authors {
		fmt.Fprintf(sb, "author %q\n", a)
	}
}

// writeSDLTemplate writes every platform-filter variant declared on t,
// not just the one matching p, so decode(encode(t)) keeps every
// platform="..." attributed statement the original recipe carried.
func writeSDLTemplate(sb *strings.Builder, indent string, t Template, p Platform) {
	writeSDLStringField(sb, indent, "targetType", t.TargetType)
	writeSDLStringField(sb, indent, "targetPath", t.TargetPath)
	writeSDLStringField(sb, indent, "targetName", t.TargetName)
	writeSDLStringField(sb, indent, "workingDirectory", t.WorkingDirectory)
	writeSDLStringField(sb, indent, "mainSourceFile", t.MainSourceFile)

	writeSDLListField(sb, indent, "sourcePaths", t.SourcePaths)
	writeSDLListField(sb, indent, "importPaths", t.ImportPaths)
	writeSDLListField(sb, indent, "stringImportPaths", t.StringImportPaths)
	writeSDLListField(sb, indent, "sourceFiles", t.SourceFiles)
	writeSDLListField(sb, indent, "importFiles", t.ImportFiles)
	writeSDLListField(sb, indent, "stringImportFiles", t.StringImportFiles)
	writeSDLListField(sb, indent, "excludedSourceFiles", t.ExcludedSourceFiles)
	writeSDLListField(sb, indent, "dflags", t.DFlags)
	writeSDLListField(sb, indent, "lflags", t.LFlags)
	writeSDLListField(sb, indent, "libs", t.Libs)
	writeSDLListField(sb, indent, "versions", t.Versions)
	writeSDLListField(sb, indent, "debugVersions", t.DebugVersions)
	writeSDLListField(sb, indent, "preGenerateCommands", t.PreGenerateCommands)
	writeSDLListField(sb, indent, "postGenerateCommands", t.PostGenerateCommands)
	writeSDLListField(sb, indent, "preBuildCommands", t.PreBuildCommands)
	writeSDLListField(sb, indent, "postBuildCommands", t.PostBuildCommands)

	writeSDLFlagsField(sb, indent, "buildRequirements", t.BuildRequirements, requirementBits)
	writeSDLFlagsField(sb, indent, "buildOptions", t.BuildOptions, optionBits)

	for pkg, cfg := range t.SubConfigurations {
		fmt.Fprintf(sb, "%ssubConfiguration %q %q\n", indent, pkg, cfg)
	}

	for _, td := range t.Dependencies {
		attr := platformAttr(td.Filter)
		for name, d := range td.Deps {
			switch d.Variant {
			case version.VariantPath:
				fmt.Fprintf(sb, "%sdependency %q path=%q%s\n", indent, name, d.Path, attr)
			default:
				fmt.Fprintf(sb, "%sdependency %q version=%q%s\n", indent, name, d.String(), attr)
			}
		}
	}
}

// platformAttr renders a non-empty filter as a trailing platform="..."
// attribute, matching how applySDLStatement reads it back.
func platformAttr(filter string) string {
	if filter == "" {
		return ""
	}
	return fmt.Sprintf(" platform=%q", filter)
}

func writeSDLStringField(sb *strings.Builder, indent, tag string, f stringField) {
	for _, t := range f {
		if t.Value == "" {
			continue
		}
		fmt.Fprintf(sb, "%s%s %q%s\n", indent, tag, t.Value, platformAttr(t.Filter))
	}
}

func writeSDLListField(sb *strings.Builder, indent, tag string, f stringListField) {
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
		fmt.Fprintf(sb, "%s%s %s%s\n", indent, tag, quoteAll(grouped[filter]), platformAttr(filter))
	}
}

func writeSDLFlagsField(sb *strings.Builder, indent, tag string, f flagsField, table map[string]uint64) {
	for _, t := range f {
		if t.Bits == 0 {
			continue
		}
		fmt.Fprintf(sb, "%s%s %s%s\n", indent, tag, quoteAll(flagNames(t.Bits, table)), platformAttr(t.Filter))
	}
}

func quoteAll(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, " ")
}
