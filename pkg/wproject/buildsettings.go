package wproject

import (
	"context"

	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/recipe"
	"github.com/waypack/waypack/pkg/varexpand"
)

// AddBuildSettings implements spec.md §4.4's addBuildSettings: after
// GetPackageConfigs has assigned configs, walk the reachable packages
// parents-first and accumulate each one's resolved, variable-expanded
// build settings onto dst. rootOverride, if non-nil, replaces the
// root's own target type/path/name/working directory after they've
// been set from the root package's configuration. In shallow mode,
// non-root packages contribute everything except their own source
// files, and the "root target type must be buildable" invariant is not
// enforced.
func (p *Project) AddBuildSettings(ctx context.Context, dst *recipe.Settings, platform recipe.Platform, configs map[string]string, rootOverride *recipe.Settings, shallow bool) error {
	rootName := p.Root.QualifiedName()
	order := p.GetTopologicalPackageList(false, p.Root, configs)

	knownPackageDirs := make(map[string]string, len(p.nodes))
	for qname, n := range p.nodes {
		knownPackageDirs[varexpand.SanitizeName(qname)] = n.Pkg.RootPath
	}

	for _, pkg := range order {
		qname := pkg.QualifiedName()
		cfgName, ok := configs[qname]
		if !ok {
			continue
		}

		settings, err := pkg.GetBuildSettings(platform, cfgName)
		if err != nil {
			return err
		}

		names := varexpand.Names{
			PackageDir:       pkg.RootPath,
			RootPackageDir:   p.Root.RootPath,
			KnownPackageDirs: knownPackageDirs,
		}
		expanded, err := expandSettings(settings, names)
		if err != nil {
			return err
		}

		isRoot := qname == rootName
		if shallow && !isRoot {
			expanded.SourcePaths = nil
			expanded.SourceFiles = nil
		}

		dst.Append(expanded)
		dst.Versions = append(dst.Versions, "Have_"+sanitizedName(pkg))

		if isRoot {
			dst.TargetType = expanded.TargetType
			dst.TargetPath = expanded.TargetPath
			dst.TargetName = expanded.TargetName
			dst.WorkingDirectory = expanded.WorkingDirectory

			if rootOverride != nil {
				applyRootOverride(dst, rootOverride)
			}

			if !shallow && dst.TargetType == recipe.TargetNone {
				return derrors.Newf(derrors.NoValidConfiguration, "root package %q configuration %q has no buildable target type", qname, cfgName)
			}
		}
	}
	return nil
}

// applyRootOverride lets a caller (e.g. a "dub build --single" style
// one-off invocation) replace the root's own target fields without
// touching the rest of dst.
func applyRootOverride(dst *recipe.Settings, override *recipe.Settings) {
	if override.TargetType != recipe.TargetAutodetect {
		dst.TargetType = override.TargetType
	}
	if override.TargetPath != "" {
		dst.TargetPath = override.TargetPath
	}
	if override.TargetName != "" {
		dst.TargetName = override.TargetName
	}
	if override.WorkingDirectory != "" {
		dst.WorkingDirectory = override.WorkingDirectory
	}
}

// expandSettings runs variable expansion over every string-valued field
// of settings (spec.md §4.7), rebasing path-shaped fields onto the
// owning package's directory.
func expandSettings(settings recipe.Settings, names varexpand.Names) (recipe.Settings, error) {
	var err error
	expandPaths := func(vals []string) []string {
		out := make([]string, len(vals))
		for i, v := range vals {
			if err != nil {
				return nil
			}
			out[i], err = varexpand.ExpandPath(v, names)
		}
		return out
	}
	expandPlain := func(vals []string) []string {
		out := make([]string, len(vals))
		for i, v := range vals {
			if err != nil {
				return nil
			}
			out[i], err = varexpand.Expand(v, names)
		}
		return out
	}

	settings.TargetPath, err = varexpand.ExpandPath(settings.TargetPath, names)
	if err != nil {
		return recipe.Settings{}, err
	}
	settings.WorkingDirectory, err = varexpand.ExpandPath(settings.WorkingDirectory, names)
	if err != nil {
		return recipe.Settings{}, err
	}
	settings.MainSourceFile, err = varexpand.ExpandPath(settings.MainSourceFile, names)
	if err != nil {
		return recipe.Settings{}, err
	}
	if settings.TargetName != "" {
		settings.TargetName, err = varexpand.Expand(settings.TargetName, names)
		if err != nil {
			return recipe.Settings{}, err
		}
	}

	settings.SourcePaths = expandPaths(settings.SourcePaths)
	settings.ImportPaths = expandPaths(settings.ImportPaths)
	settings.StringImportPaths = expandPaths(settings.StringImportPaths)
	settings.SourceFiles = expandPaths(settings.SourceFiles)
	settings.ImportFiles = expandPaths(settings.ImportFiles)
	settings.StringImportFiles = expandPaths(settings.StringImportFiles)
	settings.ExcludedSourceFiles = expandPaths(settings.ExcludedSourceFiles)
	if err != nil {
		return recipe.Settings{}, err
	}

	settings.DFlags = expandPlain(settings.DFlags)
	settings.LFlags = expandPlain(settings.LFlags)
	settings.Libs = expandPlain(settings.Libs)
	settings.PreGenerateCommands = expandPlain(settings.PreGenerateCommands)
	settings.PostGenerateCommands = expandPlain(settings.PostGenerateCommands)
	settings.PreBuildCommands = expandPlain(settings.PreBuildCommands)
	settings.PostBuildCommands = expandPlain(settings.PostBuildCommands)
	if err != nil {
		return recipe.Settings{}, err
	}

	return settings, nil
}
