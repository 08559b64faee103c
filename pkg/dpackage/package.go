// Package dpackage implements Package (spec.md §4.2): a loaded Recipe
// rooted at a directory, with the derived defaults and per-configuration
// build settings the Project and Resolver consult. Every structural
// decision it makes while loading (defaults filled, main file detected,
// configurations synthesized) is logged at Debug level the way the
// teacher's handlers log their own decisions through pkg/dlog, with
// structured fields identifying the package and the decision.
package dpackage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/dlog"
	"github.com/waypack/waypack/pkg/dpaths"
	"github.com/waypack/waypack/pkg/recipe"
	"github.com/waypack/waypack/pkg/scm"
	"github.com/waypack/waypack/pkg/version"
)

// RecipeFileNames lists the recipe file names tried, in precedence order,
// when a Package is loaded without an explicit recipe path (spec.md §6:
// canonical name, SDL alternative, legacy JSON name). Write uses the
// first name.
var RecipeFileNames = []string{"waypack.json", "waypack.sdl", "package.json"}

// mainFileBasenames are the unqualified filenames checked for an
// application entry point, in precedence order (spec.md §4.2 step 4).
// "<pkg>/main.d" and "<pkg>/app.d" are checked by substituting the
// package's own name for "<pkg>".
var mainFileBasenames = []string{"app.d", "main.d"}

// Package is a loaded Recipe rooted at a directory (spec.md §3).
type Package struct {
	Recipe         *recipe.Recipe
	RootPath       string
	RecipeFilePath string
	Parent         *Package
}

// QualifiedName is the parent-qualified name used to address
// sub-packages ("parent:child").
func (p *Package) QualifiedName() string {
	if p.Parent == nil {
		return p.Recipe.Name
	}
	return p.Parent.QualifiedName() + ":" + p.Recipe.Name
}

// EffectiveVersion is the package's own version if recorded, else
// inherited from its parent.
func (p *Package) EffectiveVersion() version.Version {
	if p.Recipe.Version != nil {
		return *p.Recipe.Version
	}
	if p.Parent != nil {
		return p.Parent.EffectiveVersion()
	}
	return version.Unknown
}

// sanitizedTargetName is the qualified name with ':' replaced by '_',
// the default used for an unset targetName (spec.md §4.2
// getBuildSettings).
func (p *Package) sanitizedTargetName() string {
	return strings.ReplaceAll(p.QualifiedName(), ":", "_")
}

// Load constructs a Package rooted at dir, following spec.md §4.2's
// construction steps: decode the recipe, infer a version when absent and
// root, fill directory-convention defaults, detect an application main
// file, synthesize configurations when none are declared, and emit lint
// warnings.
//
// recipeFilePath may be empty to discover it from RecipeFileNames;
// versionOverride, if non-zero, takes precedence over both the recipe's
// declared version and SCM inference.
func Load(ctx context.Context, dir string, recipeFilePath string, parent *Package, versionOverride *version.Version) (*Package, error) {
	logger := dlog.Get("package")

	if recipeFilePath == "" {
		found, err := discoverRecipeFile(dir)
		if err != nil {
			return nil, err
		}
		recipeFilePath = found
	}

	data, err := os.ReadFile(recipeFilePath)
	if err != nil {
		return nil, derrors.Wrapf(err, derrors.RecipeNotFound, "reading recipe at %s", recipeFilePath)
	}

	parentName := ""
	if parent != nil {
		parentName = parent.QualifiedName()
	}

	r, err := decodeRecipe(data, recipeFilePath, parentName)
	if err != nil {
		return nil, err
	}

	pkg := &Package{Recipe: r, RootPath: dir, RecipeFilePath: recipeFilePath, Parent: parent}

	switch {
	case versionOverride != nil:
		r.Version = versionOverride
	case r.Version == nil && parent == nil:
		cachePath := filepath.Join(dpaths.ProjectCacheDir(dir), "version.json")
		v := scm.InferVersion(ctx, dir, cachePath)
		r.Version = &v
		logger.Debug().Str("pkg", pkg.QualifiedName()).Str("version", v.String()).Msg("inferred version from SCM")
	}

	applyDirectoryDefaults(pkg, logger)
	synthesizeConfigurations(pkg, logger)
	lint(pkg, logger)

	return pkg, nil
}

// FromRecipe constructs a Package directly from an already-decoded
// Recipe rooted at rootPath, running the same directory-default,
// configuration-synthesis, and lint passes Load applies to a
// file-backed recipe. Used for inline sub-packages (spec.md §3 Recipe
// SubPackages), which share their parent's directory tree and have no
// recipe file of their own to discover.
func FromRecipe(r *recipe.Recipe, rootPath string, parent *Package) *Package {
	logger := dlog.Get("package")
	pkg := &Package{Recipe: r, RootPath: rootPath, Parent: parent}
	applyDirectoryDefaults(pkg, logger)
	synthesizeConfigurations(pkg, logger)
	lint(pkg, logger)
	return pkg
}

func decodeRecipe(data []byte, path, parentName string) (*recipe.Recipe, error) {
	switch filepath.Ext(path) {
	case ".json":
		return recipe.DecodeJSON(data, parentName)
	case ".sdl":
		return recipe.DecodeSDL(data, parentName)
	default:
		return nil, derrors.Newf(derrors.RecipeNotFound, "unrecognized recipe file extension %q", path)
	}
}

func discoverRecipeFile(dir string) (string, error) {
	for _, name := range RecipeFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", derrors.Newf(derrors.RecipeNotFound, "no recipe file found in %s (tried %v)", dir, RecipeFileNames)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// applyDirectoryDefaults implements spec.md §4.2 step 3: a "views"
// directory becomes a default string-import path; a "source" or "src"
// directory becomes a default source+import path, when the recipe
// declares none of its own.
func applyDirectoryDefaults(pkg *Package, logger zerolog.Logger) {
	root := &pkg.Recipe.Root

	if !root.StringImportPathsDeclared() && dirExists(filepath.Join(pkg.RootPath, "views")) {
		root.AddStringImportPath("views")
		logger.Debug().Str("pkg", pkg.QualifiedName()).Msg("defaulted stringImportPaths to views/")
	}

	if !root.SourcePathsDeclared() {
		for _, candidate := range []string{"source", "src"} {
			if !dirExists(filepath.Join(pkg.RootPath, candidate)) {
				continue
			}
			root.AddSourcePath(candidate)
			logger.Debug().Str("pkg", pkg.QualifiedName()).Str("dir", candidate).Msg("defaulted sourcePaths/importPaths")
			break
		}
	}
}

// detectAppMain implements spec.md §4.2 step 4: scan the (possibly just
// defaulted) declared source paths for one of the recognized application
// entry-point basenames.
func detectAppMain(pkg *Package, logger zerolog.Logger) string {
	candidates := append([]string{}, mainFileBasenames...)
	candidates = append(candidates,
		filepath.Join(pkg.Recipe.Name, "main.d"),
		filepath.Join(pkg.Recipe.Name, "app.d"),
	)

	for _, dir := range pkg.Recipe.Root.AllSourcePaths() {
		for _, base := range candidates {
			rel := filepath.Join(dir, base)
			if _, err := os.Stat(filepath.Join(pkg.RootPath, rel)); err == nil {
				logger.Debug().Str("pkg", pkg.QualifiedName()).Str("file", rel).Msg("detected application main file")
				return rel
			}
		}
	}
	return ""
}

// synthesizeConfigurations implements spec.md §4.2 step 5.
func synthesizeConfigurations(pkg *Package, logger zerolog.Logger) {
	if len(pkg.Recipe.Configurations) > 0 {
		return
	}

	r := pkg.Recipe
	targetTypeStr, _ := r.Root.TargetTypeString()
	mainFile := detectAppMain(pkg, logger)

	switch {
	case targetTypeStr == "executable":
		r.Configurations = []recipe.Configuration{
			recipe.NewSynthesizedConfiguration("application", "executable", mainFile, nil),
		}
	case (targetTypeStr == "" || targetTypeStr == "autodetect") && mainFile != "":
		r.Configurations = []recipe.Configuration{
			recipe.NewSynthesizedConfiguration("application", "executable", mainFile, nil),
			recipe.NewSynthesizedConfiguration("library", "library", "", []string{mainFile}),
		}
	default:
		r.Configurations = []recipe.Configuration{
			recipe.NewSynthesizedConfiguration("library", "library", "", nil),
		}
	}
	logger.Debug().Str("pkg", pkg.QualifiedName()).Int("count", len(r.Configurations)).Msg("synthesized default configurations")
}

// lint implements spec.md §4.2 step 6.
func lint(pkg *Package, logger zerolog.Logger) {
	r := pkg.Recipe
	if r.Name == "" {
		r.Warnings = append(r.Warnings, "package has no name")
	}
	if pkg.Parent != nil && r.License != "" && pkg.Parent.Recipe.License != "" && r.License != pkg.Parent.Recipe.License {
		msg := "sub-package license " + r.License + " differs from parent license " + pkg.Parent.Recipe.License
		r.Warnings = append(r.Warnings, msg)
		logger.Debug().Str("pkg", pkg.QualifiedName()).Msg(msg)
	}
}
