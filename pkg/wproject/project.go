// Package wproject implements Project (spec.md §4.4): the root package
// plus its bound dependency graph, persisted selections, and the
// topological algorithms the build driver and Resolver consult.
package wproject

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/waypack/waypack/pkg/depregistry"
	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/dlog"
	"github.com/waypack/waypack/pkg/dpackage"
	"github.com/waypack/waypack/pkg/pkgmgr"
	"github.com/waypack/waypack/pkg/recipe"
	"github.com/waypack/waypack/pkg/selections"
	"github.com/waypack/waypack/pkg/version"
)

// binding is one resolved (or still-missing) dependency edge from a
// referrer package to the package it names.
type binding struct {
	Name string
	Pkg  *dpackage.Package
	Spec version.Dependency
}

// node is one package's position in the bound dependency graph: its
// outgoing edges, in sorted name order (spec.md §4.4
// getTopologicalPackageList: "traversed in sorted name order").
type node struct {
	Pkg  *dpackage.Package
	Deps []binding
}

// Project is a loaded root Package plus its bound dependency graph
// (spec.md §4.4).
type Project struct {
	Root       *dpackage.Package
	Platform   recipe.Platform
	Manager    *pkgmgr.Manager
	Registry   depregistry.Registry
	Selections *selections.Selections

	// Warnings accumulates non-fatal diagnostics: a malformed selections
	// file, a sub-package path that failed to load, and so on.
	Warnings []string

	nodes   map[string]*node
	// order is the preorder in which reinit first bound each package,
	// parents before children: the "topologically first" tie-break
	// getPackageConfigs needs (spec.md §4.4 step 2).
	order   []string
	subpkgs map[string][]*dpackage.Package
	// resolved records, by bare dependency name, the package a prior
	// binding decided on — spec.md §4.4 reinit step 3, "peer dependency
	// already resolved to the same base package".
	resolved map[string]*dpackage.Package

	cache *Cache
}

// Load constructs a Project rooted at rootDir: it loads the root
// package, reads persisted selections (a missing file is not an error;
// a malformed one degrades to empty selections plus a warning), and
// runs reinit to bind the dependency graph.
func Load(ctx context.Context, rootDir string, mgr *pkgmgr.Manager, platform recipe.Platform) (*Project, error) {
	root, err := dpackage.Load(ctx, rootDir, "", nil, nil)
	if err != nil {
		return nil, err
	}

	sel, warnings, err := selections.Load(rootDir)
	if err != nil {
		return nil, err
	}

	cache, cacheWarning, err := loadCache(rootDir)
	if err != nil {
		return nil, err
	}
	if cacheWarning != "" {
		warnings = append(warnings, cacheWarning)
	}

	p := &Project{
		Root:       root,
		Platform:   platform,
		Manager:    mgr,
		Selections: sel,
		Warnings:   append([]string{}, warnings...),
		cache:      cache,
	}

	if err := p.reinit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// reinit implements spec.md §4.4's depth-first binding walk, starting
// from the root package.
func (p *Project) reinit(ctx context.Context) error {
	p.nodes = make(map[string]*node)
	p.order = nil
	p.subpkgs = make(map[string][]*dpackage.Package)
	p.resolved = make(map[string]*dpackage.Package)

	return p.visit(ctx, p.Root)
}

func (p *Project) visit(ctx context.Context, pkg *dpackage.Package) error {
	qname := pkg.QualifiedName()
	if _, ok := p.nodes[qname]; ok {
		return nil
	}

	n := &node{Pkg: pkg}
	p.nodes[qname] = n
	p.order = append(p.order, qname)

	depSpecs := make(map[string]version.Dependency)
	for _, cfgName := range pkg.Configurations() {
		for name, dep := range pkg.GetDependencies(p.Platform, cfgName) {
			depSpecs[name] = dep
		}
	}

	names := make([]string, 0, len(depSpecs))
	for name := range depSpecs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := depSpecs[name]
		bound, err := p.bindDependency(ctx, pkg, name, spec)
		if err != nil {
			return err
		}
		n.Deps = append(n.Deps, binding{Name: name, Pkg: bound, Spec: spec})
		if bound != nil {
			if err := p.visit(ctx, bound); err != nil {
				return err
			}
		}
	}
	return nil
}

// bindDependency resolves one dependency edge following spec.md §4.4's
// four-step precedence. A nil, nil return means the dependency is
// "missing": left for the Resolver to fill in on a subsequent upgrade.
func (p *Project) bindDependency(ctx context.Context, referrer *dpackage.Package, name string, spec version.Dependency) (*dpackage.Package, error) {
	if name == p.Root.Recipe.Name {
		return p.Root, nil
	}
	for _, sub := range p.subPackagesOf(ctx, p.Root) {
		if sub.QualifiedName() == name {
			return sub, nil
		}
	}

	if pinned, ok := p.Selections.Get(name); ok {
		bound, err := p.loadPinned(ctx, name, pinned)
		if err != nil {
			return nil, err
		}
		if bound != nil {
			p.resolved[name] = bound
			return bound, nil
		}
	}

	if bound, ok := p.resolved[name]; ok {
		return bound, nil
	}

	if spec.Variant != version.VariantPath && p.Manager != nil {
		if bound, ok := p.Manager.GetBestPackage(name, spec); ok {
			p.resolved[name] = bound
			return bound, nil
		}
	}

	logger := dlog.Get("project")
	logger.Debug().Str("name", name).Msg("dependency missing, left for resolver")
	return nil, nil
}

// loadPinned resolves a selections.json pin: a path pin loads the
// referenced directory directly (rebinding to a sub-package if the
// loaded recipe turns out to declare one matching name, per spec.md
// §4.4's path-pin rebinding note); any other pin looks up the best
// installed match through the Package Manager.
func (p *Project) loadPinned(ctx context.Context, name string, dep version.Dependency) (*dpackage.Package, error) {
	if dep.Variant != version.VariantPath {
		if p.Manager == nil {
			return nil, nil
		}
		bound, ok := p.Manager.GetBestPackage(name, dep)
		if !ok {
			return nil, nil
		}
		return bound, nil
	}

	if p.Manager == nil {
		return nil, nil
	}

	dir := dep.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(p.Root.RootPath, dir)
	}
	if err := p.checkWithinWorkspace(dir); err != nil {
		return nil, err
	}
	loaded, err := p.Manager.GetOrLoadPackage(ctx, dir)
	if err != nil {
		return nil, err
	}
	if loaded.Recipe.Name == name {
		return loaded, nil
	}
	for _, sub := range p.subPackagesOf(ctx, loaded) {
		if sub.QualifiedName() == name || sub.Recipe.Name == name {
			return sub, nil
		}
	}
	return loaded, nil
}

// subPackagesOf returns parent's declared sub-packages as bound
// Packages, loading and caching them on first use.
func (p *Project) subPackagesOf(ctx context.Context, parent *dpackage.Package) []*dpackage.Package {
	key := parent.QualifiedName()
	if cached, ok := p.subpkgs[key]; ok {
		return cached
	}

	out := make([]*dpackage.Package, 0, len(parent.Recipe.SubPackages))
	for _, sp := range parent.Recipe.SubPackages {
		if sp.Recipe != nil {
			out = append(out, dpackage.FromRecipe(sp.Recipe, parent.RootPath, parent))
			continue
		}
		dir := filepath.Join(parent.RootPath, sp.Path)
		if err := p.checkWithinWorkspace(dir); err != nil {
			p.Warnings = append(p.Warnings, "sub-package at "+sp.Path+" failed to load: "+err.Error())
			continue
		}
		child, err := dpackage.Load(ctx, dir, "", parent, nil)
		if err != nil {
			p.Warnings = append(p.Warnings, "sub-package at "+sp.Path+" failed to load: "+err.Error())
			continue
		}
		out = append(out, child)
	}
	p.subpkgs[key] = out
	return out
}

// checkWithinWorkspace rejects a path-based dependency or sub-package
// path that resolves outside the project root, catching a "../"-escaping
// path spec before the Package Manager ever loads it.
func (p *Project) checkWithinWorkspace(dir string) error {
	root := filepath.Clean(p.Root.RootPath)
	target := filepath.Clean(dir)

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return derrors.Newf(derrors.PathOutsideWorkspace, "path %q escapes workspace root %q", dir, root)
	}
	return nil
}

// sanitizedName mirrors dpackage's own targetName sanitization: the
// qualified name with ':' replaced by '_'.
func sanitizedName(pkg *dpackage.Package) string {
	name := pkg.QualifiedName()
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			out[i] = '_'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}
