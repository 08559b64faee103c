// Package resolver implements the Resolver (spec.md §4.5): a generic
// backtracking search over TreeNode that picks one Dependency per
// package name satisfying every transitive constraint, preferring
// pinned selections over a fresh search unless an upgrade is requested.
package resolver

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

// Options parameterizes a resolution run (spec.md §4.5).
type Options struct {
	// Upgrade ignores pinned selections and re-searches every name from
	// scratch.
	Upgrade bool
	// PreRelease allows a pre-release candidate to be preferred over a
	// matching non-pre-release one; by default pre-releases sort last.
	PreRelease bool
	// UseCachedResult is carried for callers; Resolve does not read it
	// and always runs the search.
	UseCachedResult bool
	// PrintUpgradesOnly is carried for callers; Resolve does not read
	// it, and the Result is the same whether or not it is set.
	PrintUpgradesOnly bool
	// Select forces specific dependency specs for the named packages,
	// the manual override a "waypack add" style command would apply.
	Select map[string]version.Dependency
	// Deselected marks optional, non-default dependencies that were
	// explicitly turned off in a prior selection and should stay off.
	Deselected map[string]bool
}

// Summary counts what a resolution did to each package name, for
// CLI/log consumption.
type Summary struct {
	Resolved int
	Pinned   int
	Upgraded int
}

// Result is the output of a resolution: one Dependency per package name,
// satisfying every transitive constraint collected during the search.
type Result struct {
	Versions map[string]version.Dependency
	Summary  Summary
	Warnings []string
}

// TreeNode is one edge the backtracking search expands: the package
// name being requested, the constraint it must satisfy, and whether
// that edge is optional/default (spec.md §4.5).
type TreeNode struct {
	Name     string
	Dep      version.Dependency
	Optional bool
	Default  bool
}

// Resolver runs the backtracking search rooted at Root.
type Resolver struct {
	Root       *dpackage.Package
	Platform   recipe.Platform
	Manager    *pkgmgr.Manager
	Registry   depregistry.Registry
	Selections *selections.Selections
	Options    Options
}

// New constructs a Resolver. Manager and Registry may be nil; a nil
// Registry limits candidate discovery to locally installed packages.
func New(root *dpackage.Package, platform recipe.Platform, mgr *pkgmgr.Manager, reg depregistry.Registry, sel *selections.Selections, opts Options) *Resolver {
	if sel == nil {
		sel = selections.New()
	}
	return &Resolver{Root: root, Platform: platform, Manager: mgr, Registry: reg, Selections: sel, Options: opts}
}

// candidate pairs a concrete Dependency spec with the Package it names,
// loaded just far enough to read its own dependency list.
type candidate struct {
	dep       version.Dependency
	pkg       *dpackage.Package
	preferred bool // true when this candidate comes straight from a pin
}

// state carries the in-progress assignment through the recursive search.
type state struct {
	assigned map[string]candidate
	path     map[string]bool
	warnings []string
	summary  Summary
}

// Resolve runs the backtracking search from the root package's own
// dependency edges.
func (r *Resolver) Resolve(ctx context.Context) (*Result, error) {
	st := &state{assigned: make(map[string]candidate), path: make(map[string]bool)}

	st.path[r.Root.QualifiedName()] = true
	if err := r.expandChildren(ctx, r.Root, st); err != nil {
		return nil, err
	}

	versions := make(map[string]version.Dependency, len(st.assigned))
	for name, cand := range st.assigned {
		versions[name] = cand.dep
	}
	return &Result{Versions: versions, Summary: st.summary, Warnings: st.warnings}, nil
}

// expandChildren walks referrer's declared dependencies (unioned across
// every configuration, the same choice wproject.reinit makes since no
// single configuration is picked yet at resolve time) and assigns each.
func (r *Resolver) expandChildren(ctx context.Context, referrer *dpackage.Package, st *state) error {
	edges := mergedDependencies(referrer, r.Platform)
	names := make([]string, 0, len(edges))
	for name := range edges {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := TreeNode{Name: name, Dep: edges[name].dep, Optional: edges[name].optional, Default: edges[name].def}
		if !r.wants(node) {
			continue
		}
		if err := r.assign(ctx, referrer, node, st); err != nil {
			return err
		}
	}
	return nil
}

// wants reports whether an optional edge should be pulled into the
// resolution (spec.md §4.5's optional/default propagation).
func (r *Resolver) wants(node TreeNode) bool {
	if !node.Optional {
		return true
	}
	if _, explicit := r.Options.Select[node.Name]; explicit {
		return true
	}
	if node.Default {
		return !r.Options.Deselected[node.Name]
	}
	return false
}

type depEdge struct {
	dep      version.Dependency
	optional bool
	def      bool
}

// mergedDependencies unions a package's declared dependencies across
// every configuration, tagging each with its optional/default bits.
func mergedDependencies(pkg *dpackage.Package, platform recipe.Platform) map[string]depEdge {
	out := make(map[string]depEdge)
	for _, cfgName := range pkg.Configurations() {
		for name, dep := range pkg.GetDependencies(platform, cfgName) {
			out[name] = depEdge{dep: dep, optional: dep.Optional, def: dep.Default}
		}
	}
	return out
}

// assign binds name to a candidate satisfying node.Dep, recursing into
// that candidate's own dependencies, backtracking to the next candidate
// on failure (spec.md §4.5).
func (r *Resolver) assign(ctx context.Context, referrer *dpackage.Package, node TreeNode, st *state) error {
	name := node.Name

	// A name still on the current DFS path is an ancestor of this call: a
	// package-level cycle, forbidden regardless of version compatibility
	// (the same unconditional rule wproject.detectCycle applies to the
	// bound graph). This must be checked before the "already assigned"
	// reuse shortcut below, since assign sets both path and assigned for
	// a name together — a true cycle always revisits a name that is
	// simultaneously in both.
	if st.path[name] {
		return derrors.Newf(derrors.DependencyCycle, "dependency cycle detected at package %q", name)
	}

	if existing, ok := st.assigned[name]; ok {
		if existing.dep.Variant == node.Dep.Variant && compatible(existing.dep, node.Dep) {
			return nil
		}
		return derrors.Newf(derrors.UnresolvableConflict, "package %q has conflicting constraints %q and %q", name, existing.dep.String(), node.Dep.String()).
			WithDetail("package", name).
			WithDetail("frontier", []string{existing.dep.String(), node.Dep.String()})
	}

	candidates, err := r.candidatesFor(ctx, referrer, name, node.Dep, st)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return derrors.Newf(derrors.UnresolvableConflict, "no candidate of %q satisfies %q", name, node.Dep.String()).
			WithDetail("package", name).
			WithDetail("frontier", node.Dep.String())
	}

	st.path[name] = true
	defer delete(st.path, name)

	for _, cand := range candidates {
		st.assigned[name] = cand
		if err := r.expandChildren(ctx, cand.pkg, st); err == nil {
			r.recordOutcome(name, cand, st)
			return nil
		} else if derrors.Is(err, derrors.DependencyCycle) {
			delete(st.assigned, name)
			return err
		}
		delete(st.assigned, name)
	}

	return derrors.Newf(derrors.UnresolvableConflict, "no candidate of %q has a satisfiable dependency set", name).
		WithDetail("package", name).
		WithDetail("frontier", node.Dep.String())
}

// recordOutcome tallies the Summary counters for a freshly assigned name.
func (r *Resolver) recordOutcome(name string, cand candidate, st *state) {
	st.summary.Resolved++
	pinned, hadPin := r.Selections.Get(name)
	switch {
	case cand.preferred:
		st.summary.Pinned++
	case hadPin && !pinned.Equal(cand.dep):
		st.summary.Upgraded++
	}
}

// compatible reports whether two non-conflicting assignments of the
// same name are simply the same candidate seen through two referrers
// (spec.md §4.4's peer-dependency reuse, mirrored here for the search).
func compatible(a, b version.Dependency) bool {
	_, ok := version.Merge(a, b)
	return ok
}

// candidatesFor dispatches to path-pin resolution (spec.md §4.5
// getSpecificConfigs) or registry/local-install candidate discovery
// (getAllConfigs), handling qualified "base:sub" names by resolving the
// base package first.
func (r *Resolver) candidatesFor(ctx context.Context, referrer *dpackage.Package, name string, dep version.Dependency, st *state) ([]candidate, error) {
	if base, sub, ok := splitQualifiedName(name); ok {
		return r.candidatesForSubPackage(ctx, referrer, base, sub, st)
	}

	if dep.Variant == version.VariantPath {
		return r.getSpecificConfigs(ctx, referrer, dep)
	}
	return r.getAllConfigs(ctx, referrer, name, dep)
}

// getSpecificConfigs handles a path-pinned child: a loadable path yields
// exactly one candidate, an unloadable one yields none (triggering
// rejection one level up).
func (r *Resolver) getSpecificConfigs(ctx context.Context, referrer *dpackage.Package, dep version.Dependency) ([]candidate, error) {
	dir := dep.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(referrer.RootPath, dir)
	}
	if r.Manager == nil {
		return nil, nil
	}
	pkg, err := r.Manager.GetOrLoadPackage(ctx, dir)
	if err != nil {
		return nil, nil
	}
	return []candidate{{dep: dep, pkg: pkg}}, nil
}

// getAllConfigs computes name's ordered candidate list: a pinned
// selection (unless upgrading) is the sole candidate; otherwise every
// locally installed and registry-reported version satisfying dep, sorted
// so numeric beats branch and non-pre-release beats pre-release, is
// tried in order, dropping any whose recipe fails to load.
func (r *Resolver) getAllConfigs(ctx context.Context, referrer *dpackage.Package, name string, dep version.Dependency) ([]candidate, error) {
	if selected, ok := r.Options.Select[name]; ok {
		dep = selected
	}

	if !r.Options.Upgrade {
		if pinned, ok := r.Selections.Get(name); ok {
			if pinned.Variant == version.VariantPath {
				cands, err := r.getSpecificConfigs(ctx, referrer, pinned)
				for i := range cands {
					cands[i].preferred = true
				}
				return cands, err
			}
			pin, err := r.loadVersion(ctx, name, pinned)
			if err != nil || pin == nil {
				return nil, nil
			}
			return []candidate{{dep: pinned, pkg: pin, preferred: true}}, nil
		}
	}

	versions := r.collectVersions(name)
	var matching []version.Version
	for _, v := range versions {
		if dep.Matches(v) {
			matching = append(matching, v)
		}
	}
	version.SortDescending(matching)
	matching = dedupeVersions(matching)
	matching = demotePreReleases(matching, r.Options.PreRelease)

	out := make([]candidate, 0, len(matching))
	for _, v := range matching {
		d := version.FromVersion(v)
		if v.IsBranch() {
			d = version.FromBranch(v.Branch)
		}
		pkg, err := r.loadVersion(ctx, name, d)
		if err != nil || pkg == nil {
			continue
		}
		out = append(out, candidate{dep: d, pkg: pkg})
	}
	return out, nil
}

// collectVersions merges locally installed versions with whatever the
// registry reports, in no particular order; getAllConfigs sorts.
func (r *Resolver) collectVersions(name string) []version.Version {
	var out []version.Version
	if r.Manager != nil {
		for _, pkg := range r.Manager.Packages(name) {
			out = append(out, pkg.EffectiveVersion())
		}
	}
	if r.Registry != nil {
		if vs, err := r.Registry.ListVersions(name); err == nil {
			out = append(out, vs...)
		}
		if yanked, err := r.Registry.YankedVersions(name); err == nil && len(yanked) > 0 {
			logger := dlog.Get("resolver")
			logger.Debug().Str("name", name).Int("count", len(yanked)).Msg("registry reports yanked versions")
		}
	}
	return out
}

// loadVersion resolves one concrete candidate to a Package: prefer an
// already-installed copy, else fetch just its recipe from the registry
// (no archive download yet — the Resolver only needs the dependency
// graph, not the source tree).
func (r *Resolver) loadVersion(ctx context.Context, name string, dep version.Dependency) (*dpackage.Package, error) {
	if dep.Variant == version.VariantBranch {
		return r.loadByVersion(ctx, name, version.Branch(dep.Branch))
	}
	return r.loadByVersion(ctx, name, dep.Range.Min)
}

func (r *Resolver) loadByVersion(ctx context.Context, name string, v version.Version) (*dpackage.Package, error) {
	if r.Manager != nil {
		if pkg, ok := r.Manager.GetPackage(name, v); ok {
			return pkg, nil
		}
	}
	if r.Registry == nil {
		return nil, nil
	}
	data, err := r.Registry.FetchRecipe(name, v)
	if err != nil {
		return nil, nil
	}
	rec, err := recipe.DecodeJSON(data, "")
	if err != nil {
		rec, err = recipe.DecodeSDL(data, "")
		if err != nil {
			return nil, nil
		}
	}
	vv := v
	rec.Version = &vv
	return dpackage.FromRecipe(rec, "", nil), nil
}

// candidatesForSubPackage resolves a "base:sub" qualified dependency by
// running base through the same assign/expandChildren machinery as any
// other name — so base itself lands in st.assigned with a concrete pin
// and its own dependencies get visited — then locating sub inline in
// base's recipe or on disk beside it. The sub-package's recorded
// dependency is base's resolved pin, since a sub-package has no version
// of its own: it ships inside base's source tree.
func (r *Resolver) candidatesForSubPackage(ctx context.Context, referrer *dpackage.Package, base, sub string, st *state) ([]candidate, error) {
	baseNode := TreeNode{Name: base, Dep: version.Dependency{Variant: version.VariantRange, Range: version.AnyRange}}
	if err := r.assign(ctx, referrer, baseNode, st); err != nil {
		return nil, err
	}

	bc, ok := st.assigned[base]
	if !ok {
		return nil, nil
	}

	// A base package resolved only through a registry recipe fetch
	// (RootPath == "") has no on-disk siblings yet; it can still
	// supply an inline sub-package declaration. Fetching the full
	// archive just to read a sibling sub-package happens later, at
	// install time, once this base candidate is actually selected.
	subPkg, ok := findSubPackage(ctx, bc.pkg, sub)
	if !ok {
		return nil, nil
	}
	return []candidate{{dep: bc.dep, pkg: subPkg, preferred: bc.preferred}}, nil
}

// findSubPackage looks up sub among base's declared sub-packages,
// inline first, then as an on-disk sibling directory.
func findSubPackage(ctx context.Context, base *dpackage.Package, sub string) (*dpackage.Package, bool) {
	for _, sp := range base.Recipe.SubPackages {
		if sp.Recipe != nil {
			if sp.Recipe.Name == sub {
				return dpackage.FromRecipe(sp.Recipe, base.RootPath, base), true
			}
			continue
		}
		if base.RootPath == "" {
			continue
		}
		dir := filepath.Join(base.RootPath, sp.Path)
		child, err := dpackage.Load(ctx, dir, "", base, nil)
		if err != nil {
			continue
		}
		if child.Recipe.Name == sub {
			return child, true
		}
	}
	return nil, false
}

// splitQualifiedName splits "base:sub" into its two parts.
func splitQualifiedName(name string) (base, sub string, ok bool) {
	i := strings.IndexByte(name, ':')
	if i < 0 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

func dedupeVersions(vs []version.Version) []version.Version {
	out := make([]version.Version, 0, len(vs))
	var last version.Version
	for i, v := range vs {
		if i > 0 && v.Equal(last) {
			continue
		}
		out = append(out, v)
		last = v
	}
	return out
}

// demotePreReleases moves pre-release versions to the back of an
// already-descending-sorted list, preserving relative order within each
// group, unless allowPreRelease keeps them in place.
func demotePreReleases(vs []version.Version, allowPreRelease bool) []version.Version {
	if allowPreRelease {
		return vs
	}
	var releases, pre []version.Version
	for _, v := range vs {
		if v.IsPreRelease() {
			pre = append(pre, v)
		} else {
			releases = append(releases, v)
		}
	}
	return append(releases, pre...)
}
