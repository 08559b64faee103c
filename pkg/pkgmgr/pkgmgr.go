// Package pkgmgr implements the Package Manager (spec.md §4.3): an index
// of Packages across the search roots resolved by pkg/dpaths, with
// lookup, on-demand directory loading, and install/remove operations.
package pkgmgr

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/dlog"
	"github.com/waypack/waypack/pkg/dpackage"
	"github.com/waypack/waypack/pkg/dpaths"
	"github.com/waypack/waypack/pkg/version"
)

// installedLayout is the directory shape storeFetchedPackage writes and
// Scan reads back: <root>/<name>-<version>/<name>/.
const installedLayout = "%s-%s"

// Manager indexes Packages across a set of search roots plus any
// explicit override paths (spec.md §4.3).
type Manager struct {
	locations dpaths.Locations
	overrides []string

	mu      sync.RWMutex
	byPath  map[string]*dpackage.Package
	byNameV map[string]map[string]*dpackage.Package // name -> version string -> Package
}

// New constructs a Manager over locations. Call Scan to populate its
// index before using GetPackage/GetBestPackage/Packages.
func New(locations dpaths.Locations) *Manager {
	return &Manager{
		locations: locations,
		byPath:    make(map[string]*dpackage.Package),
		byNameV:   make(map[string]map[string]*dpackage.Package),
	}
}

// AddOverridePath registers an extra root scanned ahead of the standard
// locations, the way an explicit --override-path flag would.
func (m *Manager) AddOverridePath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides = append(m.overrides, path)
}

// roots returns override paths first, then the standard locations in
// their precedence order, so a later Scan entry for the same
// name+version never displaces an earlier, higher-precedence one.
func (m *Manager) roots() []string {
	out := append([]string{}, m.overrides...)
	return append(out, m.locations.All()...)
}

// parsePackageDirName splits an installed directory name of the form
// "<name>-<version>" back into its parts. Package names may themselves
// contain '-', so the split point is ambiguous in general; this tries
// the shortest trailing segment as the version first, since real
// version strings begin with a digit immediately after the separating
// dash far more often than a package name segment does.
func parsePackageDirName(dirName string) (name string, v version.Version, ok bool) {
	parts := strings.Split(dirName, "-")
	for i := len(parts) - 1; i >= 1; i-- {
		candidate := strings.Join(parts[i:], "-")
		parsed, err := version.Parse(candidate)
		if err != nil {
			continue
		}
		return strings.Join(parts[:i], "-"), parsed, true
	}
	return "", version.Version{}, false
}

// Scan walks every search root and indexes the packages it finds,
// discovering install directories named "<name>-<version>/<name>/"
// (spec.md §4.3). Unreadable roots are skipped rather than failing the
// whole scan: a user-wide root that simply doesn't exist yet is normal.
func (m *Manager) Scan(ctx context.Context) error {
	logger := dlog.Get("pkgmgr")

	for _, root := range m.roots() {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name, v, ok := parsePackageDirName(entry.Name())
			if !ok {
				continue
			}
			pkgDir := filepath.Join(root, entry.Name(), name)
			pkg, err := dpackage.Load(ctx, pkgDir, "", nil, &v)
			if err != nil {
				logger.Debug().Str("dir", pkgDir).Err(err).Msg("skipping unloadable installed package")
				continue
			}
			m.index(pkg)
		}
	}
	return nil
}

func (m *Manager) index(pkg *dpackage.Package) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := pkg.Recipe.Name
	v := pkg.EffectiveVersion()
	if m.byNameV[name] == nil {
		m.byNameV[name] = make(map[string]*dpackage.Package)
	}
	if _, exists := m.byNameV[name][v.String()]; !exists {
		m.byNameV[name][v.String()] = pkg
	}
}

// GetPackage returns the indexed package exactly matching name and
// version, if any.
func (m *Manager) GetPackage(name string, v version.Version) (*dpackage.Package, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pkg, ok := m.byNameV[name][v.String()]
	return pkg, ok
}

// GetBestPackage returns the highest version of name satisfying dep
// among indexed packages, preferring a non-pre-release candidate over a
// pre-release one when both satisfy dep (spec.md §4.5 ordering rule,
// reused here since the Package Manager is the Resolver's only source
// of already-installed candidates).
func (m *Manager) GetBestPackage(name string, dep version.Dependency) (*dpackage.Package, bool) {
	m.mu.RLock()
	versions := make([]*dpackage.Package, 0, len(m.byNameV[name]))
	for _, pkg := range m.byNameV[name] {
		versions = append(versions, pkg)
	}
	m.mu.RUnlock()

	var best *dpackage.Package
	var bestVersion version.Version
	for _, pkg := range versions {
		v := pkg.EffectiveVersion()
		if !dep.Matches(v) {
			continue
		}
		if best == nil || preferVersion(v, bestVersion) {
			best, bestVersion = pkg, v
		}
	}
	return best, best != nil
}

func preferVersion(candidate, current version.Version) bool {
	if candidate.IsPreRelease() != current.IsPreRelease() {
		return !candidate.IsPreRelease()
	}
	return version.Less(current, candidate)
}

// GetOrLoadPackage loads the recipe at path if it hasn't already been
// loaded by this Manager, caching the result by absolute path.
func (m *Manager) GetOrLoadPackage(ctx context.Context, path string) (*dpackage.Package, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, derrors.Wrapf(err, derrors.Internal, "resolving package path %s", path)
	}

	m.mu.RLock()
	if pkg, ok := m.byPath[abs]; ok {
		m.mu.RUnlock()
		return pkg, nil
	}
	m.mu.RUnlock()

	pkg, err := dpackage.Load(ctx, abs, "", nil, nil)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.byPath[abs] = pkg
	m.mu.Unlock()
	m.index(pkg)
	return pkg, nil
}

// Packages returns every indexed version of name, in no particular
// order.
func (m *Manager) Packages(name string) []*dpackage.Package {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*dpackage.Package, 0, len(m.byNameV[name]))
	for _, pkg := range m.byNameV[name] {
		out = append(out, pkg)
	}
	return out
}

// Names returns every indexed package name, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byNameV))
	for name := range m.byNameV {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
