// Package dpaths resolves the search roots and cache locations the
// Package Manager and Project read and write: project-local, user-wide,
// system-wide, plus any roots named in WAYPACKPATH.
package dpaths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
)

const (
	// EnvSearchPath lists extra package search roots, separated the way
	// the host OS separates PATH entries.
	EnvSearchPath = "WAYPACKPATH"

	// EnvRecursionGuard carries the comma-joined breadcrumb of packages
	// already being installed by an ancestor process, preventing a
	// nested invocation from re-entering the same install.
	EnvRecursionGuard = "WAYPACK_PACKAGES_USED"

	// EnvDFlags is read by the "$DFLAGS" built-in build type.
	EnvDFlags = "DFLAGS"
)

// Locations is the set of directories the Package Manager indexes, in
// the precedence order local packages should be preferred: project,
// user, system, then any WAYPACKPATH entries.
type Locations struct {
	Project string
	User    string
	System  string
	Extra   []string
}

// Default returns the standard locations for a project rooted at
// projectRoot. User and system roots follow the XDG base directory
// specification via adrg/xdg; extra roots come from WAYPACKPATH.
func Default(projectRoot string) Locations {
	return Locations{
		Project: filepath.Join(projectRoot, ".waypack", "packages"),
		User:    filepath.Join(xdg.DataHome, "waypack", "packages"),
		System:  systemPackagesDir(),
		Extra:   SearchPathEntries(os.Getenv(EnvSearchPath)),
	}
}

// All returns the locations in precedence order, skipping empty entries.
func (l Locations) All() []string {
	out := make([]string, 0, 3+len(l.Extra))
	for _, p := range []string{l.Project, l.User, l.System} {
		if p != "" {
			out = append(out, p)
		}
	}
	return append(out, l.Extra...)
}

// SearchPathEntries splits a WAYPACKPATH-style string on the host's path
// list separator, dropping empty segments.
func SearchPathEntries(v string) []string {
	if v == "" {
		return nil
	}
	sep := ":"
	if runtime.GOOS == "windows" {
		sep = ";"
	}
	var out []string
	for _, p := range strings.Split(v, sep) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func systemPackagesDir() string {
	if runtime.GOOS == "windows" {
		return `C:\ProgramData\waypack\packages`
	}
	return "/var/lib/waypack/packages"
}

// ProjectCacheDir returns the per-project cache directory (<root>/.waypack).
func ProjectCacheDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".waypack")
}

// RecursionGuardEntries parses the WAYPACK_PACKAGES_USED breadcrumb.
func RecursionGuardEntries() map[string]bool {
	set := make(map[string]bool)
	for _, name := range strings.Split(os.Getenv(EnvRecursionGuard), ",") {
		if name != "" {
			set[name] = true
		}
	}
	return set
}

// ExtendRecursionGuard returns the environment-variable value to pass to a
// child process, adding name to the existing breadcrumb if not present.
func ExtendRecursionGuard(name string) string {
	existing := os.Getenv(EnvRecursionGuard)
	if existing == "" {
		return name
	}
	for _, n := range strings.Split(existing, ",") {
		if n == name {
			return existing
		}
	}
	return existing + "," + name
}
