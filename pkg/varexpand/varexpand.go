// Package varexpand implements the $NAME scanner build-setting string
// values go through before being handed to the compiler driver (spec.md
// §4.7): a straightforward scan over '$'/'$$'/identifier, no dynamic
// reflection needed (spec.md §9 Design Notes).
package varexpand

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/waypack/waypack/pkg/derrors"
)

// Names bundles the identifiers Expand resolves before falling back to
// the process environment.
type Names struct {
	// PackageDir is the directory of the package the value belongs to.
	PackageDir string
	// RootPackageDir is the directory of the project's root package.
	RootPackageDir string
	// KnownPackageDirs maps a sanitized package name (upper-cased,
	// '-'/':' replaced with '_') to its directory, covering the
	// "<NAME>_PACKAGE_DIR" form for every transitively known package.
	KnownPackageDirs map[string]string
}

// SanitizeName upper-cases a package name and replaces '-' and ':' with
// '_', the transform applied to build the "<NAME>_PACKAGE_DIR" variable.
func SanitizeName(name string) string {
	name = strings.ToUpper(name)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ":", "_")
	return name
}

// Expand substitutes every $NAME reference in s. "$$" escapes a literal
// '$'. An unresolved name is a fatal UnknownVariable error: PACKAGE_DIR,
// ROOT_PACKAGE_DIR, any "<SANITIZED-NAME>_PACKAGE_DIR" in names.KnownPackageDirs,
// or any environment variable.
func Expand(s string, names Names) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}

		if i+1 < len(s) && s[i+1] == '$' {
			b.WriteByte('$')
			i += 2
			continue
		}

		j := i + 1
		for j < len(s) && isIdentByte(s[j]) {
			j++
		}
		if j == i+1 {
			// Bare '$' with no identifier following: pass through literally.
			b.WriteByte('$')
			i++
			continue
		}

		name := s[i+1 : j]
		val, err := resolve(name, names)
		if err != nil {
			return "", err
		}
		b.WriteString(val)
		i = j
	}
	return b.String(), nil
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func resolve(name string, names Names) (string, error) {
	switch name {
	case "PACKAGE_DIR":
		return names.PackageDir, nil
	case "ROOT_PACKAGE_DIR":
		return names.RootPackageDir, nil
	}

	if names.KnownPackageDirs != nil {
		if dir, ok := names.KnownPackageDirs[name]; ok {
			return dir, nil
		}
		if base, ok := strings.CutSuffix(name, "_PACKAGE_DIR"); ok {
			if dir, ok := names.KnownPackageDirs[base]; ok {
				return dir, nil
			}
		}
	}

	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}

	return "", derrors.Newf(derrors.UnknownVariable, "unknown build-setting variable %q", name)
}

// ExpandPath expands s like Expand, then rebases a relative result onto
// names.PackageDir, matching the rule for values tagged as paths.
func ExpandPath(s string, names Names) (string, error) {
	expanded, err := Expand(s, names)
	if err != nil {
		return "", err
	}
	if expanded == "" || filepath.IsAbs(expanded) {
		return expanded, nil
	}
	return filepath.Join(names.PackageDir, expanded), nil
}
