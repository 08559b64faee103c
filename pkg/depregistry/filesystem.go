package depregistry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/version"
)

// IndexFileName is the manifest a FilesystemRegistry reads at its root.
const IndexFileName = "index.yaml"

// indexEntry describes one published version of one package, as recorded
// in index.yaml.
type indexEntry struct {
	Version    string `yaml:"version"`
	Yanked     bool   `yaml:"yanked"`
	RecipeFile string `yaml:"recipeFile"`
	ArchiveDir string `yaml:"archiveDir"`
}

type indexFile struct {
	Packages map[string][]indexEntry `yaml:"packages"`
}

// FilesystemRegistry is a Registry backed by a directory tree: an
// index.yaml manifest plus one subdirectory per package holding recipe
// files and archive source trees. It stands in for a real HTTP registry
// client in tests and offline development, the way the teacher's
// filesystem datastore stands in for a real backing store behind the
// same interface its production adapter implements.
type FilesystemRegistry struct {
	root  string
	index indexFile
}

// NewFilesystemRegistry loads root/index.yaml and returns a Registry
// backed by it. The index is read once at construction; callers that
// mutate the tree during a test should construct a fresh registry after.
func NewFilesystemRegistry(root string) (*FilesystemRegistry, error) {
	data, err := os.ReadFile(filepath.Join(root, IndexFileName))
	if err != nil {
		return nil, derrors.Wrapf(err, derrors.NotFound, "reading registry index at %s", root)
	}

	var idx indexFile
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, derrors.Wrapf(err, derrors.MalformedSyntax, "parsing registry index at %s", root)
	}

	return &FilesystemRegistry{root: root, index: idx}, nil
}

func (r *FilesystemRegistry) entries(name string) ([]indexEntry, error) {
	entries, ok := r.index.Packages[name]
	if !ok {
		return nil, derrors.Newf(derrors.NotFound, "package %q not found in registry", name)
	}
	return entries, nil
}

// ListVersions implements Registry.
func (r *FilesystemRegistry) ListVersions(name string) ([]version.Version, error) {
	entries, err := r.entries(name)
	if err != nil {
		return nil, err
	}

	out := make([]version.Version, 0, len(entries))
	for _, e := range entries {
		v, err := version.Parse(e.Version)
		if err != nil {
			return nil, derrors.Wrapf(err, derrors.MalformedSyntax, "package %q has malformed version %q in index", name, e.Version)
		}
		out = append(out, v)
	}
	return out, nil
}

// YankedVersions implements Registry.
func (r *FilesystemRegistry) YankedVersions(name string) ([]version.Version, error) {
	entries, err := r.entries(name)
	if err != nil {
		return nil, err
	}

	var out []version.Version
	for _, e := range entries {
		if !e.Yanked {
			continue
		}
		v, err := version.Parse(e.Version)
		if err != nil {
			return nil, derrors.Wrapf(err, derrors.MalformedSyntax, "package %q has malformed version %q in index", name, e.Version)
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *FilesystemRegistry) findEntry(name string, v version.Version) (indexEntry, error) {
	entries, err := r.entries(name)
	if err != nil {
		return indexEntry{}, err
	}

	for _, e := range entries {
		ev, err := version.Parse(e.Version)
		if err != nil {
			continue
		}
		if ev.Equal(v) {
			return e, nil
		}
	}
	return indexEntry{}, derrors.Newf(derrors.NotFound, "package %q has no published version %s", name, v)
}

// FetchRecipe implements Registry.
func (r *FilesystemRegistry) FetchRecipe(name string, v version.Version) ([]byte, error) {
	e, err := r.findEntry(name, v)
	if err != nil {
		return nil, err
	}
	if e.RecipeFile == "" {
		return nil, derrors.Newf(derrors.NotFound, "package %q version %s has no recipe file in index", name, v)
	}

	data, err := os.ReadFile(filepath.Join(r.root, name, e.RecipeFile))
	if err != nil {
		return nil, derrors.Wrapf(err, derrors.NotFound, "fetching recipe for %q %s", name, v)
	}
	return data, nil
}

// FetchArchive implements Registry, copying the package's archive
// directory tree into destDir.
func (r *FilesystemRegistry) FetchArchive(name string, v version.Version, destDir string) error {
	e, err := r.findEntry(name, v)
	if err != nil {
		return err
	}
	if e.ArchiveDir == "" {
		return derrors.Newf(derrors.NotFound, "package %q version %s has no archive directory in index", name, v)
	}

	src := filepath.Join(r.root, name, e.ArchiveDir)
	return copyTree(src, destDir)
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return nil
}
