// Package depregistry defines the Registry seam the Resolver and Package
// Manager use to discover and fetch package versions (spec.md §3, §9 —
// "registries and archive fetchers are interfaces only"). The domain
// depends only on this interface; the sole implementation carried here is
// a filesystem-backed fake for tests and offline development, grounded on
// the teacher's pattern of an interface owned by the domain package with a
// concrete adapter supplied separately.
package depregistry

import "github.com/waypack/waypack/pkg/version"

// Registry is an external collaborator that knows about published
// versions of named packages, can report which are yanked, and can fetch
// a package's recipe or its source archive.
type Registry interface {
	// ListVersions returns every version this registry has published for
	// name, in no particular order.
	ListVersions(name string) ([]version.Version, error)

	// YankedVersions returns the subset of a package's published versions
	// that have been withdrawn. A yanked version is still fetchable but
	// should not be selected by a fresh resolution unless already pinned.
	YankedVersions(name string) ([]version.Version, error)

	// FetchRecipe retrieves the recipe for name at v without unpacking a
	// full archive, used when the resolver only needs to read a
	// sub-package declaration or dependency list.
	FetchRecipe(name string, v version.Version) ([]byte, error)

	// FetchArchive downloads and unpacks name at v into destDir.
	FetchArchive(name string, v version.Version, destDir string) error
}
