// Package atomicfile writes files so a reader never observes a partial
// write: the content lands in a temporary file beside the destination,
// then an os.Rename makes it visible in one step.
package atomicfile

import (
	"os"
	"path/filepath"
)

// Write atomically replaces path's contents with data. The parent
// directory must already exist; callers that need it created should do
// so explicitly (see pkg/pkgmgr.storeFetchedPackage).
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
