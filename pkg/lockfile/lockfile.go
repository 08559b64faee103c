// Package lockfile serializes concurrent installers of the same package
// (spec.md §4.3) via a plain O_CREATE|O_EXCL marker file and a poll loop.
// No third-party flock library is wired here: none of the example
// programs in the retrieval pack imports one, and a lock file this
// coarse (one package install at a time) doesn't need real process-wide
// advisory locking semantics — just mutual exclusion between processes
// racing to unpack the same directory.
package lockfile

import (
	"context"
	"os"
	"time"

	"github.com/waypack/waypack/pkg/derrors"
)

// DefaultTimeout is the wait budget before giving up on an install lock
// (spec.md §4.3: "a file lock... with a 30-second wait").
const DefaultTimeout = 30 * time.Second

const pollInterval = 50 * time.Millisecond

// Lock is a held install lock; call Unlock to release it.
type Lock struct {
	path string
}

// Acquire creates path exclusively, retrying until timeout elapses. It
// returns derrors.ConcurrentInstallTimeout if no other process releases
// the lock in time.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, derrors.Wrap(err, derrors.Internal, "creating lock file "+path)
		}
		if time.Now().After(deadline) {
			return nil, derrors.Newf(derrors.ConcurrentInstallTimeout, "timed out waiting for lock %s", path)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Unlock releases the lock by removing its marker file. Safe to call
// once; removing an already-gone lock file is not an error.
func (l *Lock) Unlock() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return derrors.Wrap(err, derrors.Internal, "removing lock file "+l.path)
	}
	return nil
}
