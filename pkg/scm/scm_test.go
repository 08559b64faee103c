package scm_test

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waypack/waypack/pkg/scm"
	"github.com/waypack/waypack/pkg/version"
)

func skipIfGitNotAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("Skipping test: git command not available")
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=waypack-test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=waypack-test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func newRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "initial")
	return dir
}

func TestInferVersionExactTag(t *testing.T) {
	skipIfGitNotAvailable(t)
	dir := newRepo(t)
	runGit(t, dir, "tag", "v1.2.3")

	cachePath := filepath.Join(t.TempDir(), "version.json")
	v := scm.InferVersion(context.Background(), dir, cachePath)

	require.True(t, v.IsNumeric())
	require.Equal(t, "1.2.3", v.String())
}

func TestInferVersionCommitsSinceTag(t *testing.T) {
	skipIfGitNotAvailable(t)
	dir := newRepo(t)
	runGit(t, dir, "tag", "v1.0.0")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.txt"), []byte("more"), 0644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "second")

	cachePath := filepath.Join(t.TempDir(), "version.json")
	v := scm.InferVersion(context.Background(), dir, cachePath)

	require.Contains(t, v.String(), "1.0.0+commit.1.")
}

func TestInferVersionNoTagFallsBackToBranch(t *testing.T) {
	skipIfGitNotAvailable(t)
	dir := newRepo(t)

	cachePath := filepath.Join(t.TempDir(), "version.json")
	v := scm.InferVersion(context.Background(), dir, cachePath)

	require.True(t, v.IsBranch())
}

func TestInferVersionNonGitDirFallsBackToMaster(t *testing.T) {
	skipIfGitNotAvailable(t)
	dir := t.TempDir()

	cachePath := filepath.Join(t.TempDir(), "version.json")
	v := scm.InferVersion(context.Background(), dir, cachePath)

	require.Equal(t, version.Master, v)
}

func TestInferVersionUsesCacheOnUnchangedHead(t *testing.T) {
	skipIfGitNotAvailable(t)
	dir := newRepo(t)
	runGit(t, dir, "tag", "v2.0.0")

	cachePath := filepath.Join(t.TempDir(), "version.json")
	first := scm.InferVersion(context.Background(), dir, cachePath)
	require.Equal(t, "2.0.0", first.String())

	// Keep the recorded HEAD hash but change the cached version: only a
	// lookup served from the cache can return it.
	var entry map[string]string
	require.NoError(t, json.Unmarshal(mustRead(t, cachePath), &entry))
	entry["version"] = "9.9.9"
	data, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cachePath, data, 0644))

	second := scm.InferVersion(context.Background(), dir, cachePath)
	require.Equal(t, "9.9.9", second.String())
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
