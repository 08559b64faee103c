// Package scm infers a package's version from its source control history
// when no version is recorded in its recipe (spec.md §4.6): it shells out
// to "git describe --long --tags" the way the teacher's homebrew handler
// shells out to "brew list" rather than linking a VCS library, and caches
// the result in <root>/.waypack/version.json keyed by the HEAD commit
// hash so a repeat lookup with an unchanged HEAD skips the external call.
package scm

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/waypack/waypack/pkg/atomicfile"
	"github.com/waypack/waypack/pkg/dlog"
	"github.com/waypack/waypack/pkg/version"
)

var describePattern = regexp.MustCompile(`^v?(.+)-(\d+)-g([0-9a-f]+)$`)

// cacheFile is the on-disk shape of <root>/.waypack/version.json.
type cacheFile struct {
	HeadHash string `json:"headHash"`
	Version  string `json:"version"`
}

// InferVersion determines the version of the git repository rooted at
// dir, consulting and updating the cache at cachePath. A missing or
// unavailable git toolchain degrades to the ~master sentinel rather than
// failing the caller (spec.md §7: SCMUnavailable is non-fatal).
func InferVersion(ctx context.Context, dir, cachePath string) version.Version {
	logger := dlog.Get("scm")

	head, err := headHash(ctx, dir)
	if err != nil {
		logger.Debug().Err(err).Str("dir", dir).Msg("git unavailable, falling back to ~master")
		return version.Master
	}

	if cached, ok := readCache(cachePath, head); ok {
		v, err := version.Parse(cached)
		if err == nil {
			return v
		}
	}

	v := describe(ctx, dir)
	logger.Debug().Str("dir", dir).Str("version", v.String()).Msg("inferred version from SCM")
	writeCache(cachePath, head, v.String())
	return v
}

func describe(ctx context.Context, dir string) version.Version {
	out, err := runGit(ctx, dir, "describe", "--long", "--tags")
	if err != nil {
		return branchFallback(ctx, dir)
	}

	tag := strings.TrimSpace(string(out))
	m := describePattern.FindStringSubmatch(tag)
	if m == nil {
		return branchFallback(ctx, dir)
	}

	semver, commits, hash := m[1], m[2], m[3]
	n, _ := strconv.Atoi(commits)
	if n == 0 {
		v, err := version.Parse(semver)
		if err == nil {
			return v
		}
		return branchFallback(ctx, dir)
	}

	sep := "+"
	if strings.Contains(semver, "+") {
		sep = "."
	}
	v, err := version.Parse(semver + sep + "commit." + commits + "." + hash)
	if err != nil {
		return branchFallback(ctx, dir)
	}
	return v
}

func branchFallback(ctx context.Context, dir string) version.Version {
	out, err := runGit(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return version.Master
	}
	branch := strings.TrimSpace(string(out))
	if branch == "" || branch == "HEAD" {
		return version.Master
	}
	return version.Branch(branch)
}

func headHash(ctx context.Context, dir string) (string, error) {
	out, err := runGit(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

func readCache(path, head string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var c cacheFile
	if err := json.Unmarshal(data, &c); err != nil {
		return "", false
	}
	if c.HeadHash != head {
		return "", false
	}
	return c.Version, true
}

func writeCache(path, head, ver string) {
	data, err := json.Marshal(cacheFile{HeadHash: head, Version: ver})
	if err != nil {
		return
	}
	_ = atomicfile.Write(path, data, 0644)
}
