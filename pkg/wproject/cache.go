package wproject

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/waypack/waypack/pkg/atomicfile"
	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/dpaths"
	"github.com/waypack/waypack/pkg/recipe"
)

// CacheFileName is the per-project build-plan cache, grounded on the
// teacher's layered config envelope: a format-versioned JSON document
// decoded into a typed struct rather than read ad hoc.
const CacheFileName = "waypack.json"

// currentCacheVersion is the only fileVersion this package accepts; a
// mismatch or malformed file degrades to an empty cache rather than
// failing the load, the same tolerance selections.Load extends to
// waypack.selections.json.
const currentCacheVersion = 1

// Cache is the last build plan GetPackageConfigs computed for a given
// platform/root-configuration pair, so a repeat invocation against an
// unchanged recipe graph can skip the resolution walk.
type Cache struct {
	Platform        recipe.Platform   `json:"platform"`
	RootConfig      string            `json:"rootConfig"`
	AllowNonLibrary bool              `json:"allowNonLibrary"`
	Configs         map[string]string `json:"configs"`
	dirty           bool
}

type cacheEnvelope struct {
	FileVersion     int               `json:"fileVersion"`
	Platform        recipe.Platform   `json:"platform"`
	RootConfig      string            `json:"rootConfig"`
	AllowNonLibrary bool              `json:"allowNonLibrary"`
	Configs         map[string]string `json:"configs"`
}

// loadCache reads CacheFileName from dir. A missing file is not an
// error; a malformed one degrades to an empty cache plus a warning.
func loadCache(dir string) (*Cache, string, error) {
	path := filepath.Join(dpaths.ProjectCacheDir(dir), CacheFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Cache{}, "", nil
	}
	if err != nil {
		return nil, "", derrors.Wrap(err, derrors.Internal, "reading project cache")
	}

	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &Cache{}, "malformed " + CacheFileName + " ignored: " + err.Error(), nil
	}
	if env.FileVersion != currentCacheVersion {
		return &Cache{}, CacheFileName + " has unsupported fileVersion, ignoring", nil
	}

	return &Cache{
		Platform:        env.Platform,
		RootConfig:      env.RootConfig,
		AllowNonLibrary: env.AllowNonLibrary,
		Configs:         env.Configs,
	}, "", nil
}

// save writes the cache to dir atomically, via the same temp-then-rename
// shape atomicfile.Write uses for a single file.
func (c *Cache) save(dir string) error {
	env := cacheEnvelope{
		FileVersion:     currentCacheVersion,
		Platform:        c.Platform,
		RootConfig:      c.RootConfig,
		AllowNonLibrary: c.AllowNonLibrary,
		Configs:         c.Configs,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return derrors.Wrap(err, derrors.Internal, "encoding project cache")
	}

	cacheDir := dpaths.ProjectCacheDir(dir)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return derrors.Wrap(err, derrors.Internal, "creating project cache directory")
	}
	if err := atomicfile.Write(filepath.Join(cacheDir, CacheFileName), data, 0644); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// valid reports whether the cache was computed for exactly this
// platform/root-configuration/allow-non-library combination and still
// has an assignment.
func (c *Cache) valid(platform recipe.Platform, rootConfig string, allowNonLibrary bool) bool {
	return c != nil && c.Configs != nil &&
		c.Platform == platform && c.RootConfig == rootConfig && c.AllowNonLibrary == allowNonLibrary
}

// CachedConfigs returns the project's last computed configuration
// assignment if it matches platform, rootConfig, and allowNonLibrary
// exactly, avoiding a repeat of GetPackageConfigs' pruning walk.
func (p *Project) CachedConfigs(platform recipe.Platform, rootConfig string, allowNonLibrary bool) (map[string]string, bool) {
	if !p.cache.valid(platform, rootConfig, allowNonLibrary) {
		return nil, false
	}
	return p.cache.Configs, true
}

// SetCachedConfigs records a freshly computed configuration assignment
// and persists it to the per-project cache file.
func (p *Project) SetCachedConfigs(platform recipe.Platform, rootConfig string, allowNonLibrary bool, configs map[string]string) error {
	p.cache = &Cache{Platform: platform, RootConfig: rootConfig, AllowNonLibrary: allowNonLibrary, Configs: configs, dirty: true}
	return p.cache.save(p.Root.RootPath)
}
