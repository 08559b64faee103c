// Package selections implements SelectedVersions (spec.md §3): the
// pinned-version map persisted to waypack.selections.json.
package selections

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/waypack/waypack/pkg/atomicfile"
	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/version"
)

// FileName is the canonical selections file name within a project root.
const FileName = "waypack.selections.json"

// currentFileVersion is the only fileVersion this package accepts.
const currentFileVersion = 1

// Selections maps a package name to its pinned Dependency (a version or
// a path), tracking whether it has unsaved changes.
type Selections struct {
	versions map[string]version.Dependency
	dirty    bool
}

// New returns an empty, clean Selections.
func New() *Selections {
	return &Selections{versions: make(map[string]version.Dependency)}
}

// diskFormat mirrors the on-disk JSON shape: {"fileVersion": 1, "versions": {...}}.
// Each entry is either a bare version/branch spec string, or an object
// {"path": "..."} for a path-pinned selection (paths don't round-trip
// through version.ParseSpec, which only understands ranges and branches).
type diskFormat struct {
	FileVersion int                        `json:"fileVersion"`
	Versions    map[string]json.RawMessage `json:"versions"`
}

func encodeDependencyEntry(dep version.Dependency) json.RawMessage {
	if dep.Variant == version.VariantPath {
		raw, _ := json.Marshal(map[string]string{"path": dep.Path})
		return raw
	}
	raw, _ := json.Marshal(dep.String())
	return raw
}

func decodeDependencyEntry(raw json.RawMessage) (version.Dependency, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return version.ParseSpec(asString)
	}
	var asObject struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.Path != "" {
		return version.FromPath(asObject.Path), nil
	}
	return version.Dependency{}, derrors.New(derrors.InvalidValue, "selection entry is neither a spec string nor a {\"path\": ...} object")
}

// Load reads FileName from dir. A missing file returns an empty, clean
// Selections with no error. Malformed content degrades to an empty
// Selections plus a non-fatal warning, matching spec.md §4.4.
func Load(dir string) (*Selections, []string, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil, nil
	}
	if err != nil {
		return nil, nil, derrors.Wrap(err, derrors.Internal, "reading selections file")
	}

	var df diskFormat
	if err := json.Unmarshal(data, &df); err != nil {
		return New(), []string{"malformed " + FileName + " ignored: " + err.Error()}, nil
	}
	if df.FileVersion != currentFileVersion {
		return New(), []string{FileName + " has unsupported fileVersion, ignoring"}, nil
	}

	s := New()
	var warnings []string
	for name, raw := range df.Versions {
		dep, err := decodeDependencyEntry(raw)
		if err != nil {
			warnings = append(warnings, "selection for "+name+" ignored: "+err.Error())
			continue
		}
		s.versions[name] = dep
	}
	return s, warnings, nil
}

// Save writes the selections to dir atomically, then clears the dirty
// flag. A no-op when not dirty, unless force is true.
func (s *Selections) Save(dir string, force bool) error {
	if !s.dirty && !force {
		return nil
	}
	df := diskFormat{FileVersion: currentFileVersion, Versions: make(map[string]json.RawMessage, len(s.versions))}
	for name, dep := range s.versions {
		df.Versions[name] = encodeDependencyEntry(dep)
	}
	data, err := json.MarshalIndent(df, "", "\t")
	if err != nil {
		return derrors.Wrap(err, derrors.Internal, "marshaling selections")
	}
	if err := atomicfile.Write(filepath.Join(dir, FileName), data, 0644); err != nil {
		return derrors.Wrap(err, derrors.Internal, "writing "+FileName)
	}
	s.dirty = false
	return nil
}

// Get returns the pinned dependency for name, if any.
func (s *Selections) Get(name string) (version.Dependency, bool) {
	dep, ok := s.versions[name]
	return dep, ok
}

// Set pins name to dep, marking the store dirty if the value changed.
func (s *Selections) Set(name string, dep version.Dependency) {
	if existing, ok := s.versions[name]; ok && existing.Equal(dep) {
		return
	}
	s.versions[name] = dep
	s.dirty = true
}

// Remove unpins name, if it was pinned.
func (s *Selections) Remove(name string) {
	if _, ok := s.versions[name]; ok {
		delete(s.versions, name)
		s.dirty = true
	}
}

// Names returns pinned package names in sorted order, for deterministic
// iteration.
func (s *Selections) Names() []string {
	names := make([]string, 0, len(s.versions))
	for name := range s.versions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dirty reports whether the store has unsaved changes.
func (s *Selections) Dirty() bool { return s.dirty }
