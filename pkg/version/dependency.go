package version

import (
	"fmt"
	"strings"
)

// Variant tags which alternative a Dependency currently holds.
type Variant int

const (
	// VariantRange is an inclusive-lower/exclusive-upper (or exact)
	// version range.
	VariantRange Variant = iota
	// VariantBranch pins to a specific branch (spec prefix "~").
	VariantBranch
	// VariantPath pins to a filesystem path, absolute or relative to
	// the referring package.
	VariantPath
)

// Range is a half-open version interval: [Min, Max) unless Exact, in
// which case Min == Max and both bounds are inclusive to that one value.
type Range struct {
	Min   Version
	Max   Version
	Exact bool
}

// Dependency is the tagged-variant constraint described in spec.md §3:
// a version range, a branch pin, or a path pin, with optional/default
// bits meaningful only for optional dependencies.
type Dependency struct {
	Variant  Variant
	Range    Range
	Branch   string
	Path     string
	Optional bool
	Default  bool
}

// AnyRange matches every numeric version ("*").
var AnyRange = Range{Min: Version{Kind: KindNumeric}, Max: Version{Kind: KindNumeric, Major: 1 << 30}}

// FromVersion builds an exact-match range Dependency.
func FromVersion(v Version) Dependency {
	return Dependency{Variant: VariantRange, Range: Range{Min: v, Max: v, Exact: true}}
}

// FromBranch builds a branch-pin Dependency (name without leading '~').
func FromBranch(name string) Dependency {
	return Dependency{Variant: VariantBranch, Branch: name}
}

// FromPath builds a path-pin Dependency.
func FromPath(path string) Dependency {
	return Dependency{Variant: VariantPath, Path: path}
}

// ParseSpec parses a dependency specifier string:
//
//	"~branch-name"            -> branch pin
//	"1.2.3"                   -> exact version
//	"*"                       -> any version
//	"^1.2.3"                  -> caret range: >=1.2.3 <2.0.0 (^0.2.3 -> <0.3.0, ^0.0.3 -> <0.0.4)
//	"~>1.2.3"                 -> tilde range: >=1.2.3 <1.3.0 (patch-level), or <2.0.0 if only MAJOR.MINOR given
//	">=1.0.0 <2.0.0"          -> explicit bound pair
//	">=1.0.0"                 -> open-ended lower bound
func ParseSpec(s string) (Dependency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Dependency{}, fmt.Errorf("version: empty dependency spec")
	}
	if strings.HasPrefix(s, "~") && !strings.HasPrefix(s, "~>") {
		return FromBranch(s[1:]), nil
	}
	if s == "*" {
		return Dependency{Variant: VariantRange, Range: AnyRange}, nil
	}
	if strings.HasPrefix(s, "^") {
		return caretRange(s[1:])
	}
	if strings.HasPrefix(s, "~>") {
		return tildeRange(strings.TrimSpace(s[2:]))
	}
	if strings.Contains(s, " ") || strings.HasPrefix(s, ">=") || strings.HasPrefix(s, "<") {
		return explicitRange(s)
	}
	v, err := Parse(s)
	if err != nil {
		return Dependency{}, err
	}
	return FromVersion(v), nil
}

func caretRange(s string) (Dependency, error) {
	min, err := Parse(s)
	if err != nil {
		return Dependency{}, err
	}
	max := min
	if min.Major > 0 {
		max = Version{Kind: KindNumeric, Major: min.Major + 1}
	} else if min.Minor > 0 {
		max = Version{Kind: KindNumeric, Major: 0, Minor: min.Minor + 1}
	} else {
		max = Version{Kind: KindNumeric, Major: 0, Minor: 0, Patch: min.Patch + 1}
	}
	return Dependency{Variant: VariantRange, Range: Range{Min: min, Max: max}}, nil
}

func tildeRange(s string) (Dependency, error) {
	min, err := Parse(s)
	if err != nil {
		return Dependency{}, err
	}
	parts := strings.Split(strings.SplitN(s, "+", 2)[0], ".")
	max := Version{Kind: KindNumeric}
	if len(parts) >= 3 {
		max = Version{Kind: KindNumeric, Major: min.Major, Minor: min.Minor + 1}
	} else {
		max = Version{Kind: KindNumeric, Major: min.Major + 1}
	}
	return Dependency{Variant: VariantRange, Range: Range{Min: min, Max: max}}, nil
}

func explicitRange(s string) (Dependency, error) {
	r := Range{Min: Version{Kind: KindNumeric}, Max: Version{Kind: KindNumeric, Major: 1 << 30}}
	haveMin, haveMax := false, false
	for _, tok := range strings.Fields(s) {
		switch {
		case strings.HasPrefix(tok, ">="):
			v, err := Parse(tok[2:])
			if err != nil {
				return Dependency{}, err
			}
			r.Min = v
			haveMin = true
		case strings.HasPrefix(tok, ">"):
			v, err := Parse(tok[1:])
			if err != nil {
				return Dependency{}, err
			}
			r.Min = v
			haveMin = true
		case strings.HasPrefix(tok, "<="):
			v, err := Parse(tok[2:])
			if err != nil {
				return Dependency{}, err
			}
			r.Max = v
			haveMax = true
		case strings.HasPrefix(tok, "<"):
			v, err := Parse(tok[1:])
			if err != nil {
				return Dependency{}, err
			}
			r.Max = v
			haveMax = true
		default:
			return Dependency{}, fmt.Errorf("version: unrecognized range token %q", tok)
		}
	}
	if !haveMin && !haveMax {
		return Dependency{}, fmt.Errorf("version: empty range spec %q", s)
	}
	return Dependency{Variant: VariantRange, Range: r}, nil
}

// String renders the dependency back to a specifier string.
func (d Dependency) String() string {
	switch d.Variant {
	case VariantBranch:
		return "~" + d.Branch
	case VariantPath:
		return d.Path
	default:
		if d.Range.Exact {
			return d.Range.Min.String()
		}
		return fmt.Sprintf(">=%s <%s", d.Range.Min, d.Range.Max)
	}
}

// Matches reports whether v satisfies this dependency. Path dependencies
// never match a Version (they are resolved on disk instead).
func (d Dependency) Matches(v Version) bool {
	switch d.Variant {
	case VariantBranch:
		return v.IsBranch() && v.Branch == d.Branch
	case VariantPath:
		return false
	default:
		if !v.IsNumeric() {
			return false
		}
		if d.Range.Exact {
			return Compare(v, d.Range.Min) == 0
		}
		return !Less(v, d.Range.Min) && Less(v, d.Range.Max)
	}
}

// Merge intersects two dependencies. Two dependencies of different
// variants never merge (path/branch/range are mutually exclusive
// commitments). Returns ok=false when the intersection is empty or the
// variants are incompatible.
func Merge(a, b Dependency) (Dependency, bool) {
	if a.Variant != b.Variant {
		return Dependency{}, false
	}
	switch a.Variant {
	case VariantBranch:
		if a.Branch != b.Branch {
			return Dependency{}, false
		}
		return a, true
	case VariantPath:
		if a.Path != b.Path {
			return Dependency{}, false
		}
		return a, true
	default:
		min := a.Range.Min
		if Less(min, b.Range.Min) {
			min = b.Range.Min
		}
		max := a.Range.Max
		if Less(b.Range.Max, max) {
			max = b.Range.Max
		}
		if a.Range.Exact {
			max = a.Range.Min
			if !b.Matches(a.Range.Min) {
				return Dependency{}, false
			}
			return a, true
		}
		if b.Range.Exact {
			if !a.Matches(b.Range.Min) {
				return Dependency{}, false
			}
			return b, true
		}
		if !Less(min, max) {
			return Dependency{}, false
		}
		merged := Dependency{
			Variant:  VariantRange,
			Range:    Range{Min: min, Max: max},
			Optional: a.Optional && b.Optional,
			Default:  a.Default || b.Default,
		}
		return merged, true
	}
}

// Equal reports whether two dependencies denote the same constraint,
// ignoring Optional/Default classification bits.
func (d Dependency) Equal(o Dependency) bool {
	if d.Variant != o.Variant {
		return false
	}
	switch d.Variant {
	case VariantBranch:
		return d.Branch == o.Branch
	case VariantPath:
		return d.Path == o.Path
	default:
		return d.Range.Exact == o.Range.Exact &&
			Compare(d.Range.Min, o.Range.Min) == 0 &&
			Compare(d.Range.Max, o.Range.Max) == 0
	}
}
