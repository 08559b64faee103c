package recipe

import "strings"

// Platform identifies the target triple a build-settings template is
// being resolved for.
type Platform struct {
	OS       string
	Arch     string
	Compiler string
}

// MatchesFilter reports whether a platform-filter suffix (e.g. "linux",
// "linux-x86_64", "linux-x86_64-dmd", or "" for unconditional) admits p.
// The filter is a hyphen-separated os[-arch[-compiler]] prefix: each
// present token must equal the corresponding field of p.
func MatchesFilter(filter string, p Platform) bool {
	if filter == "" {
		return true
	}
	tokens := strings.Split(filter, "-")
	fields := []string{p.OS, p.Arch, p.Compiler}
	if len(tokens) > len(fields) {
		return false
	}
	for i, tok := range tokens {
		if tok == "" {
			continue
		}
		if !strings.EqualFold(tok, fields[i]) {
			return false
		}
	}
	return true
}

// MatchesAnyFilter reports whether any of the given filters admit p. An
// empty filter list is treated as unconditional (matches everything),
// mirroring a configuration with no declared "platforms" restriction.
func MatchesAnyFilter(filters []string, p Platform) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if MatchesFilter(f, p) {
			return true
		}
	}
	return false
}
