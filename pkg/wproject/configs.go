package wproject

import (
	"sort"

	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/dlog"
	"github.com/waypack/waypack/pkg/recipe"
)

// vertexKey identifies one (package, configuration) candidate.
func vertexKey(qname, config string) string { return qname + "\x00" + config }

// detectCycle walks the bound package graph (ignoring configurations
// entirely) for a cycle, the package-level invariant spec.md §4.4 calls
// out separately from the configuration-pruning algorithm ("cycles
// among packages are forbidden").
func (p *Project) detectCycle() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(p.nodes))

	var visit func(qname string) error
	visit = func(qname string) error {
		switch state[qname] {
		case visiting:
			return derrors.Newf(derrors.DependencyCycle, "dependency cycle detected at package %q", qname)
		case done:
			return nil
		}
		state[qname] = visiting
		if n, ok := p.nodes[qname]; ok {
			for _, edge := range n.Deps {
				if edge.Pkg == nil {
					continue
				}
				if err := visit(edge.Pkg.QualifiedName()); err != nil {
					return err
				}
			}
		}
		state[qname] = done
		return nil
	}

	return visit(p.Root.QualifiedName())
}

// parentsOf maps each package name to the (deduplicated) set of package
// names that declare a bound dependency edge onto it.
func (p *Project) parentsOf() map[string][]string {
	parents := make(map[string][]string)
	for qname, n := range p.nodes {
		seen := make(map[string]bool)
		for _, edge := range n.Deps {
			if edge.Pkg == nil {
				continue
			}
			dep := edge.Pkg.QualifiedName()
			if seen[dep] {
				continue
			}
			seen[dep] = true
			parents[dep] = append(parents[dep], qname)
		}
	}
	return parents
}

// GetPackageConfigs implements spec.md §4.4's getPackageConfigs: it
// assigns each reachable package exactly one configuration, subject to
// platform admission, parental agreement (via sub-configuration
// overrides or the dependency's own admissible set), and freedom from
// cycles.
func (p *Project) GetPackageConfigs(platform recipe.Platform, rootConfig string, allowNonLibrary bool) (map[string]string, error) {
	if cached, ok := p.CachedConfigs(platform, rootConfig, allowNonLibrary); ok {
		return cached, nil
	}

	if err := p.detectCycle(); err != nil {
		return nil, err
	}

	rootName := p.Root.QualifiedName()
	candidates := make(map[string]map[string]bool, len(p.nodes))
	for qname, n := range p.nodes {
		var names []string
		if qname == rootName {
			if rootConfig != "" {
				names = []string{rootConfig}
			} else {
				names = n.Pkg.GetPlatformConfigurations(platform, allowNonLibrary)
			}
		} else {
			names = n.Pkg.GetPlatformConfigurations(platform, false)
		}
		set := make(map[string]bool, len(names))
		for _, name := range names {
			set[name] = true
		}
		candidates[qname] = set
	}

	edges := make(map[string][]string)
	for qname, n := range p.nodes {
		referrer := n.Pkg
		for c := range candidates[qname] {
			for _, edge := range n.Deps {
				if edge.Pkg == nil {
					continue
				}
				depName := edge.Pkg.QualifiedName()
				var allowed map[string]bool
				if override, ok := referrer.GetSubConfiguration(c, edge.Name); ok {
					allowed = map[string]bool{}
					if candidates[depName][override] {
						allowed[override] = true
					}
				} else {
					allowed = candidates[depName]
				}
				from := vertexKey(qname, c)
				for depConfig := range allowed {
					edges[from] = append(edges[from], vertexKey(depName, depConfig))
				}
			}
		}
	}

	alive := make(map[string]bool)
	for qname, set := range candidates {
		for c := range set {
			alive[vertexKey(qname, c)] = true
		}
	}

	parents := p.parentsOf()

	reachableFromParent := func(parent, target string) bool {
		for c := range candidates[parent] {
			from := vertexKey(parent, c)
			if !alive[from] {
				continue
			}
			for _, to := range edges[from] {
				if to == target {
					return true
				}
			}
		}
		return false
	}

	pruneUnreachable := func() bool {
		changed := false
		for {
			progressed := false
			for depName, ps := range parents {
				for c := range candidates[depName] {
					key := vertexKey(depName, c)
					if !alive[key] {
						continue
					}
					for _, parent := range ps {
						if !reachableFromParent(parent, key) {
							alive[key] = false
							changed = true
							progressed = true
							break
						}
					}
				}
			}
			if !progressed {
				break
			}
		}
		return changed
	}

	aliveConfigs := func(qname string) []string {
		var out []string
		for c := range candidates[qname] {
			if alive[vertexKey(qname, c)] {
				out = append(out, c)
			}
		}
		sort.Strings(out)
		return out
	}

	maxIterations := len(alive) + len(p.nodes) + 10
	for iter := 0; ; iter++ {
		if iter > maxIterations {
			return nil, derrors.New(derrors.DependencyCycle, "configuration pruning did not converge")
		}

		pruneUnreachable()

		multi := ""
		for _, qname := range p.order {
			if qname == rootName && rootConfig != "" {
				continue
			}
			if len(aliveConfigs(qname)) > 1 {
				multi = qname
				break
			}
		}
		if multi == "" {
			break
		}

		remaining := aliveConfigs(multi)
		for _, c := range remaining[1:] {
			alive[vertexKey(multi, c)] = false
		}
	}

	result := make(map[string]string, len(p.nodes))
	for _, qname := range p.order {
		cs := aliveConfigs(qname)
		if len(cs) != 1 {
			return nil, derrors.Newf(derrors.NoValidConfiguration, "package %q has no valid configuration for the requested platform", qname)
		}
		result[qname] = cs[0]
	}

	if err := p.SetCachedConfigs(platform, rootConfig, allowNonLibrary, result); err != nil {
		logger := dlog.Get("project")
		logger.Warn().Err(err).Msg("failed to persist project build cache")
	}
	return result, nil
}
