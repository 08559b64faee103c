package wproject

import "github.com/waypack/waypack/pkg/dpackage"

// GetTopologicalPackageList yields each reachable package at most once
// (spec.md §4.4). Edges are walked in the sorted-name order established
// by reinit; when configs is non-nil, an edge is only followed if the
// referrer's chosen configuration actually enables that dependency
// (dpackage.Package.HasDependency), matching "edges are filtered by
// whether the dependency is actually enabled in the active
// configuration of the referrer". A nil configs walks every declared
// edge unconditionally.
func (p *Project) GetTopologicalPackageList(childrenFirst bool, root *dpackage.Package, configs map[string]string) []*dpackage.Package {
	visited := make(map[string]bool)
	var order []*dpackage.Package

	var visit func(pkg *dpackage.Package)
	visit = func(pkg *dpackage.Package) {
		qname := pkg.QualifiedName()
		if visited[qname] {
			return
		}
		visited[qname] = true

		if !childrenFirst {
			order = append(order, pkg)
		}

		if n, ok := p.nodes[qname]; ok {
			cfgName, hasCfg := "", false
			if configs != nil {
				cfgName, hasCfg = configs[qname]
			}
			for _, edge := range n.Deps {
				if edge.Pkg == nil {
					continue
				}
				if configs != nil && hasCfg && !pkg.HasDependency(p.Platform, cfgName, edge.Name) {
					continue
				}
				visit(edge.Pkg)
			}
		}

		if childrenFirst {
			order = append(order, pkg)
		}
	}

	visit(root)
	return order
}
