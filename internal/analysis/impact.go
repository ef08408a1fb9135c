package analysis

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"libscout/internal/graph"
)

// ErrUnknownNode is returned when the queried node is not in the graph.
var ErrUnknownNode = errors.New("unknown node")

// ImpactReport lists the nodes that depend on a queried node.
type ImpactReport struct {
	Target             *graph.Node
	DirectlyAffected   []*graph.Node
	IndirectlyAffected []*graph.Node
}

// Analyzer performs impact analysis on the dependency graph.
type Analyzer struct {
	g *graph.Graph
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// Dependants returns the direct and transitive dependants of id.
//
// Libraries are followed over depends_on edges and versions over
// version_depends_on edges. An archive is affected through the version that
// contains it, so its direct dependants are that version and the versions
// depending on it.
func (a *Analyzer) Dependants(id string) (*ImpactReport, error) {
	target, ok := a.g.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	report := &ImpactReport{
		Target:             target,
		DirectlyAffected:   []*graph.Node{},
		IndirectlyAffected: []*graph.Node{},
	}

	var kind graph.EdgeKind
	var start []*graph.Node
	switch target.Kind {
	case graph.NodeLibrary:
		kind = graph.EdgeDependsOn
		start = []*graph.Node{target}
	case graph.NodeVersion:
		kind = graph.EdgeVersionDependsOn
		start = []*graph.Node{target}
	case graph.NodeJar:
		kind = graph.EdgeVersionDependsOn
		start = a.g.GetDependents(id, graph.EdgeContains)
		report.DirectlyAffected = append(report.DirectlyAffected, start...)
	default:
		return nil, fmt.Errorf("node %s has unknown kind %q", id, target.Kind)
	}

	seen := map[string]bool{id: true}
	for _, n := range start {
		seen[n.ID] = true
	}

	// 1. Direct dependants
	var frontier []*graph.Node
	for _, n := range start {
		for _, dep := range a.g.GetDependents(n.ID, kind) {
			if !seen[dep.ID] {
				seen[dep.ID] = true
				report.DirectlyAffected = append(report.DirectlyAffected, dep)
				frontier = append(frontier, dep)
			}
		}
	}

	// 2. Transitive dependants, breadth first
	for len(frontier) > 0 {
		var next []*graph.Node
		for _, n := range frontier {
			for _, dep := range a.g.GetDependents(n.ID, kind) {
				if !seen[dep.ID] {
					seen[dep.ID] = true
					report.IndirectlyAffected = append(report.IndirectlyAffected, dep)
					next = append(next, dep)
				}
			}
		}
		frontier = next
	}

	byID := func(a, b *graph.Node) int { return cmp.Compare(a.ID, b.ID) }
	slices.SortFunc(report.DirectlyAffected, byID)
	slices.SortFunc(report.IndirectlyAffected, byID)
	return report, nil
}
