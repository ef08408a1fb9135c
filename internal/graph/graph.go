package graph

import (
	"cmp"
	"fmt"
	"slices"
)

// Graph manages nodes and their relationships.
type Graph struct {
	Nodes map[string]*Node
	Edges []Edge

	// Edge positions by endpoint, rebuilt by RebuildIndices.
	out map[string][]int
	in  map[string][]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Edges: []Edge{},
		out:   make(map[string][]int),
		in:    make(map[string][]int),
	}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(n *Node) {
	if n == nil {
		return
	}
	g.Nodes[n.ID] = n
}

// AddEdge appends an edge. Both endpoints must already be nodes.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.Nodes[e.From]; !ok {
		return fmt.Errorf("edge %s: unknown source %q", e.Kind, e.From)
	}
	if _, ok := g.Nodes[e.To]; !ok {
		return fmt.Errorf("edge %s: unknown target %q", e.Kind, e.To)
	}
	g.Edges = append(g.Edges, e)
	g.out[e.From] = append(g.out[e.From], len(g.Edges)-1)
	g.in[e.To] = append(g.in[e.To], len(g.Edges)-1)
	return nil
}

// RebuildIndices recomputes the endpoint indexes after Edges was assigned
// directly, as a store does when loading.
func (g *Graph) RebuildIndices() {
	g.out = make(map[string][]int, len(g.Nodes))
	g.in = make(map[string][]int, len(g.Nodes))
	for i, e := range g.Edges {
		g.out[e.From] = append(g.out[e.From], i)
		g.in[e.To] = append(g.in[e.To], i)
	}
}

// GetDependencies returns the targets of edges leaving id. With kinds given,
// only edges of those kinds are followed.
func (g *Graph) GetDependencies(id string, kinds ...EdgeKind) []*Node {
	return g.follow(g.out[id], kinds, func(e Edge) string { return e.To })
}

// GetDependents returns the sources of edges entering id. With kinds given,
// only edges of those kinds are followed.
func (g *Graph) GetDependents(id string, kinds ...EdgeKind) []*Node {
	return g.follow(g.in[id], kinds, func(e Edge) string { return e.From })
}

func (g *Graph) follow(edges []int, kinds []EdgeKind, end func(Edge) string) []*Node {
	var nodes []*Node
	for _, i := range edges {
		e := g.Edges[i]
		if len(kinds) > 0 && !slices.Contains(kinds, e.Kind) {
			continue
		}
		if node, ok := g.Nodes[end(e)]; ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// NodesOf returns the nodes of kind k sorted by ID.
func (g *Graph) NodesOf(k NodeKind) []*Node {
	var nodes []*Node
	for _, n := range g.Nodes {
		if n.Kind == k {
			nodes = append(nodes, n)
		}
	}
	slices.SortFunc(nodes, func(a, b *Node) int { return cmp.Compare(a.ID, b.ID) })
	return nodes
}

// Snapshot is the flat, ordered form of a graph used for export.
type Snapshot struct {
	Nodes []Node `json:"nodes" yaml:"nodes" cbor:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges" cbor:"edges"`
}

// Snapshot returns nodes sorted by ID and edges sorted by (from, kind, to).
func (g *Graph) Snapshot() Snapshot {
	s := Snapshot{
		Nodes: make([]Node, 0, len(g.Nodes)),
		Edges: slices.Clone(g.Edges),
	}
	for _, n := range g.Nodes {
		s.Nodes = append(s.Nodes, *n)
	}
	slices.SortFunc(s.Nodes, func(a, b Node) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Edges, compareEdges)
	return s
}

// FromSnapshot rebuilds a graph, validating node and edge kinds.
func FromSnapshot(s Snapshot) (*Graph, error) {
	g := NewGraph()
	for i := range s.Nodes {
		n := s.Nodes[i]
		if !n.Kind.Valid() {
			return nil, fmt.Errorf("node %q: unknown kind %q", n.ID, n.Kind)
		}
		g.AddNode(&n)
	}
	for _, e := range s.Edges {
		if !e.Kind.Valid() {
			return nil, fmt.Errorf("edge %s -> %s: unknown kind %q", e.From, e.To, e.Kind)
		}
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func compareEdges(a, b Edge) int {
	return cmp.Or(
		cmp.Compare(a.From, b.From),
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.To, b.To),
	)
}
