package graph

// NodeKind is the closed set of vertex kinds in the output graph.
type NodeKind string

const (
	NodeLibrary NodeKind = "library"
	NodeVersion NodeKind = "version"
	NodeJar     NodeKind = "jar"
)

// EdgeKind is the closed set of relationship kinds in the output graph.
type EdgeKind string

const (
	// EdgeDependsOn links a library to a library it bundles classes of.
	EdgeDependsOn EdgeKind = "depends_on"
	// EdgeVersionDependsOn links a library version to a dependency version.
	EdgeVersionDependsOn EdgeKind = "version_depends_on"
	// EdgeVersionOf links a version to its library.
	EdgeVersionOf EdgeKind = "version_of"
	// EdgeContains links a version to each archive in it.
	EdgeContains EdgeKind = "contains"
)

// Valid reports whether k is one of the known node kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case NodeLibrary, NodeVersion, NodeJar:
		return true
	}
	return false
}

// Valid reports whether k is one of the known edge kinds.
func (k EdgeKind) Valid() bool {
	switch k {
	case EdgeDependsOn, EdgeVersionDependsOn, EdgeVersionOf, EdgeContains:
		return true
	}
	return false
}

// Node is a vertex of the output graph.
type Node struct {
	ID    string            `json:"id" yaml:"id" cbor:"id"`
	Kind  NodeKind          `json:"kind" yaml:"kind" cbor:"kind"`
	Name  string            `json:"name" yaml:"name" cbor:"name"`
	Attrs map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty" cbor:"attrs,omitempty"`
}

// Edge represents a directed relationship between two nodes.
type Edge struct {
	From string   `json:"from" yaml:"from" cbor:"from"`
	To   string   `json:"to" yaml:"to" cbor:"to"`
	Kind EdgeKind `json:"kind" yaml:"kind" cbor:"kind"`
}
