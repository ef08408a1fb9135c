package fact

import (
	"iter"
	"strings"

	"libscout/internal/jarset"
)

// NodeID addresses a node in the trie arena.
type NodeID int32

// Root is the id of the unnamed root node.
const Root NodeID = 0

// noParent marks the root's parent link.
const noParent NodeID = -1

// VersionMap records, for one FQN, which archives carry which fingerprint.
// The aggregate jar set is the union of every per-fingerprint set.
type VersionMap struct {
	jars  *jarset.JarSet
	byFP  map[Fingerprint]*jarset.JarSet
	order []Fingerprint
}

// Jars returns the aggregate jar set.
func (m *VersionMap) Jars() *jarset.JarSet { return m.jars }

// JarsOf returns the archives carrying fingerprint fp, or nil.
func (m *VersionMap) JarsOf(fp Fingerprint) *jarset.JarSet { return m.byFP[fp] }

// Fingerprints returns the fingerprints in first-seen order.
func (m *VersionMap) Fingerprints() []Fingerprint { return m.order }

// Len returns the number of distinct fingerprints.
func (m *VersionMap) Len() int { return len(m.order) }

// IsEmpty reports whether no archive carries this FQN.
func (m *VersionMap) IsEmpty() bool { return len(m.order) == 0 }

func (m *VersionMap) add(in *jarset.Interner, jar jarset.JarID, fp Fingerprint) {
	if m.byFP == nil {
		m.byFP = make(map[Fingerprint]*jarset.JarSet, 1)
	}
	cur, ok := m.byFP[fp]
	if !ok {
		cur = in.Empty()
		m.order = append(m.order, fp)
	}
	m.byFP[fp] = in.Add(cur, jar)
	m.jars = in.Add(m.jars, jar)
}

type node struct {
	name     string
	parent   NodeID
	children []NodeID
	index    map[string]NodeID
	versions VersionMap
}

// Trie is the corpus-wide prefix tree over FQN fragments. Nodes live in one
// arena and refer to each other by index.
type Trie struct {
	interner *jarset.Interner
	nodes    []node
}

// NewTrie returns a trie holding only the root. Every jar set it creates comes
// from in.
func NewTrie(in *jarset.Interner) *Trie {
	t := &Trie{interner: in}
	t.nodes = append(t.nodes, node{parent: noParent, versions: VersionMap{jars: in.Empty()}})
	return t
}

// Interner returns the interner backing this trie.
func (t *Trie) Interner() *jarset.Interner { return t.interner }

// Len returns the number of nodes, root included.
func (t *Trie) Len() int { return len(t.nodes) }

// Child returns the child of parent named fragment, creating it on demand.
func (t *Trie) Child(parent NodeID, fragment string) NodeID {
	p := &t.nodes[parent]
	if id, ok := p.index[fragment]; ok {
		return id
	}
	id := NodeID(len(t.nodes))
	if p.index == nil {
		p.index = make(map[string]NodeID)
	}
	p.index[fragment] = id
	p.children = append(p.children, id)
	// p may dangle after the append below.
	t.nodes = append(t.nodes, node{
		name:     fragment,
		parent:   parent,
		versions: VersionMap{jars: t.interner.Empty()},
	})
	return id
}

// Insert walks the dotted fqn from the root, creating missing fragments, and
// returns the node for the last fragment. An empty fqn yields Root.
func (t *Trie) Insert(fqn string) NodeID {
	cur := Root
	for _, frag := range strings.Split(fqn, ".") {
		if frag == "" {
			continue
		}
		cur = t.Child(cur, frag)
	}
	return cur
}

// Lookup finds the node for fqn without creating anything.
func (t *Trie) Lookup(fqn string) (NodeID, bool) {
	cur := Root
	for _, frag := range strings.Split(fqn, ".") {
		if frag == "" {
			continue
		}
		next, ok := t.nodes[cur].index[frag]
		if !ok {
			return 0, false
		}
		cur = next
	}
	return cur, cur != Root
}

// Name returns the fragment of n.
func (t *Trie) Name(n NodeID) string { return t.nodes[n].name }

// Parent returns the parent of n, and false for the root.
func (t *Trie) Parent(n NodeID) (NodeID, bool) {
	p := t.nodes[n].parent
	return p, p != noParent
}

// Children returns the children of n in creation order. The slice must not be
// modified.
func (t *Trie) Children(n NodeID) []NodeID { return t.nodes[n].children }

// Versions returns the version map of n.
func (t *Trie) Versions(n NodeID) *VersionMap { return &t.nodes[n].versions }

// AddJar records that jar carries the FQN of n with fingerprint fp.
func (t *Trie) AddJar(n NodeID, jar jarset.JarID, fp Fingerprint) {
	t.nodes[n].versions.add(t.interner, jar, fp)
}

// Fqn rebuilds the dotted name of n.
func (t *Trie) Fqn(n NodeID) string {
	var parts []string
	for cur := n; cur != Root && cur != noParent; cur = t.nodes[cur].parent {
		parts = append(parts, t.nodes[cur].name)
	}
	for i, k := 0, len(parts)-1; i < k; i, k = i+1, k-1 {
		parts[i], parts[k] = parts[k], parts[i]
	}
	return strings.Join(parts, ".")
}

// PostOrder yields every node after all of its descendants, ending with the
// root. The sequence is lazy and can be ranged over any number of times; the
// trie must not grow while a traversal is in progress.
func (t *Trie) PostOrder() iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		type frame struct {
			id   NodeID
			next int
		}
		stack := []frame{{id: Root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := t.nodes[top.id].children
			if top.next < len(children) {
				child := children[top.next]
				top.next++
				stack = append(stack, frame{id: child})
				continue
			}
			id := top.id
			stack = stack[:len(stack)-1]
			if !yield(id) {
				return
			}
		}
	}
}
