// Package cluster identifies groups of classes that always travel together
// across the archives of a corpus, and grows them by version-driven merging.
package cluster

import (
	"slices"

	"libscout/internal/corpus"
	"libscout/internal/fact"
	"libscout/internal/jarset"
)

// Version is one observed combination of fingerprints of a cluster's classes,
// together with the archives exhibiting exactly that combination.
type Version struct {
	Fqns []fact.FqnVersion
	Jars *jarset.JarSet
}

// Cluster is a set of classes (its core plus everything merging absorbed) and
// the archives they occur in.
type Cluster struct {
	id       int
	core     []fact.NodeID
	absorbed []fact.NodeID
	fqns     []fact.NodeID
	jars     *jarset.JarSet
	versions []*Version
	corpus   *corpus.Corpus
}

func newCluster(cp *corpus.Corpus, node fact.NodeID) *Cluster {
	return &Cluster{
		id:     -1,
		core:   []fact.NodeID{node},
		jars:   cp.Trie().Versions(node).Jars(),
		corpus: cp,
	}
}

// ID is the index of the cluster in its collection.
func (c *Cluster) ID() int { return c.id }

// Core returns the classes the cluster was identified with, sorted.
func (c *Cluster) Core() []fact.NodeID { return c.core }

// Absorbed returns the classes added by merging, sorted.
func (c *Cluster) Absorbed() []fact.NodeID { return c.absorbed }

// Fqns returns every member class, sorted. The slice must not be modified.
func (c *Cluster) Fqns() []fact.NodeID {
	if c.fqns == nil {
		c.fqns = make([]fact.NodeID, 0, len(c.core)+len(c.absorbed))
		c.fqns = append(c.fqns, c.core...)
		c.fqns = append(c.fqns, c.absorbed...)
		slices.Sort(c.fqns)
	}
	return c.fqns
}

// Contains reports whether node is a member class.
func (c *Cluster) Contains(node fact.NodeID) bool {
	_, ok := slices.BinarySearch(c.Fqns(), node)
	return ok
}

// Size returns the number of member classes.
func (c *Cluster) Size() int { return len(c.core) + len(c.absorbed) }

// Jars returns the archives containing any member class.
func (c *Cluster) Jars() *jarset.JarSet { return c.jars }

// Names returns the dotted names of the member classes, sorted by node.
func (c *Cluster) Names() []string {
	out := make([]string, 0, c.Size())
	for _, n := range c.Fqns() {
		out = append(out, c.corpus.Trie().Fqn(n))
	}
	return out
}

// Versions partitions the cluster's archives by the fingerprints they carry
// for the member classes. Versions are ordered by their smallest archive id.
func (c *Cluster) Versions() []*Version {
	if c.versions == nil {
		c.versions = deriveVersions(c.corpus, c.Fqns(), c.jars)
	}
	return c.versions
}

// VersionOf returns the version whose archives include jar.
func (c *Cluster) VersionOf(jar jarset.JarID) (*Version, bool) {
	for _, v := range c.Versions() {
		if v.Jars.Contains(jar) {
			return v, true
		}
	}
	return nil, false
}

func (c *Cluster) addCore(nodes []fact.NodeID, jars *jarset.JarSet) {
	c.core = append(c.core, nodes...)
	slices.Sort(c.core)
	c.jars = c.corpus.Interner().Merge(c.jars, jars)
	c.invalidate()
}

func (c *Cluster) addAbsorbed(nodes []fact.NodeID, jars *jarset.JarSet) {
	c.absorbed = append(c.absorbed, nodes...)
	slices.Sort(c.absorbed)
	c.jars = c.corpus.Interner().Merge(c.jars, jars)
	c.invalidate()
}

func (c *Cluster) invalidate() {
	c.fqns = nil
	c.versions = nil
}

// deriveVersions groups jars by the FqnVersions of nodes they carry. Each node's
// version map is walked once, so the per-jar lists come out sorted by node.
func deriveVersions(cp *corpus.Corpus, nodes []fact.NodeID, jars *jarset.JarSet) []*Version {
	perJar := make(map[jarset.JarID][]fact.FqnVersion, jars.Len())
	for _, n := range nodes {
		vm := cp.Trie().Versions(n)
		for _, fp := range vm.Fingerprints() {
			for j := range vm.JarsOf(fp).All() {
				if jars.Contains(j) {
					perJar[j] = append(perJar[j], fact.FqnVersion{Node: n, Fingerprint: fp})
				}
			}
		}
	}

	type group struct {
		fqns []fact.FqnVersion
		jars []jarset.JarID
	}
	groups := make(map[string]*group)
	var order []*group
	for j := range jars.All() {
		sig := perJar[j]
		key := fact.VersionKey(sig)
		g, ok := groups[key]
		if !ok {
			g = &group{fqns: sig}
			groups[key] = g
			order = append(order, g)
		}
		g.jars = append(g.jars, j)
	}

	out := make([]*Version, len(order))
	for i, g := range order {
		out[i] = &Version{Fqns: g.fqns, Jars: cp.Interner().Of(g.jars...)}
	}
	return out
}
