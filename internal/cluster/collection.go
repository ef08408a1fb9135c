package cluster

import (
	"cmp"
	"slices"

	"libscout/internal/corpus"
	"libscout/internal/fact"
)

// Collection is the set of clusters of one corpus. Each class belongs to at
// most one cluster.
type Collection struct {
	corpus   *corpus.Corpus
	clusters []*Cluster
	owner    map[fact.NodeID]*Cluster
	live     int
}

func newCollection(cp *corpus.Corpus, clusters []*Cluster) *Collection {
	cc := &Collection{
		corpus:   cp,
		clusters: clusters,
		owner:    make(map[fact.NodeID]*Cluster),
		live:     len(clusters),
	}
	for i, c := range clusters {
		c.id = i
		for _, n := range c.Fqns() {
			cc.owner[n] = c
		}
	}
	return cc
}

// Corpus returns the corpus the clusters were identified over.
func (cc *Collection) Corpus() *corpus.Corpus { return cc.corpus }

// Len returns the number of live clusters.
func (cc *Collection) Len() int { return cc.live }

// Cluster returns the cluster with the given id, or nil when it was absorbed.
func (cc *Collection) Cluster(id int) *Cluster {
	if id < 0 || id >= len(cc.clusters) {
		return nil
	}
	return cc.clusters[id]
}

// ClusterOf returns the cluster owning node.
func (cc *Collection) ClusterOf(node fact.NodeID) (*Cluster, bool) {
	c, ok := cc.owner[node]
	return c, ok
}

// Clusters returns the live clusters in id order.
func (cc *Collection) Clusters() []*Cluster {
	out := make([]*Cluster, 0, cc.live)
	for _, c := range cc.clusters {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// BySizeDesc returns the live clusters ordered by descending jar count, ties
// by ascending id.
func (cc *Collection) BySizeDesc() []*Cluster {
	out := cc.Clusters()
	slices.SortStableFunc(out, func(a, b *Cluster) int {
		if c := cmp.Compare(b.jars.Len(), a.jars.Len()); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	return out
}

// absorb moves every class of victim into into and drops victim.
func (cc *Collection) absorb(into, victim *Cluster) {
	members := victim.Fqns()
	into.addAbsorbed(members, victim.jars)
	for _, n := range members {
		cc.owner[n] = into
	}
	cc.clusters[victim.id] = nil
	cc.live--
}
