package cluster

import (
	"log/slog"
	"slices"

	"libscout/internal/fact"
	"libscout/internal/logging"
	"libscout/internal/metrics"
)

// MergeStats summarizes one merger run.
type MergeStats struct {
	Passes    int
	Absorbed  int
	Remaining int
}

// Merger grows clusters by absorbing every class that is present in all
// archives of a version of the cluster and nowhere outside the cluster's
// archives.
type Merger struct {
	logger        *slog.Logger
	progressEvery int
}

// NewMerger creates a merger. logger may be nil.
func NewMerger(logger *slog.Logger, progressEvery int) *Merger {
	return &Merger{logger: logging.OrDefault(logger), progressEvery: progressEvery}
}

// Merge runs the merger over cc in place. Clusters are visited largest archive
// set first; each is expanded until a pass absorbs nothing.
func (m *Merger) Merge(cc *Collection) MergeStats {
	var stats MergeStats
	queue := cc.BySizeDesc()
	progress := metrics.NewProgress(m.logger, "merge", m.progressEvery, len(queue))

	for _, c := range queue {
		progress.Tick()
		if cc.Cluster(c.id) != c {
			continue
		}
		for {
			stats.Passes++
			metrics.MergePasses.Inc()
			n := m.pass(cc, c)
			if n == 0 {
				break
			}
			stats.Absorbed += n
		}
	}
	progress.Done()

	stats.Remaining = cc.Len()
	m.logger.Info("clusters merged",
		"absorbed", stats.Absorbed, "remaining", stats.Remaining, "passes", stats.Passes)
	return stats
}

// pass runs one absorption round for c and returns the number of clusters it
// consumed.
func (m *Merger) pass(cc *Collection, c *Cluster) int {
	cp := cc.corpus
	trie := cp.Trie()

	// 1. Classify every foreign class per version.
	potentials := make(map[fact.NodeID]struct{})
	partials := make(map[fact.NodeID]struct{})
	for _, v := range c.Versions() {
		size := v.Jars.Len()
		counts := make(map[fact.NodeID]int)
		for j := range v.Jars.All() {
			for _, fv := range cp.Jar(j).Facts {
				counts[fv.Node]++
			}
		}
		for n, count := range counts {
			if c.Contains(n) {
				continue
			}
			switch {
			case count > size:
				metrics.Anomaly(m.logger, "merge", "class counted more often than version archives",
					"fqn", trie.Fqn(n), "count", count, "archives", size)
			case count < size:
				partials[n] = struct{}{}
			case trie.Versions(n).Jars().IsSubsetOf(c.jars):
				potentials[n] = struct{}{}
			}
		}
	}

	// 2. Group the absorbable classes by owner.
	owners := make(map[*Cluster]struct{})
	for n := range potentials {
		if _, partial := partials[n]; partial {
			continue
		}
		owner, ok := cc.ClusterOf(n)
		if !ok {
			metrics.Anomaly(m.logger, "merge", "absorbable class has no cluster", "fqn", trie.Fqn(n))
			delete(potentials, n)
			continue
		}
		owners[owner] = struct{}{}
	}

	// 3. Consume owners whose every class qualifies.
	ordered := make([]*Cluster, 0, len(owners))
	for o := range owners {
		ordered = append(ordered, o)
	}
	slices.SortFunc(ordered, func(a, b *Cluster) int { return a.id - b.id })

	absorbed := 0
	for _, o := range ordered {
		if !allAbsorbable(o, potentials, partials) {
			m.logger.Debug("cluster only partially absorbable",
				"into", c.id, "cluster", o.id, "fqn", trie.Fqn(o.core[0]))
			continue
		}
		cc.absorb(c, o)
		metrics.ClustersAbsorbed.Inc()
		absorbed++
	}
	return absorbed
}

func allAbsorbable(o *Cluster, potentials, partials map[fact.NodeID]struct{}) bool {
	for _, n := range o.Fqns() {
		if _, ok := potentials[n]; !ok {
			return false
		}
		if _, ok := partials[n]; ok {
			return false
		}
	}
	return true
}
