package component

import (
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"libscout/internal/cluster"
	"libscout/internal/corpus"
	"libscout/internal/fact"
	"libscout/internal/jarset"
	"libscout/internal/logging"
	"libscout/internal/metrics"
)

const stageBuild = "build"

// Builder assembles a Repository from merged clusters.
type Builder struct {
	logger        *slog.Logger
	progressEvery int
}

// NewBuilder creates a builder. logger may be nil.
func NewBuilder(logger *slog.Logger, progressEvery int) *Builder {
	return &Builder{logger: logging.OrDefault(logger), progressEvery: progressEvery}
}

// build holds the state of one Build call.
type build struct {
	*Builder
	cp          *corpus.Corpus
	cc          *cluster.Collection
	jarClusters [][]*cluster.Cluster
	assigned    []bool
	repo        *Repository
}

// Build runs the five passes: jar index, simple libraries, package libraries,
// version split and dependency inference. Inconsistencies are logged and
// skipped; Build always returns a repository.
func (b *Builder) Build(cc *cluster.Collection) *Repository {
	cp := cc.Corpus()
	st := &build{
		Builder:  b,
		cp:       cp,
		cc:       cc,
		assigned: make([]bool, cp.Len()),
		repo: &Repository{
			corpus:   cp,
			clusters: cc,
			byJar:    make(map[jarset.JarID]*Library, cp.Len()),
		},
	}

	// 1. Jar -> clusters index
	st.indexJars()
	// 2. Simple libraries
	st.simpleLibraries()
	// 3. Package libraries
	st.packageLibraries()
	// 4. Version split
	for _, l := range st.repo.libraries {
		st.splitVersions(l)
	}
	// 5. Dependencies
	st.inferDependencies()

	s := st.repo.Stats()
	metrics.Libraries.WithLabelValues(KindSimple.String()).Set(float64(s.Simple))
	metrics.Libraries.WithLabelValues(KindPackage.String()).Set(float64(s.Package))
	metrics.Libraries.WithLabelValues("phantom").Set(float64(s.Phantom))
	b.logger.Info("repository built",
		"simple", s.Simple, "package", s.Package, "phantom", s.Phantom,
		"versions", s.Versions, "edges", s.Edges)
	return st.repo
}

func (st *build) indexJars() {
	st.jarClusters = make([][]*cluster.Cluster, st.cp.Len())
	for _, c := range st.cc.Clusters() {
		for j := range c.Jars().All() {
			st.jarClusters[j] = append(st.jarClusters[j], c)
		}
	}
}

func (st *build) addLibrary(kind Kind, core *cluster.Cluster, secondary []*cluster.Cluster, jars []jarset.JarID) *Library {
	l := newLibrary(len(st.repo.libraries), kind, core, secondary, st.cp.Interner().Of(jars...))
	var names []string
	if core != nil {
		names = core.Names()
	} else {
		for _, n := range l.fqns {
			names = append(names, st.cp.Trie().Fqn(n))
		}
	}
	l.name = commonPrefix(names)
	if l.name == "" && len(jars) > 0 {
		l.name = filepath.Base(st.cp.Jar(jars[0]).Name)
	}
	for _, j := range jars {
		st.assigned[j] = true
		st.repo.byJar[j] = l
	}
	st.repo.libraries = append(st.repo.libraries, l)
	return l
}

func (st *build) simpleLibraries() {
	ordered := st.cc.BySizeDesc()
	progress := metrics.NewProgress(st.logger, "libraries", st.progressEvery, len(ordered))
	for _, c := range ordered {
		progress.Tick()
		secondary := st.secondaryClusters(c)
		allowed := make(map[*cluster.Cluster]struct{}, len(secondary)+1)
		allowed[c] = struct{}{}
		for _, s := range secondary {
			allowed[s] = struct{}{}
		}

		var jars []jarset.JarID
		for j := range c.Jars().All() {
			if st.assigned[j] {
				continue
			}
			if coveredBy(st.jarClusters[j], allowed) {
				jars = append(jars, j)
			}
		}
		l := st.addLibrary(KindSimple, c, secondary, jars)
		if l.IsPhantom() {
			st.logger.Info("phantom library", "library", l.id, "name", l.name, "classes", c.Size())
		}
	}
	progress.Done()
}

func coveredBy(clusters []*cluster.Cluster, allowed map[*cluster.Cluster]struct{}) bool {
	for _, c := range clusters {
		if _, ok := allowed[c]; !ok {
			return false
		}
	}
	return true
}

// secondaryClusters finds the clusters whose every class occurs in every
// archive of some version of c.
func (st *build) secondaryClusters(c *cluster.Cluster) []*cluster.Cluster {
	found := make(map[*cluster.Cluster]struct{})
	for _, v := range c.Versions() {
		always := st.alwaysOccurring(v.Jars)
		present := make(map[fact.NodeID]struct{}, len(always))
		for fv := range always {
			present[fv.Node] = struct{}{}
		}
		for n := range present {
			if c.Contains(n) {
				continue
			}
			owner, ok := st.cc.ClusterOf(n)
			if !ok {
				metrics.Anomaly(st.logger, stageBuild, "class has no cluster", "fqn", st.cp.Trie().Fqn(n))
				continue
			}
			if _, done := found[owner]; done {
				continue
			}
			if containsAll(present, owner.Fqns()) {
				found[owner] = struct{}{}
			}
		}
	}
	out := make([]*cluster.Cluster, 0, len(found))
	for s := range found {
		out = append(out, s)
	}
	slices.SortFunc(out, byClusterID)
	return out
}

func containsAll(set map[fact.NodeID]struct{}, nodes []fact.NodeID) bool {
	for _, n := range nodes {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}

// alwaysOccurring returns the FQN versions present in every archive of jars.
func (st *build) alwaysOccurring(jars *jarset.JarSet) map[fact.FqnVersion]struct{} {
	counts := make(map[fact.FqnVersion]int)
	for j := range jars.All() {
		for _, fv := range st.cp.Jar(j).Facts {
			counts[fv]++
		}
	}
	out := make(map[fact.FqnVersion]struct{}, len(counts))
	for fv, n := range counts {
		switch {
		case n > jars.Len():
			metrics.Anomaly(st.logger, stageBuild, "class version counted more often than archives",
				"fqn", st.cp.Trie().Fqn(fv.Node), "count", n, "archives", jars.Len())
		case n == jars.Len():
			out[fv] = struct{}{}
		}
	}
	return out
}

func clusterSetKey(clusters []*cluster.Cluster) string {
	var b strings.Builder
	for _, c := range clusters {
		b.WriteString(strconv.Itoa(c.ID()))
		b.WriteByte(',')
	}
	return b.String()
}

func (st *build) packageLibraries() {
	type group struct {
		clusters []*cluster.Cluster
		jars     []jarset.JarID
	}
	groups := make(map[string]*group)
	var order []*group
	for _, jar := range st.cp.Jars() {
		if st.assigned[jar.ID] {
			continue
		}
		set := st.jarClusters[jar.ID]
		key := clusterSetKey(set)
		g, ok := groups[key]
		if !ok {
			g = &group{clusters: set}
			groups[key] = g
			order = append(order, g)
		}
		g.jars = append(g.jars, jar.ID)
	}
	for _, g := range order {
		st.addLibrary(KindPackage, nil, g.clusters, g.jars)
	}
}

// splitVersions partitions the library's archives by the exact class versions
// they carry for the library's classes.
func (st *build) splitVersions(l *Library) {
	type group struct {
		fqns []fact.FqnVersion
		jars []jarset.JarID
	}
	groups := make(map[string]*group)
	var order []*group
	for j := range l.jars.All() {
		var sig []fact.FqnVersion
		for _, fv := range st.cp.Jar(j).Facts {
			if l.Contains(fv.Node) {
				sig = append(sig, fv)
			}
		}
		key := fact.VersionKey(sig)
		g, ok := groups[key]
		if !ok {
			g = &group{fqns: sig}
			groups[key] = g
			order = append(order, g)
		}
		g.jars = append(g.jars, j)
	}

	for i, g := range order {
		lv := &LibraryVersion{
			library: l,
			index:   i,
			fqns:    g.fqns,
			jars:    st.cp.Interner().Of(g.jars...),
		}
		for _, c := range l.clusters {
			if !c.Jars().Contains(g.jars[0]) {
				continue
			}
			cv, ok := c.VersionOf(g.jars[0])
			if !ok || !lv.jars.IsSubsetOf(cv.Jars) {
				metrics.Anomaly(st.logger, stageBuild, "no cluster version matches library version",
					"library", l.id, "version", i, "cluster", c.ID())
				continue
			}
			lv.clusterVersions = append(lv.clusterVersions, cv)
		}
		l.versions = append(l.versions, lv)
	}
}

// covers reports whether a dependant version spanning the clusters in have
// includes library l: every cluster of a package library, the core of a
// phantom, or the cluster set of one archive of any other library.
func covers(l *Library, have map[*cluster.Cluster]struct{}, jarSets [][]*cluster.Cluster) bool {
	switch {
	case l.kind == KindPackage:
		return len(l.clusters) > 0 && coveredBy(l.clusters, have)
	case l.IsPhantom():
		_, ok := have[l.core]
		return ok
	}
	for _, set := range jarSets {
		if coveredBy(set, have) {
			return true
		}
	}
	return false
}

func (st *build) inferDependencies() {
	// Libraries reachable from each cluster, and the distinct cluster sets of
	// every simple library's archives.
	byCluster := make(map[*cluster.Cluster][]*Library)
	jarSets := make(map[*Library][][]*cluster.Cluster)
	for _, l := range st.repo.libraries {
		for _, c := range l.clusters {
			byCluster[c] = append(byCluster[c], l)
		}
		seen := make(map[string]struct{})
		for j := range l.jars.All() {
			set := st.jarClusters[j]
			key := clusterSetKey(set)
			if _, ok := seen[key]; ok || len(set) == 0 {
				continue
			}
			seen[key] = struct{}{}
			jarSets[l] = append(jarSets[l], set)
		}
	}

	progress := metrics.NewProgress(st.logger, "dependencies", st.progressEvery, len(st.repo.libraries))
	for _, d := range st.repo.libraries {
		progress.Tick()
		deps := make(map[*Library]struct{})
		for _, dv := range d.versions {
			have := make(map[*cluster.Cluster]struct{})
			for j := range dv.jars.All() {
				for _, c := range st.jarClusters[j] {
					have[c] = struct{}{}
				}
			}
			checked := make(map[*Library]struct{})
			var targets []*Library
			for c := range have {
				for _, l := range byCluster[c] {
					if l == d {
						continue
					}
					if _, ok := checked[l]; ok {
						continue
					}
					checked[l] = struct{}{}
					if covers(l, have, jarSets[l]) {
						targets = append(targets, l)
					}
				}
			}
			if len(targets) == 0 {
				continue
			}
			slices.SortFunc(targets, func(a, b *Library) int { return a.id - b.id })
			always := st.alwaysOccurring(dv.jars)
			for _, l := range targets {
				deps[l] = struct{}{}
				st.linkVersions(dv, l, always)
			}
		}
		for l := range deps {
			d.deps = append(d.deps, l)
		}
		slices.SortFunc(d.deps, func(a, b *Library) int { return a.id - b.id })
	}
	progress.Done()
}

// linkVersions adds an edge from dv to every version of l whose signature
// occurs in all of dv's archives.
func (st *build) linkVersions(dv *LibraryVersion, l *Library, always map[fact.FqnVersion]struct{}) {
	matched := false
	for _, lv := range l.versions {
		ok := true
		for _, fv := range lv.fqns {
			if _, in := always[fv]; !in {
				ok = false
				break
			}
		}
		if ok {
			dv.deps = append(dv.deps, lv)
			matched = true
		}
	}
	if !matched && !l.IsPhantom() {
		st.logger.Warn("dependency has no matching version",
			"library", dv.library.id, "version", dv.index, "dependency", l.id, "name", l.name)
	}
}
