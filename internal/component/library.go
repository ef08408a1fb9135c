// Package component turns merged clusters into libraries, library versions
// and the dependency edges between them.
package component

import (
	"fmt"
	"slices"
	"strings"

	"libscout/internal/cluster"
	"libscout/internal/fact"
	"libscout/internal/jarset"
)

// Kind tells how a library was formed.
type Kind int

const (
	// KindSimple libraries grow around one core cluster.
	KindSimple Kind = iota
	// KindPackage libraries have no core; they group archives sharing the
	// exact same cluster set.
	KindPackage
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindPackage:
		return "package"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Library is an identified component.
type Library struct {
	id        int
	kind      Kind
	core      *cluster.Cluster
	secondary []*cluster.Cluster
	clusters  []*cluster.Cluster
	jars      *jarset.JarSet
	versions  []*LibraryVersion
	deps      []*Library
	fqns      []fact.NodeID
	name      string
}

func newLibrary(id int, kind Kind, core *cluster.Cluster, secondary []*cluster.Cluster, jars *jarset.JarSet) *Library {
	l := &Library{id: id, kind: kind, core: core, secondary: secondary, jars: jars}
	if core != nil {
		l.clusters = append(l.clusters, core)
	}
	l.clusters = append(l.clusters, secondary...)
	slices.SortFunc(l.clusters, byClusterID)
	for _, c := range l.clusters {
		l.fqns = append(l.fqns, c.Fqns()...)
	}
	slices.Sort(l.fqns)
	return l
}

func byClusterID(a, b *cluster.Cluster) int { return a.ID() - b.ID() }

// ID is the index of the library in its repository.
func (l *Library) ID() int { return l.id }

// Kind reports how the library was formed.
func (l *Library) Kind() Kind { return l.kind }

// Core returns the core cluster, nil for package libraries.
func (l *Library) Core() *cluster.Cluster { return l.core }

// Secondary returns the non-core clusters, sorted by id.
func (l *Library) Secondary() []*cluster.Cluster { return l.secondary }

// Clusters returns core and secondary clusters, sorted by id.
func (l *Library) Clusters() []*cluster.Cluster { return l.clusters }

// Jars returns the archives assigned to the library.
func (l *Library) Jars() *jarset.JarSet { return l.jars }

// Versions returns the versions ordered by their smallest archive id.
func (l *Library) Versions() []*LibraryVersion { return l.versions }

// Dependencies returns the libraries this one depends on, sorted by id.
func (l *Library) Dependencies() []*Library { return l.deps }

// Fqns returns every class of the library's clusters, sorted.
func (l *Library) Fqns() []fact.NodeID { return l.fqns }

// Contains reports whether node belongs to one of the library's clusters.
func (l *Library) Contains(node fact.NodeID) bool {
	_, ok := slices.BinarySearch(l.fqns, node)
	return ok
}

// IsPhantom reports a library with a core cluster but no archive matching it.
func (l *Library) IsPhantom() bool {
	return l.core != nil && l.jars.IsEmpty()
}

// Name is the longest common package prefix of the library's classes, or the
// first class name when they share none.
func (l *Library) Name() string { return l.name }

func commonPrefix(names []string) string {
	if len(names) == 0 {
		return ""
	}
	prefix := strings.Split(names[0], ".")
	prefix = prefix[:len(prefix)-1]
	for _, n := range names[1:] {
		parts := strings.Split(n, ".")
		k := 0
		for k < len(prefix) && k < len(parts)-1 && prefix[k] == parts[k] {
			k++
		}
		prefix = prefix[:k]
	}
	if len(prefix) == 0 {
		return names[0]
	}
	return strings.Join(prefix, ".")
}

// LibraryVersion is one exact class-version signature of a library and the
// archives carrying it.
type LibraryVersion struct {
	library         *Library
	index           int
	fqns            []fact.FqnVersion
	jars            *jarset.JarSet
	clusterVersions []*cluster.Version
	deps            []*LibraryVersion
}

// Library returns the owning library.
func (v *LibraryVersion) Library() *Library { return v.library }

// Index is the position of the version within its library.
func (v *LibraryVersion) Index() int { return v.index }

// Label is "<library>.<index>".
func (v *LibraryVersion) Label() string {
	return fmt.Sprintf("%d.%d", v.library.id, v.index)
}

// Fqns returns the signature, sorted by node.
func (v *LibraryVersion) Fqns() []fact.FqnVersion { return v.fqns }

// Jars returns the member archives.
func (v *LibraryVersion) Jars() *jarset.JarSet { return v.jars }

// ClusterVersions returns the cluster versions consistent with this version,
// in library cluster order.
func (v *LibraryVersion) ClusterVersions() []*cluster.Version { return v.clusterVersions }

// Dependencies returns the versions of other libraries this version bundles.
func (v *LibraryVersion) Dependencies() []*LibraryVersion { return v.deps }
