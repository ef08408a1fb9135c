package graph

import (
	"strconv"

	"libscout/internal/component"
	"libscout/internal/corpus"
)

// LibraryID is the node ID of a library.
func LibraryID(l *component.Library) string {
	return "lib:" + strconv.Itoa(l.ID())
}

// VersionID is the node ID of a library version.
func VersionID(v *component.LibraryVersion) string {
	return "ver:" + v.Label()
}

// JarID is the node ID of an archive.
func JarID(j *corpus.Jar) string {
	return "jar:" + j.Hash
}

// FromRepository flattens repo into a graph of libraries, versions and
// archives.
func FromRepository(repo *component.Repository) *Graph {
	g := NewGraph()
	cp := repo.Corpus()

	// 1. Nodes
	for _, l := range repo.Libraries() {
		kind := l.Kind().String()
		if l.IsPhantom() {
			kind = "phantom"
		}
		g.AddNode(&Node{
			ID:   LibraryID(l),
			Kind: NodeLibrary,
			Name: l.Name(),
			Attrs: map[string]string{
				"kind":     kind,
				"jars":     strconv.Itoa(l.Jars().Len()),
				"versions": strconv.Itoa(len(l.Versions())),
				"classes":  strconv.Itoa(len(l.Fqns())),
			},
		})
		for _, v := range l.Versions() {
			g.AddNode(&Node{
				ID:   VersionID(v),
				Kind: NodeVersion,
				Name: l.Name() + "#" + strconv.Itoa(v.Index()),
				Attrs: map[string]string{
					"jars":    strconv.Itoa(v.Jars().Len()),
					"classes": strconv.Itoa(len(v.Fqns())),
				},
			})
		}
	}
	for _, j := range cp.Jars() {
		g.AddNode(&Node{
			ID:    JarID(j),
			Kind:  NodeJar,
			Name:  j.Name,
			Attrs: map[string]string{"hash": j.Hash},
		})
	}

	// 2. Edges. Every endpoint was added above, so AddEdge cannot fail.
	for _, l := range repo.Libraries() {
		for _, dep := range l.Dependencies() {
			_ = g.AddEdge(Edge{From: LibraryID(l), To: LibraryID(dep), Kind: EdgeDependsOn})
		}
		for _, v := range l.Versions() {
			_ = g.AddEdge(Edge{From: VersionID(v), To: LibraryID(l), Kind: EdgeVersionOf})
			for id := range v.Jars().All() {
				_ = g.AddEdge(Edge{From: VersionID(v), To: JarID(cp.Jar(id)), Kind: EdgeContains})
			}
			for _, dv := range v.Dependencies() {
				_ = g.AddEdge(Edge{From: VersionID(v), To: VersionID(dv), Kind: EdgeVersionDependsOn})
			}
		}
	}
	return g
}
