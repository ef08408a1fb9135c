package component

import (
	"libscout/internal/cluster"
	"libscout/internal/corpus"
	"libscout/internal/jarset"
)

// Repository is the output of one run: every library, phantoms included.
type Repository struct {
	corpus    *corpus.Corpus
	clusters  *cluster.Collection
	libraries []*Library
	byJar     map[jarset.JarID]*Library
}

// Stats counts the contents of a repository.
type Stats struct {
	Simple   int
	Package  int
	Phantom  int
	Versions int
	Edges    int
}

// Corpus returns the corpus the repository was built from.
func (r *Repository) Corpus() *corpus.Corpus { return r.corpus }

// Clusters returns the merged clusters the libraries were built from.
func (r *Repository) Clusters() *cluster.Collection { return r.clusters }

// Libraries returns every library in id order.
func (r *Repository) Libraries() []*Library { return r.libraries }

// Library returns the library with the given id, or nil.
func (r *Repository) Library(id int) *Library {
	if id < 0 || id >= len(r.libraries) {
		return nil
	}
	return r.libraries[id]
}

// LibraryOf returns the library an archive was assigned to.
func (r *Repository) LibraryOf(jar jarset.JarID) (*Library, bool) {
	l, ok := r.byJar[jar]
	return l, ok
}

// Phantoms returns the libraries without archives.
func (r *Repository) Phantoms() []*Library {
	var out []*Library
	for _, l := range r.libraries {
		if l.IsPhantom() {
			out = append(out, l)
		}
	}
	return out
}

// Stats counts libraries by kind, versions and library-level edges.
func (r *Repository) Stats() Stats {
	var s Stats
	for _, l := range r.libraries {
		switch {
		case l.IsPhantom():
			s.Phantom++
		case l.kind == KindSimple:
			s.Simple++
		case l.kind == KindPackage:
			s.Package++
		}
		s.Versions += len(l.versions)
		s.Edges += len(l.deps)
	}
	return s
}
