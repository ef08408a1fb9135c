// Package corpus holds the archives of one run and the fact trie they
// populate.
package corpus

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"libscout/internal/fact"
	"libscout/internal/jarset"
)

// ErrDuplicateJar is returned when an archive hash is added twice.
var ErrDuplicateJar = errors.New("duplicate archive")

// Jar is one archive with the FQN versions it carries, sorted by node.
type Jar struct {
	ID    jarset.JarID
	Hash  string
	Name  string
	Facts []fact.FqnVersion
}

// FingerprintOf returns the fingerprint the jar carries for node n.
func (j *Jar) FingerprintOf(n fact.NodeID) (fact.Fingerprint, bool) {
	i, ok := slices.BinarySearchFunc(j.Facts, n, func(v fact.FqnVersion, n fact.NodeID) int {
		switch {
		case v.Node < n:
			return -1
		case v.Node > n:
			return 1
		}
		return 0
	})
	if !ok {
		return "", false
	}
	return j.Facts[i].Fingerprint, true
}

// Corpus is the JarCollection of one run. It owns the interner and the trie;
// it is not safe for concurrent use.
type Corpus struct {
	interner *jarset.Interner
	trie     *fact.Trie
	jars     []*Jar
	byHash   map[string]*Jar
	logger   *slog.Logger
}

// New creates an empty corpus with a fresh interner.
func New(logger *slog.Logger) *Corpus {
	if logger == nil {
		logger = slog.Default()
	}
	in := jarset.NewInterner()
	return &Corpus{
		interner: in,
		trie:     fact.NewTrie(in),
		byHash:   make(map[string]*Jar),
		logger:   logger,
	}
}

// AddJar registers an archive and feeds its facts into the trie. Facts with an
// empty FQN or an invalid fingerprint are skipped. A second fact for an FQN
// already seen in the same archive is dropped with a warning.
func (c *Corpus) AddJar(hash, name string, facts []fact.Fact) (*Jar, error) {
	if hash == "" {
		return nil, fmt.Errorf("archive %q has no hash", name)
	}
	if _, ok := c.byHash[hash]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJar, hash)
	}

	jar := &Jar{
		ID:   jarset.JarID(len(c.jars)),
		Hash: hash,
		Name: name,
	}
	seen := make(map[fact.NodeID]struct{}, len(facts))
	for _, f := range facts {
		fqn := fact.NormalizeFqn(f.Fqn)
		if fqn == "" || !f.Fingerprint.Valid() {
			c.logger.Warn("skipping malformed fact", "archive", name, "fqn", f.Fqn)
			continue
		}
		node := c.trie.Insert(fqn)
		if _, dup := seen[node]; dup {
			c.logger.Warn("duplicate class in archive", "archive", name, "fqn", fqn)
			continue
		}
		seen[node] = struct{}{}
		c.trie.AddJar(node, jar.ID, f.Fingerprint)
		jar.Facts = append(jar.Facts, fact.FqnVersion{Node: node, Fingerprint: f.Fingerprint})
	}
	fact.SortVersions(jar.Facts)

	c.jars = append(c.jars, jar)
	c.byHash[hash] = jar
	return jar, nil
}

// Jars returns every archive in insertion order.
func (c *Corpus) Jars() []*Jar { return c.jars }

// Jar returns the archive with the given id.
func (c *Corpus) Jar(id jarset.JarID) *Jar { return c.jars[id] }

// JarByHash finds an archive by its hash.
func (c *Corpus) JarByHash(hash string) (*Jar, bool) {
	j, ok := c.byHash[hash]
	return j, ok
}

// Has reports whether an archive hash is registered.
func (c *Corpus) Has(hash string) bool {
	_, ok := c.byHash[hash]
	return ok
}

// Len returns the number of archives.
func (c *Corpus) Len() int { return len(c.jars) }

// FactCount returns the number of (archive, FQN) facts stored.
func (c *Corpus) FactCount() int {
	n := 0
	for _, j := range c.jars {
		n += len(j.Facts)
	}
	return n
}

// Trie returns the fact trie.
func (c *Corpus) Trie() *fact.Trie { return c.trie }

// Interner returns the interner every jar set of this corpus comes from.
func (c *Corpus) Interner() *jarset.Interner { return c.interner }

// Logger returns the logger the corpus was created with.
func (c *Corpus) Logger() *slog.Logger { return c.logger }

// Facts returns the facts of jar as dotted FQNs, in node order.
func (c *Corpus) Facts(jar *Jar) []fact.Fact {
	out := make([]fact.Fact, len(jar.Facts))
	for i, v := range jar.Facts {
		out[i] = fact.Fact{Fqn: c.trie.Fqn(v.Node), Fingerprint: v.Fingerprint}
	}
	return out
}
