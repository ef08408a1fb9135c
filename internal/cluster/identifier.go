package cluster

import (
	"log/slog"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"libscout/internal/corpus"
	"libscout/internal/fact"
	"libscout/internal/jarset"
	"libscout/internal/logging"
	"libscout/internal/metrics"
)

// DefaultLRUSize bounds the memo of pairwise intersection sizes used in fuzzy
// mode.
const DefaultLRUSize = 1 << 16

// Options tune cluster identification.
type Options struct {
	// Threshold is the compatibility threshold. Above 1 or NaN nothing is
	// compatible, at or below 0 everything is, 1 requires identical archive
	// sets and anything in between compares co-occurrence rates.
	Threshold float64

	LRUSize       int
	ProgressEvery int
	Logger        *slog.Logger
}

// DefaultOptions returns exact-mode options.
func DefaultOptions() Options {
	return Options{Threshold: 1, LRUSize: DefaultLRUSize}
}

type mode int

const (
	modeNever mode = iota
	modeAlways
	modeExact
	modeFuzzy
)

func modeOf(threshold float64) mode {
	switch {
	case threshold > 1, math.IsNaN(threshold):
		return modeNever
	case threshold <= 0:
		return modeAlways
	case threshold == 1:
		return modeExact
	default:
		return modeFuzzy
	}
}

// Identifier builds the initial clusters of a corpus by a post-order walk of
// its fact trie.
type Identifier struct {
	corpus    *corpus.Corpus
	opts      Options
	mode      mode
	logger    *slog.Logger
	intersect *lru.Cache[[2]uint32, int]
}

// NewIdentifier prepares an identifier over cp.
func NewIdentifier(cp *corpus.Corpus, opts Options) (*Identifier, error) {
	id := &Identifier{
		corpus: cp,
		opts:   opts,
		mode:   modeOf(opts.Threshold),
		logger: logging.OrDefault(opts.Logger),
	}
	if id.mode == modeFuzzy {
		size := opts.LRUSize
		if size <= 0 {
			size = DefaultLRUSize
		}
		cache, err := lru.New[[2]uint32, int](size)
		if err != nil {
			return nil, err
		}
		id.intersect = cache
	}
	return id, nil
}

// IdentifyFullyMatching clusters cp in exact mode: two classes share a cluster
// iff they occur in exactly the same archives.
func IdentifyFullyMatching(cp *corpus.Corpus, logger *slog.Logger) *Collection {
	opts := DefaultOptions()
	opts.Logger = logger
	id := &Identifier{
		corpus: cp,
		opts:   opts,
		mode:   modeExact,
		logger: logging.OrDefault(logger),
	}
	return id.Identify()
}

// candidates is the running cluster list of one trie node.
type candidates struct {
	list  []*Cluster
	exact map[*jarset.JarSet]*Cluster
}

// Identify walks the trie bottom-up. Every node with its own versions starts a
// singleton cluster; the clusters of its children are then folded in one by
// one, merging with a compatible candidate or being promoted unchanged.
func (id *Identifier) Identify() *Collection {
	trie := id.corpus.Trie()
	pending := make(map[fact.NodeID]*candidates)
	progress := metrics.NewProgress(id.logger, "identify", id.opts.ProgressEvery, trie.Len())

	var root *candidates
	for n := range trie.PostOrder() {
		cur := &candidates{}
		if id.mode == modeExact {
			cur.exact = make(map[*jarset.JarSet]*Cluster)
		}
		if !trie.Versions(n).IsEmpty() {
			id.fold(cur, newCluster(id.corpus, n))
		}
		for _, child := range trie.Children(n) {
			if sub, ok := pending[child]; ok {
				for _, c := range sub.list {
					id.fold(cur, c)
				}
				delete(pending, child)
			}
		}
		pending[n] = cur
		root = cur
		progress.Tick()
	}
	progress.Done()

	var list []*Cluster
	if root != nil {
		list = root.list
	}
	cc := newCollection(id.corpus, list)
	metrics.ClustersIdentified.Set(float64(cc.Len()))
	id.logger.Info("clusters identified", "clusters", cc.Len(), "threshold", id.opts.Threshold)
	return cc
}

func (id *Identifier) fold(cur *candidates, c *Cluster) {
	switch id.mode {
	case modeNever:
		cur.list = append(cur.list, c)
	case modeAlways:
		if len(cur.list) == 0 {
			cur.list = append(cur.list, c)
			return
		}
		cur.list[0].addCore(c.core, c.jars)
	case modeExact:
		if into, ok := cur.exact[c.jars]; ok {
			into.addCore(c.core, c.jars)
			return
		}
		cur.exact[c.jars] = c
		cur.list = append(cur.list, c)
	case modeFuzzy:
		var match *Cluster
		matches := 0
		for _, cand := range cur.list {
			if id.compatible(cand, c) {
				match = cand
				matches++
			}
		}
		// Ambiguous matches are promoted unmerged.
		if matches == 1 {
			match.addCore(c.core, c.jars)
			return
		}
		if matches > 1 {
			id.logger.Debug("ambiguous cluster match, promoting",
				"fqn", id.corpus.Trie().Fqn(c.core[0]), "matches", matches)
		}
		cur.list = append(cur.list, c)
	}
}

// compatible compares the average conditional co-occurrence of every core
// class pair in both directions against the threshold.
func (id *Identifier) compatible(a, b *Cluster) bool {
	if !a.jars.Intersects(b.jars) {
		return false
	}
	trie := id.corpus.Trie()
	var sumA, sumB float64
	for _, fa := range a.core {
		ja := trie.Versions(fa).Jars()
		for _, fb := range b.core {
			jb := trie.Versions(fb).Jars()
			n := float64(id.intersection(ja, jb))
			sumA += n / float64(ja.Len())
			sumB += n / float64(jb.Len())
		}
	}
	pairs := float64(len(a.core) * len(b.core))
	return sumA/pairs >= id.opts.Threshold && sumB/pairs >= id.opts.Threshold
}

func (id *Identifier) intersection(a, b *jarset.JarSet) int {
	key := [2]uint32{a.ID(), b.ID()}
	if key[0] > key[1] {
		key[0], key[1] = key[1], key[0]
	}
	if n, ok := id.intersect.Get(key); ok {
		return n
	}
	n := a.IntersectionSize(b)
	id.intersect.Add(key, n)
	return n
}
