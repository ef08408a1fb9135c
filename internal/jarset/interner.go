package jarset

import "slices"

// Interner is the pool of canonical JarSets for one corpus run. It replaces any
// process-wide pool: independent corpora use independent interners.
//
// An Interner is not safe for concurrent use. Interning correctness (identity
// equals membership) depends on find-or-insert being atomic, so all mutation
// must happen on a single goroutine.
type Interner struct {
	buckets map[uint64][]*JarSet
	empty   *JarSet
	nextID  uint32
	size    int
}

// NewInterner returns an interner holding only the empty set.
func NewInterner() *Interner {
	in := &Interner{buckets: make(map[uint64][]*JarSet)}
	in.empty = &JarSet{id: 0}
	in.buckets[0] = []*JarSet{in.empty}
	in.nextID = 1
	in.size = 1
	return in
}

// Len returns the number of distinct sets interned so far.
func (in *Interner) Len() int { return in.size }

// Empty returns the canonical empty set.
func (in *Interner) Empty() *JarSet { return in.empty }

// Add returns the canonical set for members(set) ∪ {jar}.
func (in *Interner) Add(set *JarSet, jar JarID) *JarSet {
	pos, found := slices.BinarySearch(set.members, jar)
	if found {
		return set
	}
	hash := set.hash + memberHash(jar)
	for _, cand := range in.buckets[hash] {
		if len(cand.members) == len(set.members)+1 && equalWithInsert(cand.members, set.members, pos, jar) {
			return cand
		}
	}
	members := make([]JarID, 0, len(set.members)+1)
	members = append(members, set.members[:pos]...)
	members = append(members, jar)
	members = append(members, set.members[pos:]...)
	return in.insert(members, hash)
}

// Merge returns the canonical union of a and b.
func (in *Interner) Merge(a, b *JarSet) *JarSet {
	switch {
	case a == b, b.IsEmpty():
		return a
	case a.IsEmpty():
		return b
	}
	if len(a.members) < len(b.members) {
		a, b = b, a
	}
	if b.IsSubsetOf(a) {
		return a
	}
	members := unionSorted(a.members, b.members)
	return in.intern(members, hashOf(members))
}

// Of returns the canonical set with exactly the given members. It is
// equivalent to folding Add over jars, but does not intern every intermediate
// prefix. Duplicates are ignored.
func (in *Interner) Of(jars ...JarID) *JarSet {
	if len(jars) == 0 {
		return in.empty
	}
	members := slices.Clone(jars)
	slices.Sort(members)
	members = slices.Compact(members)
	return in.intern(members, hashOf(members))
}

func (in *Interner) intern(members []JarID, hash uint64) *JarSet {
	for _, cand := range in.buckets[hash] {
		if slices.Equal(cand.members, members) {
			return cand
		}
	}
	return in.insert(members, hash)
}

func (in *Interner) insert(members []JarID, hash uint64) *JarSet {
	set := &JarSet{id: in.nextID, hash: hash, members: members}
	in.nextID++
	in.size++
	in.buckets[hash] = append(in.buckets[hash], set)
	return set
}

// memberHash spreads a jar id over 64 bits (splitmix64 finalizer). Set hashes
// are plain sums of member hashes so they can be updated incrementally and do
// not depend on insertion order.
func memberHash(j JarID) uint64 {
	z := uint64(j) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hashOf(members []JarID) uint64 {
	var h uint64
	for _, j := range members {
		h += memberHash(j)
	}
	return h
}

// equalWithInsert reports whether cand equals base with jar inserted at pos.
func equalWithInsert(cand, base []JarID, pos int, jar JarID) bool {
	if cand[pos] != jar {
		return false
	}
	return slices.Equal(cand[:pos], base[:pos]) && slices.Equal(cand[pos+1:], base[pos:])
}

func unionSorted(a, b []JarID) []JarID {
	out := make([]JarID, 0, len(a)+len(b))
	i, k := 0, 0
	for i < len(a) && k < len(b) {
		switch {
		case a[i] < b[k]:
			out = append(out, a[i])
			i++
		case a[i] > b[k]:
			out = append(out, b[k])
			k++
		default:
			out = append(out, a[i])
			i++
			k++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[k:]...)
}
