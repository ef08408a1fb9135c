// Package jarset implements canonical, interned sets of archives.
//
// Every JarSet is obtained from an Interner. The interner guarantees that two
// sets with the same members are the same pointer, so set equality anywhere in
// the clustering code is a pointer comparison. Sets are immutable; "adding" to
// a set returns another canonical set.
package jarset

import (
	"iter"
	"slices"
)

// JarID identifies one archive of a corpus. IDs are dense and assigned by the
// corpus in insertion order.
type JarID uint32

// JarSet is an immutable set of archives. Compare JarSets with ==.
type JarSet struct {
	id      uint32
	hash    uint64
	members []JarID
}

// ID is the interner-unique id of the set. The empty set has id 0.
func (s *JarSet) ID() uint32 { return s.id }

// Len returns the number of member archives.
func (s *JarSet) Len() int { return len(s.members) }

// IsEmpty reports whether the set has no members.
func (s *JarSet) IsEmpty() bool { return len(s.members) == 0 }

// Members returns the members in ascending order. The slice is shared with the
// set and must not be modified.
func (s *JarSet) Members() []JarID { return s.members }

// All iterates the members in ascending order.
func (s *JarSet) All() iter.Seq[JarID] {
	return func(yield func(JarID) bool) {
		for _, j := range s.members {
			if !yield(j) {
				return
			}
		}
	}
}

// Contains reports whether jar is a member.
func (s *JarSet) Contains(jar JarID) bool {
	_, ok := slices.BinarySearch(s.members, jar)
	return ok
}

// IntersectionSize counts the common members of s and other. It iterates the
// smaller set and probes the larger one.
func (s *JarSet) IntersectionSize(other *JarSet) int {
	if s == other {
		return len(s.members)
	}
	small, large := s, other
	if len(small.members) > len(large.members) {
		small, large = large, small
	}
	if len(small.members) == 0 {
		return 0
	}
	// Disjoint ranges never intersect.
	if small.members[len(small.members)-1] < large.members[0] ||
		large.members[len(large.members)-1] < small.members[0] {
		return 0
	}
	n := 0
	for _, j := range small.members {
		if large.Contains(j) {
			n++
		}
	}
	return n
}

// Intersects reports whether s and other share at least one member.
func (s *JarSet) Intersects(other *JarSet) bool {
	if s == other {
		return len(s.members) > 0
	}
	small, large := s, other
	if len(small.members) > len(large.members) {
		small, large = large, small
	}
	for _, j := range small.members {
		if large.Contains(j) {
			return true
		}
	}
	return false
}

// IsSubsetOf reports whether every member of s is a member of other.
func (s *JarSet) IsSubsetOf(other *JarSet) bool {
	if s == other || len(s.members) == 0 {
		return true
	}
	if len(s.members) > len(other.members) {
		return false
	}
	for _, j := range s.members {
		if !other.Contains(j) {
			return false
		}
	}
	return true
}
