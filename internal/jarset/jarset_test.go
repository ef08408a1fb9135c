package jarset

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func membershipKey(s *JarSet) string {
	return fmt.Sprint(s.Members())
}

func TestInterner_AddIsCanonical(t *testing.T) {
	in := NewInterner()

	ab := in.Add(in.Add(in.Empty(), 1), 2)
	ba := in.Add(in.Add(in.Empty(), 2), 1)
	assert.Same(t, ab, ba, "insertion order must not matter")
	assert.Equal(t, []JarID{1, 2}, ab.Members())

	t.Run("Adding an existing member returns the same set", func(t *testing.T) {
		assert.Same(t, ab, in.Add(ab, 1))
	})

	t.Run("Empty is canonical", func(t *testing.T) {
		assert.Same(t, in.Empty(), in.Of())
		assert.Equal(t, uint32(0), in.Empty().ID())
		assert.True(t, in.Empty().IsEmpty())
	})
}

func TestInterner_MergeAndOf(t *testing.T) {
	in := NewInterner()

	a := in.Of(1, 3, 5)
	b := in.Of(2, 3)
	u := in.Merge(a, b)

	assert.Equal(t, []JarID{1, 2, 3, 5}, u.Members())
	assert.Same(t, u, in.Merge(b, a))
	assert.Same(t, u, in.Of(5, 3, 2, 1, 1))
	assert.Same(t, a, in.Merge(a, in.Empty()))
	assert.Same(t, a, in.Merge(in.Of(1, 5), a), "subset merge returns the superset")

	folded := in.Empty()
	for _, j := range []JarID{5, 2, 1, 3} {
		folded = in.Add(folded, j)
	}
	assert.Same(t, u, folded)
}

func TestInterner_RandomSequencesPreserveIdentity(t *testing.T) {
	in := NewInterner()
	rng := rand.New(rand.NewPCG(7, 11))

	canonical := make(map[string]*JarSet)
	check := func(s *JarSet) {
		key := membershipKey(s)
		if prev, ok := canonical[key]; ok {
			require.Same(t, prev, s, "membership %s interned twice", key)
			return
		}
		canonical[key] = s
	}

	pool := []*JarSet{in.Empty()}
	check(in.Empty())
	for i := 0; i < 2000; i++ {
		var next *JarSet
		switch rng.IntN(3) {
		case 0:
			next = in.Add(pool[rng.IntN(len(pool))], JarID(rng.IntN(12)))
		case 1:
			next = in.Merge(pool[rng.IntN(len(pool))], pool[rng.IntN(len(pool))])
		default:
			n := rng.IntN(5)
			jars := make([]JarID, n)
			for k := range jars {
				jars[k] = JarID(rng.IntN(12))
			}
			next = in.Of(jars...)
		}
		check(next)
		pool = append(pool, next)
	}

	assert.Equal(t, len(canonical), in.Len(), "every interned set is reachable exactly once")
}

func TestJarSet_SetOperations(t *testing.T) {
	in := NewInterner()
	a := in.Of(1, 2, 3, 4)
	b := in.Of(3, 4, 5)
	c := in.Of(9, 10)

	assert.Equal(t, 2, a.IntersectionSize(b))
	assert.Equal(t, 2, b.IntersectionSize(a))
	assert.Equal(t, 0, a.IntersectionSize(c))
	assert.Equal(t, 4, a.IntersectionSize(a))

	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(c))

	assert.True(t, in.Of(2, 3).IsSubsetOf(a))
	assert.False(t, b.IsSubsetOf(a))
	assert.True(t, in.Empty().IsSubsetOf(c))

	assert.True(t, a.Contains(4))
	assert.False(t, a.Contains(5))

	var seen []JarID
	for j := range b.All() {
		seen = append(seen, j)
	}
	assert.Equal(t, []JarID{3, 4, 5}, seen)
}

func TestInterner_IndependentPools(t *testing.T) {
	first := NewInterner()
	second := NewInterner()

	x := first.Of(1, 2)
	y := second.Of(1, 2)
	assert.NotSame(t, x, y, "pools are per run, not global")
	assert.Equal(t, x.Members(), y.Members())
}
