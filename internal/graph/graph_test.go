package graph

import (
	"testing"

	"libscout/internal/cluster"
	"libscout/internal/component"
	"libscout/internal/corpus"
	"libscout/internal/fact"
	"libscout/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRepository(t *testing.T) *component.Repository {
	t.Helper()
	cp := corpus.New(logging.Discard())
	add := func(hash, name string, pairs ...string) {
		var facts []fact.Fact
		for i := 0; i+1 < len(pairs); i += 2 {
			facts = append(facts, fact.Fact{Fqn: pairs[i], Fingerprint: fact.Fingerprint(pairs[i+1])})
		}
		_, err := cp.AddJar(hash, name, facts)
		require.NoError(t, err)
	}
	add("h-app1", "app-1.jar", "app.Main", "m1", "util.U", "u1")
	add("h-app2", "app-2.jar", "app.Main", "m1", "util.U", "u1")
	add("h-util1", "util-1.jar", "util.U", "u1")
	add("h-util2", "util-2.jar", "util.U", "u1")
	add("h-util3", "util-3.jar", "util.U", "u1")

	cc := cluster.IdentifyFullyMatching(cp, logging.Discard())
	cluster.NewMerger(logging.Discard(), 0).Merge(cc)
	return component.NewBuilder(logging.Discard(), 0).Build(cc)
}

func TestFromRepository(t *testing.T) {
	repo := buildRepository(t)
	g := FromRepository(repo)

	libs := g.NodesOf(NodeLibrary)
	require.Len(t, libs, 2)
	assert.Len(t, g.NodesOf(NodeVersion), 2)
	assert.Len(t, g.NodesOf(NodeJar), 5)

	var app, util *Node
	for _, n := range libs {
		switch n.Name {
		case "app":
			app = n
		case "util":
			util = n
		}
	}
	require.NotNil(t, app)
	require.NotNil(t, util)
	assert.Equal(t, "3", util.Attrs["jars"])
	assert.Equal(t, "simple", util.Attrs["kind"])

	t.Run("Library dependencies", func(t *testing.T) {
		deps := g.GetDependencies(app.ID, EdgeDependsOn)
		require.Len(t, deps, 1)
		assert.Equal(t, util.ID, deps[0].ID)

		dependents := g.GetDependents(util.ID, EdgeDependsOn)
		require.Len(t, dependents, 1)
		assert.Equal(t, app.ID, dependents[0].ID)
	})

	t.Run("Versions", func(t *testing.T) {
		versions := g.GetDependents(util.ID, EdgeVersionOf)
		require.Len(t, versions, 1)
		jars := g.GetDependencies(versions[0].ID, EdgeContains)
		assert.Len(t, jars, 3)
		for _, j := range jars {
			assert.Equal(t, NodeJar, j.Kind)
		}
		assert.Len(t, g.GetDependents(versions[0].ID, EdgeVersionDependsOn), 1)
	})

	t.Run("Unfiltered lookups follow every kind", func(t *testing.T) {
		// version_of from its version plus depends_on from app
		assert.Len(t, g.GetDependents(util.ID), 2)
	})
}

func TestGraph_Snapshot(t *testing.T) {
	g := FromRepository(buildRepository(t))
	s := g.Snapshot()
	require.Len(t, s.Nodes, len(g.Nodes))
	require.Len(t, s.Edges, len(g.Edges))
	for i := 1; i < len(s.Nodes); i++ {
		assert.Less(t, s.Nodes[i-1].ID, s.Nodes[i].ID)
	}
	for i := 1; i < len(s.Edges); i++ {
		assert.LessOrEqual(t, compareEdges(s.Edges[i-1], s.Edges[i]), 0)
	}

	back, err := FromSnapshot(s)
	require.NoError(t, err)
	assert.Equal(t, s, back.Snapshot())

	t.Run("Rejects unknown kinds", func(t *testing.T) {
		_, err := FromSnapshot(Snapshot{Nodes: []Node{{ID: "x", Kind: "module"}}})
		assert.Error(t, err)
		_, err = FromSnapshot(Snapshot{
			Nodes: []Node{{ID: "a", Kind: NodeJar}, {ID: "b", Kind: NodeJar}},
			Edges: []Edge{{From: "a", To: "b", Kind: "calls"}},
		})
		assert.Error(t, err)
	})

	t.Run("Rejects dangling edges", func(t *testing.T) {
		err := NewGraph().AddEdge(Edge{From: "a", To: "b", Kind: EdgeDependsOn})
		assert.Error(t, err)
	})
}
