package analysis

import (
	"testing"

	"libscout/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds core <- mid <- top, each library with one version and one jar.
func chain(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.NewGraph()
	for _, name := range []string{"core", "mid", "top"} {
		g.AddNode(&graph.Node{ID: "lib:" + name, Kind: graph.NodeLibrary, Name: name})
		g.AddNode(&graph.Node{ID: "ver:" + name, Kind: graph.NodeVersion, Name: name + "#0"})
		g.AddNode(&graph.Node{ID: "jar:" + name, Kind: graph.NodeJar, Name: name + ".jar"})
		require.NoError(t, g.AddEdge(graph.Edge{From: "ver:" + name, To: "lib:" + name, Kind: graph.EdgeVersionOf}))
		require.NoError(t, g.AddEdge(graph.Edge{From: "ver:" + name, To: "jar:" + name, Kind: graph.EdgeContains}))
	}
	for _, e := range [][2]string{{"mid", "core"}, {"top", "mid"}} {
		require.NoError(t, g.AddEdge(graph.Edge{From: "lib:" + e[0], To: "lib:" + e[1], Kind: graph.EdgeDependsOn}))
		require.NoError(t, g.AddEdge(graph.Edge{From: "ver:" + e[0], To: "ver:" + e[1], Kind: graph.EdgeVersionDependsOn}))
	}
	// A cycle back to core must not loop.
	require.NoError(t, g.AddEdge(graph.Edge{From: "lib:core", To: "lib:top", Kind: graph.EdgeDependsOn}))
	return g
}

func ids(nodes []*graph.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestAnalyzer_Dependants(t *testing.T) {
	a := NewAnalyzer(chain(t))

	t.Run("Library", func(t *testing.T) {
		report, err := a.Dependants("lib:core")
		require.NoError(t, err)
		assert.Equal(t, "core", report.Target.Name)
		assert.Equal(t, []string{"lib:mid"}, ids(report.DirectlyAffected))
		assert.Equal(t, []string{"lib:top"}, ids(report.IndirectlyAffected))
	})

	t.Run("Version", func(t *testing.T) {
		report, err := a.Dependants("ver:mid")
		require.NoError(t, err)
		assert.Equal(t, []string{"ver:top"}, ids(report.DirectlyAffected))
		assert.Empty(t, report.IndirectlyAffected)
	})

	t.Run("Jar", func(t *testing.T) {
		report, err := a.Dependants("jar:core")
		require.NoError(t, err)
		assert.Equal(t, []string{"ver:core", "ver:mid"}, ids(report.DirectlyAffected))
		assert.Equal(t, []string{"ver:top"}, ids(report.IndirectlyAffected))
	})

	t.Run("Unknown node", func(t *testing.T) {
		_, err := a.Dependants("lib:nope")
		assert.ErrorIs(t, err, ErrUnknownNode)
	})
}
