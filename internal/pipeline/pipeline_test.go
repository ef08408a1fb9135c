package pipeline

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"libscout/internal/config"
	"libscout/internal/corpus"
	"libscout/internal/fact"
	"libscout/internal/graph"
	"libscout/internal/logging"
	"libscout/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJar(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.Storage.DB = filepath.Join(dir, "out.db")
	cfg.Metrics.Textfile = filepath.Join(dir, "libscout.prom")
	cfg.Corpus.Workers = 2
	return cfg
}

func TestPipeline_Run(t *testing.T) {
	root := t.TempDir()
	writeJar(t, filepath.Join(root, "app-1.jar"), map[string]string{"app/Main.class": "m1", "util/U.class": "u1"})
	writeJar(t, filepath.Join(root, "app-2.jar"), map[string]string{"app/Main.class": "m2", "util/U.class": "u1"})
	writeJar(t, filepath.Join(root, "util-1.jar"), map[string]string{"util/U.class": "u1"})
	writeJar(t, filepath.Join(root, "util-2.jar"), map[string]string{"util/U.class": "u1"})
	writeJar(t, filepath.Join(root, "util-3.jar"), map[string]string{"util/U.class": "u1"})

	cfg := testConfig(t)
	cfg.Corpus.Roots = []string{root}
	ctx := context.Background()

	res, err := New(cfg, logging.Discard()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Corpus.Len())
	assert.Equal(t, 5, res.Index.Scanned)
	require.Len(t, res.Repository.Libraries(), 2)
	assert.FileExists(t, CachePath(cfg))
	assert.FileExists(t, cfg.Metrics.Textfile)

	store, err := storage.NewSQLiteStore(cfg.Storage.DB)
	require.NoError(t, err)
	defer store.Close()

	stored, err := store.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Graph.Snapshot(), stored.Snapshot())

	libs, err := store.FindNodesByKind(ctx, graph.NodeLibrary)
	require.NoError(t, err)
	assert.Len(t, libs, 2)

	meta, err := store.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5", meta["archives"])
	assert.Equal(t, "bytes", meta["fingerprint_mode"])
	assert.Equal(t, "1", meta["compatibility_threshold"])

	t.Run("Second run is served from the cache", func(t *testing.T) {
		again, err := New(cfg, logging.Discard()).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, again.Index.Cached)
		assert.Equal(t, 0, again.Index.Scanned)
		assert.Equal(t, res.Graph.Snapshot(), again.Graph.Snapshot())
	})
}

func TestPipeline_AnalyzeCorpus(t *testing.T) {
	cp := corpus.New(logging.Discard())
	for _, jar := range []struct {
		hash  string
		facts []fact.Fact
	}{
		{"h1", []fact.Fact{{Fqn: "x.Foo", Fingerprint: "foo1"}, {Fqn: "x.Bar", Fingerprint: "bar1"}}},
		{"h2", []fact.Fact{{Fqn: "x.Foo", Fingerprint: "foo1"}, {Fqn: "x.Bar", Fingerprint: "bar1"}}},
		{"h3", []fact.Fact{{Fqn: "x.Foo", Fingerprint: "foo2"}}},
	} {
		_, err := cp.AddJar(jar.hash, jar.hash+".jar", jar.facts)
		require.NoError(t, err)
	}

	for name, tau := range map[string]float64{"exact": 1, "fuzzy": 0.5, "collapse": 0, "singletons": 2} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Clustering.CompatibilityThreshold = tau
			res, err := New(cfg, logging.Discard()).AnalyzeCorpus(cp)
			require.NoError(t, err)

			total := 0
			for _, l := range res.Repository.Libraries() {
				total += l.Jars().Len()
			}
			assert.Equal(t, 3, total, "every archive lands in one library")
			assert.LessOrEqual(t, res.Merge.Remaining, res.Identified)
			assert.Len(t, res.Graph.NodesOf(graph.NodeJar), 3)
		})
	}
}

func TestPipeline_Errors(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, logging.Discard())

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCorpus, "no roots")

	_, err = p.Run(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrEmptyCorpus, "no archives")

	_, err = p.AnalyzeCorpus(corpus.New(logging.Discard()))
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}
