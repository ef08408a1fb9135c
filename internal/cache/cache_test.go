package cache

import (
	"os"
	"path/filepath"
	"testing"

	"libscout/internal/corpus"
	"libscout/internal/fact"
	"libscout/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registry map[string]bool

func (r registry) Has(hash string) bool { return r[hash] }

func testCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	cp := corpus.New(logging.Discard())
	_, err := cp.AddJar("h1", "a-1.jar", []fact.Fact{{Fqn: "a.A", Fingerprint: "f1"}, {Fqn: "a.B", Fingerprint: "f2"}})
	require.NoError(t, err)
	_, err = cp.AddJar("h2", "a-2.jar", []fact.Fact{{Fqn: "a.A", Fingerprint: "f1"}, {Fqn: "a.B", Fingerprint: "f2"}})
	require.NoError(t, err)
	_, err = cp.AddJar("h3", "empty.jar", nil)
	require.NoError(t, err)
	return cp
}

func reload(t *testing.T, path string, c Compression, reg Registry) (*corpus.Corpus, int) {
	t.Helper()
	cp := corpus.New(logging.Discard())
	n, err := Read(path, c, reg, logging.Discard(), func(hash string, facts []fact.Fact) error {
		_, err := cp.AddJar(hash, hash, facts)
		return err
	})
	require.NoError(t, err)
	return cp, n
}

func TestCache_RoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(string(c), func(t *testing.T) {
			src := testCorpus(t)
			path := Path(t.TempDir(), "bytes", c)
			require.NoError(t, Write(path, src, c))

			got, n := reload(t, path, c, registry{"h1": true, "h2": true, "h3": true})
			assert.Equal(t, 3, n)
			require.Equal(t, src.Len(), got.Len())
			assert.Equal(t, src.FactCount(), got.FactCount())

			for _, jar := range src.Jars() {
				other, ok := got.JarByHash(jar.Hash)
				require.True(t, ok)
				assert.ElementsMatch(t, src.Facts(jar), got.Facts(other))
			}

			// Archives with identical facts share one interned jar set after a reload.
			node, ok := got.Trie().Lookup("a.A")
			require.True(t, ok)
			vm := got.Trie().Versions(node)
			require.Equal(t, 1, vm.Len())
			assert.Same(t, got.Interner().Of(0, 1), vm.Jars())
		})
	}
}

func TestCache_SkipsUnknownAndMalformed(t *testing.T) {
	src := testCorpus(t)
	path := Path(t.TempDir(), "bytes", CompressionNone)
	require.NoError(t, Write(path, src, CompressionNone))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("h4 x.X\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, n := reload(t, path, CompressionNone, registry{"h1": true, "h3": true, "h4": true})
	assert.Equal(t, 2, n)
	assert.True(t, got.Has("h1"))
	assert.False(t, got.Has("h2"))
	assert.False(t, got.Has("h4"))
}

func TestCache_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Read(filepath.Join(dir, "missing.cache"), CompressionNone, registry{}, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("Corrupt stream", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.cache.zst")
		require.NoError(t, os.WriteFile(path, []byte("definitely not zstd"), 0o644))
		_, err := Read(path, CompressionZstd, registry{}, logging.Discard(), func(string, []fact.Fact) error { return nil })
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("Compression names", func(t *testing.T) {
		c, err := ParseCompression("")
		require.NoError(t, err)
		assert.Equal(t, CompressionZstd, c)
		c, err = ParseCompression("lz4")
		require.NoError(t, err)
		assert.Equal(t, "facts-structure.cache.lz4", FileName("structure", c))
		assert.Equal(t, "facts-bytes.cache", FileName("bytes", CompressionNone))
		_, err = ParseCompression("gzip")
		assert.Error(t, err)
	})
}
