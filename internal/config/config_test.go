package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"libscout/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "libscout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Corpus.Roots)
	assert.Equal(t, "bytes", cfg.Corpus.FingerprintMode)
	assert.Equal(t, runtime.NumCPU(), cfg.Corpus.Workers)
	assert.Equal(t, ".libscout", cfg.Cache.Dir)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, cache.CompressionZstd, cfg.Compression())
	assert.Equal(t, 1.0, cfg.Clustering.CompatibilityThreshold)
	assert.Equal(t, 65536, cfg.Clustering.LRUSize)
	assert.Equal(t, "libscout.db", cfg.Storage.DB)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10000, cfg.ProgressEvery)
}

func TestLoadConfig_File(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
corpus:
  roots: [libs, vendor/jars]
  fingerprint_mode: structure
cache:
  compression: lz4
  enabled: false
clustering:
  compatibility_threshold: 0.75
logging:
  format: json
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"libs", "vendor/jars"}, cfg.Corpus.Roots)
	assert.Equal(t, "structure", cfg.Corpus.FingerprintMode)
	assert.Equal(t, cache.CompressionLZ4, cfg.Compression())
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 0.75, cfg.Clustering.CompatibilityThreshold)
	assert.Equal(t, "json", cfg.Logging.Format)
	// untouched keys keep their defaults
	assert.Equal(t, "libscout.db", cfg.Storage.DB)

	t.Run("Environment overrides the file", func(t *testing.T) {
		t.Setenv("LIBSCOUT_ROOTS", "a, b,,c")
		t.Setenv("LIBSCOUT_COMPATIBILITY_THRESHOLD", "1.5")
		t.Setenv("LIBSCOUT_DB", "out.db")
		t.Setenv("LIBSCOUT_WORKERS", "3")
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, cfg.Corpus.Roots)
		assert.Equal(t, 1.5, cfg.Clustering.CompatibilityThreshold, "out-of-range thresholds are accepted")
		assert.Equal(t, "out.db", cfg.Storage.DB)
		assert.Equal(t, 3, cfg.Corpus.Workers)
	})
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("LIBSCOUT_CACHE_DIR", "")
	require.NoError(t, os.Unsetenv("LIBSCOUT_CACHE_DIR"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LIBSCOUT_CACHE_DIR=/tmp/facts\n"), 0o644))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/facts", cfg.Cache.Dir)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	for name, content := range map[string]string{
		"mode":        "corpus: {fingerprint_mode: ast}",
		"compression": "cache: {compression: gzip}",
		"level":       "logging: {level: loud}",
		"format":      "logging: {format: xml}",
		"lru":         "clustering: {lru_size: -1}",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	t.Run("Malformed yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "corpus: [unterminated"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalid)
	})

	t.Run("NaN threshold", func(t *testing.T) {
		t.Setenv("LIBSCOUT_COMPATIBILITY_THRESHOLD", "NaN")
		_, err := LoadConfig("")
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("Bad env number", func(t *testing.T) {
		t.Setenv("LIBSCOUT_COMPATIBILITY_THRESHOLD", "high")
		_, err := LoadConfig("")
		assert.ErrorIs(t, err, ErrInvalid)
	})
}
