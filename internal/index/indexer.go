package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"libscout/internal/cache"
	"libscout/internal/corpus"
	"libscout/internal/crawler"
	"libscout/internal/fact"
	"libscout/internal/logging"
	"libscout/internal/metrics"
)

// ErrNoArchives is returned when the roots hold no archive at all.
var ErrNoArchives = errors.New("no archives found")

// Options control the fact cache.
type Options struct {
	// CacheDir holds the cache file. Empty disables the cache.
	CacheDir    string
	Compression cache.Compression
}

// Stats describes how a corpus was assembled.
type Stats struct {
	Discovered int
	Cached     int
	Scanned    int
	Skipped    int
}

// Indexer orchestrates archive discovery, the fact cache and corpus
// construction.
type Indexer struct {
	crawler *crawler.Crawler
	mode    string
	opts    Options
	logger  *slog.Logger
}

// NewIndexer creates a new indexer. mode keys the cache file, so caches of
// different fingerprint modes never mix.
func NewIndexer(c *crawler.Crawler, mode string, opts Options, logger *slog.Logger) *Indexer {
	return &Indexer{
		crawler: c,
		mode:    mode,
		opts:    opts,
		logger:  logging.OrDefault(logger),
	}
}

// CachePath returns the cache file this indexer reads and writes, or "" when
// the cache is disabled.
func (i *Indexer) CachePath() string {
	if i.opts.CacheDir == "" {
		return ""
	}
	return cache.Path(i.opts.CacheDir, i.mode, i.opts.Compression)
}

// BuildCorpus discovers the archives under roots and returns their corpus.
// Facts come from the cache when it holds the archive hash and from
// extraction otherwise; the cache is rewritten afterwards. Archives enter the
// corpus in path order whatever their source.
func (i *Indexer) BuildCorpus(ctx context.Context, roots ...string) (*corpus.Corpus, Stats, error) {
	var stats Stats

	// 1. Discover
	archives, err := i.crawler.Discover(ctx, roots...)
	if err != nil {
		return nil, stats, fmt.Errorf("discovery failed: %w", err)
	}
	if len(archives) == 0 {
		return nil, stats, fmt.Errorf("%w under %v", ErrNoArchives, roots)
	}
	stats.Discovered = len(archives)
	i.logger.Info("discovered archives", "count", len(archives))

	// 2. Load cached facts
	facts, err := i.loadCache(crawler.NewRegistry(archives))
	if err != nil {
		return nil, stats, err
	}
	stats.Cached = len(facts)
	metrics.CacheHits.Add(float64(len(facts)))

	// 3. Extract what the cache lacks
	var missing []crawler.Archive
	for _, a := range archives {
		if _, ok := facts[a.Hash]; !ok {
			missing = append(missing, a)
		}
	}
	if len(missing) > 0 {
		i.logger.Info("extracting archives", "count", len(missing))
		skipped, err := i.crawler.Scan(ctx, missing, func(a crawler.Archive, fs []fact.Fact) {
			facts[a.Hash] = fs
			stats.Scanned++
		})
		if err != nil {
			return nil, stats, fmt.Errorf("scan failed: %w", err)
		}
		stats.Skipped = skipped
	}

	// 4. Populate the corpus
	cp := corpus.New(i.logger)
	for _, a := range archives {
		fs, ok := facts[a.Hash]
		if !ok {
			continue
		}
		if _, err := cp.AddJar(a.Hash, a.Path, fs); err != nil {
			return nil, stats, fmt.Errorf("failed to add %s: %w", a.Path, err)
		}
		metrics.ArchivesScanned.Inc()
	}
	metrics.Facts.Add(float64(cp.FactCount()))
	if cp.Len() == 0 {
		return nil, stats, fmt.Errorf("%w: none of %d archives could be read", ErrNoArchives, len(archives))
	}

	// 5. Refresh the cache
	if path := i.CachePath(); path != "" && stats.Scanned > 0 {
		if err := cache.Write(path, cp, i.opts.Compression); err != nil {
			i.logger.Warn("failed to write fact cache", "path", path, "error", err)
		} else {
			i.logger.Debug("fact cache written", "path", path, "archives", cp.Len())
		}
	}

	return cp, stats, nil
}

// loadCache returns the cached facts of registered archives. A corrupt cache
// is discarded with a warning; any other read failure is returned.
func (i *Indexer) loadCache(reg crawler.Registry) (map[string][]fact.Fact, error) {
	facts := make(map[string][]fact.Fact, len(reg))
	path := i.CachePath()
	if path == "" {
		return facts, nil
	}

	n, err := cache.Read(path, i.opts.Compression, reg, i.logger, func(hash string, fs []fact.Fact) error {
		facts[hash] = fs
		return nil
	})
	switch {
	case errors.Is(err, cache.ErrNotFound):
		i.logger.Info("no fact cache, extracting every archive", "path", path)
		return facts, nil
	case errors.Is(err, cache.ErrCorrupt):
		i.logger.Warn("discarding corrupt fact cache", "path", path, "error", err)
		return make(map[string][]fact.Fact, len(reg)), nil
	case err != nil:
		return nil, fmt.Errorf("failed to load fact cache: %w", err)
	}
	i.logger.Info("loaded fact cache", "path", path, "archives", n)
	return facts, nil
}
