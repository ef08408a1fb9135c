// Package pipeline runs the stages of a libscout analysis in order: corpus,
// identify, merge, build, graph and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"libscout/internal/cache"
	"libscout/internal/cluster"
	"libscout/internal/component"
	"libscout/internal/config"
	"libscout/internal/corpus"
	"libscout/internal/crawler"
	"libscout/internal/extractor"
	"libscout/internal/graph"
	"libscout/internal/index"
	"libscout/internal/logging"
	"libscout/internal/metrics"
	"libscout/internal/storage"
)

// ErrEmptyCorpus is returned when no archive could be loaded.
var ErrEmptyCorpus = errors.New("empty corpus")

// Result is everything one run produced.
type Result struct {
	Corpus     *corpus.Corpus
	Index      index.Stats
	Clusters   *cluster.Collection
	Identified int
	Merge      cluster.MergeStats
	Repository *component.Repository
	Graph      *graph.Graph
}

type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logging.OrDefault(logger)}
}

// Scan builds the corpus of roots (the configured roots when none are given)
// and refreshes the fact cache.
func (p *Pipeline) Scan(ctx context.Context, roots ...string) (*corpus.Corpus, index.Stats, error) {
	start := time.Now()
	defer metrics.ObserveStage("corpus", start)

	if len(roots) == 0 {
		roots = p.cfg.Corpus.Roots
	}
	if len(roots) == 0 {
		return nil, index.Stats{}, fmt.Errorf("%w: no archive roots configured", ErrEmptyCorpus)
	}

	ext, err := extractor.NewExtractor(p.cfg.Corpus.FingerprintMode, p.logger)
	if err != nil {
		return nil, index.Stats{}, fmt.Errorf("failed to create extractor: %w", err)
	}
	opts := index.Options{Compression: p.cfg.Compression()}
	if p.cfg.Cache.Enabled {
		opts.CacheDir = p.cfg.Cache.Dir
	}
	idx := index.NewIndexer(crawler.NewCrawler(ext, p.cfg.Corpus.Workers, p.logger), ext.Mode(), opts, p.logger)

	cp, stats, err := idx.BuildCorpus(ctx, roots...)
	if errors.Is(err, index.ErrNoArchives) {
		return nil, stats, fmt.Errorf("%w: %v", ErrEmptyCorpus, err)
	}
	if err != nil {
		return nil, stats, err
	}
	p.logger.Info("corpus ready",
		"archives", cp.Len(),
		"facts", cp.FactCount(),
		"cached", stats.Cached,
		"extracted", stats.Scanned,
		"skipped", stats.Skipped,
		"elapsed", time.Since(start))
	return cp, stats, nil
}

// Run executes every stage and persists the graph to the configured database.
func (p *Pipeline) Run(ctx context.Context, roots ...string) (*Result, error) {
	cp, stats, err := p.Scan(ctx, roots...)
	if err != nil {
		return nil, err
	}

	res, err := p.AnalyzeCorpus(cp)
	if err != nil {
		return nil, err
	}
	res.Index = stats

	if err := p.persistStage(ctx, res); err != nil {
		return nil, err
	}

	if path := p.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			p.logger.Warn("metrics not written", "path", path, "error", err)
		}
	}
	return res, nil
}

// AnalyzeCorpus runs the in-memory stages over an already built corpus.
func (p *Pipeline) AnalyzeCorpus(cp *corpus.Corpus) (*Result, error) {
	if cp == nil || cp.Len() == 0 {
		return nil, ErrEmptyCorpus
	}
	res := &Result{Corpus: cp}

	// 1. Identify
	start := time.Now()
	id, err := cluster.NewIdentifier(cp, cluster.Options{
		Threshold:     p.cfg.Clustering.CompatibilityThreshold,
		LRUSize:       p.cfg.Clustering.LRUSize,
		ProgressEvery: p.cfg.ProgressEvery,
		Logger:        p.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create identifier: %w", err)
	}
	res.Clusters = id.Identify()
	res.Identified = res.Clusters.Len()
	metrics.ObserveStage("identify", start)
	p.logger.Debug("stage done", "stage", "identify", "elapsed", time.Since(start))

	// 2. Merge
	start = time.Now()
	res.Merge = cluster.NewMerger(p.logger, p.cfg.ProgressEvery).Merge(res.Clusters)
	metrics.ObserveStage("merge", start)
	p.logger.Debug("stage done", "stage", "merge", "elapsed", time.Since(start))

	// 3. Build
	start = time.Now()
	res.Repository = component.NewBuilder(p.logger, p.cfg.ProgressEvery).Build(res.Clusters)
	metrics.ObserveStage("build", start)
	p.logger.Debug("stage done", "stage", "build", "elapsed", time.Since(start))

	// 4. Graph
	start = time.Now()
	res.Graph = graph.FromRepository(res.Repository)
	metrics.ObserveStage("graph", start)
	return res, nil
}

func (p *Pipeline) persistStage(ctx context.Context, res *Result) error {
	start := time.Now()
	defer metrics.ObserveStage("persist", start)

	store, err := storage.NewSQLiteStore(p.cfg.Storage.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	if err := store.SaveGraph(ctx, res.Graph); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	if err := store.SetMeta(ctx, p.meta(res)); err != nil {
		return fmt.Errorf("failed to save run metadata: %w", err)
	}
	p.logger.Info("graph saved",
		"db", p.cfg.Storage.DB,
		"nodes", len(res.Graph.Nodes),
		"edges", len(res.Graph.Edges))
	return nil
}

func (p *Pipeline) meta(res *Result) map[string]string {
	s := res.Repository.Stats()
	return map[string]string{
		"fingerprint_mode":        p.cfg.Corpus.FingerprintMode,
		"compatibility_threshold": strconv.FormatFloat(p.cfg.Clustering.CompatibilityThreshold, 'g', -1, 64),
		"archives":                strconv.Itoa(res.Corpus.Len()),
		"facts":                   strconv.Itoa(res.Corpus.FactCount()),
		"clusters":                strconv.Itoa(res.Merge.Remaining),
		"libraries":               strconv.Itoa(len(res.Repository.Libraries())),
		"versions":                strconv.Itoa(s.Versions),
		"analyzed_at":             time.Now().UTC().Format(time.RFC3339),
	}
}

// CachePath is the fact cache a run with cfg uses, or "" when disabled.
func CachePath(cfg *config.Config) string {
	if !cfg.Cache.Enabled {
		return ""
	}
	return cache.Path(cfg.Cache.Dir, cfg.Corpus.FingerprintMode, cfg.Compression())
}
