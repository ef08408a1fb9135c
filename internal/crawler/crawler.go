package crawler

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"libscout/internal/extractor"
	"libscout/internal/fact"
	"libscout/internal/logging"
	"libscout/internal/metrics"
)

// Archive is one discovered archive file.
type Archive struct {
	Path string
	Hash string
	Size int64
}

// Registry resolves archive hashes to discovered archives.
type Registry map[string]Archive

// NewRegistry indexes archives by hash.
func NewRegistry(archives []Archive) Registry {
	r := make(Registry, len(archives))
	for _, a := range archives {
		r[a.Hash] = a
	}
	return r
}

// Has reports whether hash belongs to a discovered archive.
func (r Registry) Has(hash string) bool {
	_, ok := r[hash]
	return ok
}

// Crawler finds archives under a set of roots and extracts them concurrently.
type Crawler struct {
	extract func(context.Context, string) ([]fact.Fact, error)
	ignored []string
	workers int
	logger  *slog.Logger
}

// NewCrawler creates a new crawler instance. workers <= 0 means one worker
// per CPU.
func NewCrawler(ext *extractor.Extractor, workers int, logger *slog.Logger) *Crawler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Crawler{
		extract: ext.ExtractArchive,
		ignored: []string{".git", ".libscout", "node_modules", ".gradle", ".idea"},
		workers: workers,
		logger:  logging.OrDefault(logger),
	}
}

// Discover walks roots for .jar files, which may also be archive paths
// themselves. Archives are hashed and returned sorted by path; when two files
// share a hash the first path wins. Files that cannot be hashed are logged and
// dropped; only a root that cannot be walked is an error.
func (c *Crawler) Discover(ctx context.Context, roots ...string) ([]Archive, error) {
	var paths []string
	for _, root := range roots {
		found, err := c.walk(root)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	slices.Sort(paths)
	paths = slices.Compact(paths)

	archives := make([]Archive, len(paths))
	hashErrs := make([]error, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hash, size, err := HashFile(p)
			if err != nil {
				hashErrs[i] = err
				return nil
			}
			archives[i] = Archive{Path: p, Hash: hash, Size: size}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(archives))
	out := archives[:0]
	for i, a := range archives {
		if err := hashErrs[i]; err != nil {
			c.logger.Warn("skipping unreadable archive", "path", paths[i], "error", err)
			metrics.ArchivesSkipped.WithLabelValues("unreadable").Inc()
			continue
		}
		if first, dup := seen[a.Hash]; dup {
			c.logger.Warn("duplicate archive", "path", a.Path, "same_as", first)
			metrics.ArchivesSkipped.WithLabelValues("duplicate").Inc()
			continue
		}
		seen[a.Hash] = a.Path
		out = append(out, a)
	}
	return out, nil
}

func (c *Crawler) walk(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip ignored directories
		if d.IsDir() {
			if slices.Contains(c.ignored, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.EqualFold(filepath.Ext(d.Name()), ".jar") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return out, nil
}

// Scan extracts the facts of every archive on a bounded worker pool and hands
// them to onArchive one at a time, in input order. Unreadable archives are
// logged and skipped; it returns how many were skipped. Scan returns only after
// every worker has finished, including when ctx is cancelled.
func (c *Crawler) Scan(ctx context.Context, archives []Archive, onArchive func(Archive, []fact.Fact)) (int, error) {
	type result struct {
		facts []fact.Fact
		err   error
	}
	slots := make([]chan result, len(archives))
	for i := range slots {
		slots[i] = make(chan result, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	spawned := make(chan struct{})
	go func() {
		defer close(spawned)
		for i, a := range archives {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					slots[i] <- result{err: err}
					return err
				}
				facts, err := c.extract(gctx, a.Path)
				slots[i] <- result{facts: facts, err: err}
				return nil
			})
		}
	}()

	// g.Go must not race with g.Wait, so wait for the spawner first.
	drain := func() error {
		<-spawned
		return g.Wait()
	}

	skipped := 0
	for i, a := range archives {
		var res result
		select {
		case res = <-slots[i]:
		case <-ctx.Done():
			_ = drain()
			return skipped, ctx.Err()
		}
		if res.err != nil {
			if ctx.Err() != nil {
				_ = drain()
				return skipped, ctx.Err()
			}
			c.logger.Warn("skipping unreadable archive", "path", a.Path, "error", res.err)
			metrics.ArchivesSkipped.WithLabelValues("unreadable").Inc()
			skipped++
			continue
		}
		onArchive(a, res.facts)
	}
	return skipped, drain()
}

// HashFile returns the hex BLAKE3 digest and size of a file, streamed.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
