// Package cache stores the fact stream of a corpus so repeated runs skip
// archive extraction.
//
// A cache file holds one line per archive: the archive hash followed by
// whitespace-separated FQN and fingerprint pairs.
package cache

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"libscout/internal/corpus"
	"libscout/internal/fact"
	"libscout/internal/logging"
	"libscout/internal/metrics"
)

var (
	// ErrNotFound is returned by Read when the cache file does not exist.
	ErrNotFound = errors.New("cache not found")
	// ErrCorrupt is returned by Read when the stream cannot be decoded.
	ErrCorrupt = errors.New("cache corrupt")
)

const maxLine = 256 << 20

// FileName returns the cache file name for a fingerprint mode.
func FileName(mode string, c Compression) string {
	return "facts-" + mode + ".cache" + c.Suffix()
}

// Path joins dir and the cache file name.
func Path(dir, mode string, c Compression) string {
	return filepath.Join(dir, FileName(mode, c))
}

// Registry resolves archive hashes.
type Registry interface {
	Has(hash string) bool
}

// Write stores every archive of cp. The file is written to a temporary name
// in the same directory and renamed into place.
func Write(path string, cp *corpus.Corpus, c Compression) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".facts-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := writeTo(tmp, cp, c); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

func writeTo(f *os.File, cp *corpus.Corpus, c Compression) error {
	zw, err := c.newWriter(f)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(zw, 1<<16)
	for _, jar := range cp.Jars() {
		bw.WriteString(jar.Hash)
		for _, ft := range cp.Facts(jar) {
			bw.WriteByte(' ')
			bw.WriteString(ft.Fqn)
			bw.WriteByte(' ')
			bw.WriteString(string(ft.Fingerprint))
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write cache: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish cache stream: %w", err)
	}
	return nil
}

// Read streams the records of a cache file to onRecord and returns how many
// were delivered. Records whose hash reg does not know, and malformed lines,
// are logged and skipped. A missing file is ErrNotFound and an undecodable
// stream is ErrCorrupt.
func Read(path string, c Compression, reg Registry, logger *slog.Logger, onRecord func(hash string, facts []fact.Fact) error) (int, error) {
	logger = logging.OrDefault(logger)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open cache: %w", err)
	}
	defer f.Close()

	zr, err := c.newReader(f)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 1<<16), maxLine)
	n, line := 0, 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields)%2 == 0 {
			logger.Warn("skipping malformed cache line", "path", path, "line", line)
			continue
		}
		hash := fields[0]
		if !reg.Has(hash) {
			logger.Warn("skipping cached archive missing from registry", "hash", hash)
			metrics.ArchivesSkipped.WithLabelValues("unknown").Inc()
			continue
		}
		facts := make([]fact.Fact, 0, len(fields)/2)
		for i := 1; i+1 < len(fields); i += 2 {
			facts = append(facts, fact.Fact{Fqn: fields[i], Fingerprint: fact.Fingerprint(fields[i+1])})
		}
		if err := onRecord(hash, facts); err != nil {
			return n, err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return n, nil
}
