package extractor

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"libscout/internal/fact"
	"libscout/internal/logging"
)

// maxEntrySize caps the bytes read from one archive entry.
const maxEntrySize = 64 << 20

// Extractor reads archives and feeds their entries to a Fingerprinter.
type Extractor struct {
	fingerprinter Fingerprinter
	logger        *slog.Logger
}

// NewExtractor creates an extractor for a fingerprint mode.
func NewExtractor(mode string, logger *slog.Logger) (*Extractor, error) {
	fp, err := NewFingerprinter(mode)
	if err != nil {
		return nil, err
	}
	return &Extractor{fingerprinter: fp, logger: logging.OrDefault(logger)}, nil
}

// Mode returns the fingerprint mode.
func (e *Extractor) Mode() string { return e.fingerprinter.Mode() }

// ExtractArchive returns the facts of every accepted entry of the archive at
// archivePath. Entries that fail to read or fingerprint are logged and
// skipped; failing to open the archive is an error.
func (e *Extractor) ExtractArchive(ctx context.Context, archivePath string) ([]fact.Fact, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	var facts []fact.Fact
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() || skipEntry(f.Name) || !e.fingerprinter.Accepts(f.Name) {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			e.logger.Warn("skipping unreadable entry", "archive", archivePath, "entry", f.Name, "error", err)
			continue
		}
		entryFacts, err := e.fingerprinter.Fingerprint(f.Name, data)
		if err != nil {
			e.logger.Warn("skipping entry", "archive", archivePath, "entry", f.Name, "error", err)
			continue
		}
		facts = append(facts, entryFacts...)
	}
	return facts, nil
}

// skipEntry drops metadata entries that never describe a library class.
func skipEntry(name string) bool {
	if strings.HasPrefix(name, "META-INF/") {
		return true
	}
	base := path.Base(name)
	return strings.HasPrefix(base, "module-info.") || strings.HasPrefix(base, "package-info.")
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxEntrySize {
		return nil, fmt.Errorf("entry too large: %d bytes", f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxEntrySize))
}
