package extractor

import (
	"fmt"

	"libscout/internal/fact"
)

// Fingerprinter turns one archive entry into class facts. Implementations
// must be safe for concurrent use: archives are extracted on a worker pool.
type Fingerprinter interface {
	// Mode names the fingerprint flavour; it keys the fact cache.
	Mode() string
	// Accepts reports whether an archive entry should be fingerprinted.
	Accepts(entryName string) bool
	// Fingerprint returns the facts of one entry.
	Fingerprint(entryName string, data []byte) ([]fact.Fact, error)
}

// Fingerprint modes.
const (
	ModeBytes     = "bytes"
	ModeStructure = "structure"
)

// NewFingerprinter returns the fingerprinter for mode.
func NewFingerprinter(mode string) (Fingerprinter, error) {
	switch mode {
	case ModeBytes:
		return &BytesFingerprinter{}, nil
	case ModeStructure:
		return &StructureFingerprinter{}, nil
	default:
		return nil, fmt.Errorf("unsupported fingerprint mode: %s", mode)
	}
}
