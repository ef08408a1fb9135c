package extractor

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"

	"libscout/internal/fact"
)

// BytesFingerprinter fingerprints compiled classes by their exact bytes.
type BytesFingerprinter struct{}

func (b *BytesFingerprinter) Mode() string { return ModeBytes }

func (b *BytesFingerprinter) Accepts(entryName string) bool {
	return strings.HasSuffix(entryName, ".class")
}

// Fingerprint names the class after its entry path; the fingerprint is the
// hex BLAKE3 digest of the class file.
func (b *BytesFingerprinter) Fingerprint(entryName string, data []byte) ([]fact.Fact, error) {
	sum := blake3.Sum256(data)
	return []fact.Fact{{
		Fqn:         fact.NormalizeFqn(entryName),
		Fingerprint: fact.Fingerprint(hex.EncodeToString(sum[:])),
	}}, nil
}
