package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"libscout/internal/fact"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// punctRe removes the spaces formatting tools disagree on.
var punctRe = regexp.MustCompile(`\s*([(),<>\[\]{};=&|?])\s*`)

// signatureDigest derives a deterministic fingerprint from a type's kind,
// canonical header and sorted member signatures.
func signatureDigest(kind, header string, members []string) fact.Fingerprint {
	parts := make([]string, 0, len(members)+2)
	parts = append(parts, kind, header)
	parts = append(parts, members...)
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return fact.Fingerprint(hex.EncodeToString(sum[:16]))
}

func canonicalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	return punctRe.ReplaceAllString(s, "$1")
}
