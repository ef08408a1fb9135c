// Package fact holds the corpus-wide fact model: fingerprints, the FQN trie
// and the per-FQN version maps.
package fact

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Fingerprint identifies one structural version of a class. It is opaque to
// the clustering code: two fingerprints are equal iff they denote the same
// structural signature.
type Fingerprint string

// Valid reports whether f can be stored in the fact cache: non-empty and free
// of whitespace.
func (f Fingerprint) Valid() bool {
	if f == "" {
		return false
	}
	return strings.IndexFunc(string(f), unicode.IsSpace) < 0
}

// Fact is one observation from the extractor: a class with a fingerprint.
type Fact struct {
	Fqn         string
	Fingerprint Fingerprint
}

// FqnVersion is one FQN observed at one fingerprint.
type FqnVersion struct {
	Node        NodeID
	Fingerprint Fingerprint
}

// Compare orders versions by node, then fingerprint.
func (v FqnVersion) Compare(o FqnVersion) int {
	if c := cmp.Compare(v.Node, o.Node); c != 0 {
		return c
	}
	return strings.Compare(string(v.Fingerprint), string(o.Fingerprint))
}

// SortVersions sorts vs in place.
func SortVersions(vs []FqnVersion) {
	slices.SortFunc(vs, FqnVersion.Compare)
}

// VersionKey encodes a sorted version list as a map key.
func VersionKey(vs []FqnVersion) string {
	var b strings.Builder
	for _, v := range vs {
		b.WriteString(strconv.FormatInt(int64(v.Node), 36))
		b.WriteByte('=')
		b.WriteString(string(v.Fingerprint))
		b.WriteByte(' ')
	}
	return b.String()
}

// NormalizeFqn turns a raw class name into a dotted FQN. It accepts dotted
// names and '/'-delimited class-file paths, with or without the ".class"
// suffix.
func NormalizeFqn(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".class")
	s = strings.TrimPrefix(s, "/")
	s = strings.ReplaceAll(s, "/", ".")
	return strings.Trim(s, ".")
}
