package storage

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"libscout/internal/codec"
	"libscout/internal/graph"
)

// Format is an export encoding of the output graph.
type Format string

const (
	FormatCBOR Format = "cbor"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses an export format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCBOR, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown export format: %q", s)
}

// WriteSnapshot writes g to w in a deterministic encoding: the same graph
// always yields the same bytes.
func WriteSnapshot(w io.Writer, g *graph.Graph, format Format) error {
	snap := g.Snapshot()
	switch format {
	case FormatCBOR:
		if err := codec.NewEncoder(w).Encode(snap); err != nil {
			return fmt.Errorf("failed to encode cbor snapshot: %w", err)
		}
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode json snapshot: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode yaml snapshot: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format: %q", format)
	}
	return nil
}

// ReadSnapshot decodes a graph written by WriteSnapshot.
func ReadSnapshot(r io.Reader, format Format) (*graph.Graph, error) {
	var snap graph.Snapshot
	var err error
	switch format {
	case FormatCBOR:
		err = codec.NewDecoder(r).Decode(&snap)
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&snap)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&snap)
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s snapshot: %w", format, err)
	}
	return graph.FromSnapshot(snap)
}
