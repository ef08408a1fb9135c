package storage

import (
	"context"

	"libscout/internal/graph"
)

// GraphStore persists the output graph of a run.
type GraphStore interface {
	// SaveGraph replaces the stored graph with g.
	SaveGraph(ctx context.Context, g *graph.Graph) error

	// LoadGraph reads the whole stored graph.
	LoadGraph(ctx context.Context) (*graph.Graph, error)

	// GetNode retrieves a node by its ID.
	GetNode(ctx context.Context, id string) (*graph.Node, error)

	// FindNodesByKind retrieves all nodes of one kind, ordered by ID.
	FindNodesByKind(ctx context.Context, kind graph.NodeKind) ([]*graph.Node, error)

	// SetMeta records run metadata alongside the graph.
	SetMeta(ctx context.Context, meta map[string]string) error

	// Meta returns every recorded metadata entry.
	Meta(ctx context.Context) (map[string]string, error)

	Close() error
}
