package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"libscout/internal/graph"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNodeNotFound is returned by GetNode for an unknown ID.
var ErrNodeNotFound = errors.New("node not found")

type SQLiteStore struct {
	db *sql.DB
}

var _ GraphStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT,
			attrs JSON
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			from_id TEXT,
			to_id TEXT,
			kind TEXT,
			PRIMARY KEY (from_id, to_id, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);`,
		`CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveGraph replaces the stored nodes and edges with those of g in one
// transaction.
func (s *SQLiteStore) SaveGraph(ctx context.Context, g *graph.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Clear the previous snapshot
	for _, q := range []string{"DELETE FROM edges", "DELETE FROM nodes"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to clear graph: %w", err)
		}
	}

	// 2. Save Nodes
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes (id, kind, name, attrs) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, node := range g.Nodes {
		attrs, err := json.Marshal(node.Attrs)
		if err != nil {
			return fmt.Errorf("failed to encode attrs of %s: %w", node.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, node.ID, string(node.Kind), node.Name, attrs); err != nil {
			return fmt.Errorf("failed to save node %s: %w", node.ID, err)
		}
	}

	// 3. Save Edges
	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (from_id, to_id, kind) VALUES (?, ?, ?)
		ON CONFLICT(from_id, to_id, kind) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, edge := range g.Edges {
		if _, err := edgeStmt.ExecContext(ctx, edge.From, edge.To, string(edge.Kind)); err != nil {
			return fmt.Errorf("failed to save edge %s -> %s: %w", edge.From, edge.To, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	g := graph.NewGraph()

	// 1. Load Nodes
	nodes, err := s.queryNodes(ctx, "SELECT id, kind, name, attrs FROM nodes ORDER BY id")
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		g.AddNode(n)
	}

	// 2. Load Edges
	edgeRows, err := s.db.QueryContext(ctx, "SELECT from_id, to_id, kind FROM edges ORDER BY from_id, kind, to_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var edge graph.Edge
		if err := edgeRows.Scan(&edge.From, &edge.To, &edge.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		g.Edges = append(g.Edges, edge)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}

	// Rebuild endpoint indexes for lookups
	g.RebuildIndices()
	return g, nil
}

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	nodes, err := s.queryNodes(ctx, "SELECT id, kind, name, attrs FROM nodes WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return nodes[0], nil
}

func (s *SQLiteStore) FindNodesByKind(ctx context.Context, kind graph.NodeKind) ([]*graph.Node, error) {
	return s.queryNodes(ctx, "SELECT id, kind, name, attrs FROM nodes WHERE kind = ? ORDER BY id", string(kind))
}

func (s *SQLiteStore) queryNodes(ctx context.Context, query string, args ...any) ([]*graph.Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*graph.Node
	for rows.Next() {
		var n graph.Node
		var attrs []byte
		if err := rows.Scan(&n.ID, &n.Kind, &n.Name, &attrs); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &n.Attrs); err != nil {
				return nil, fmt.Errorf("failed to decode attrs of %s: %w", n.ID, err)
			}
		}
		nodes = append(nodes, &n)
	}
	return nodes, rows.Err()
}

// SetMeta upserts metadata entries.
func (s *SQLiteStore) SetMeta(ctx context.Context, meta map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for k, v := range meta {
		if _, err := stmt.ExecContext(ctx, k, v); err != nil {
			return fmt.Errorf("failed to save meta %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Meta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("failed to query meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}
