package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// SaveNodes upserts code graph nodes.
func (s *SQLiteStore) SaveNodes(ctx context.Context, nodes []*CodeNode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	for _, n := range nodes {
		fnJSON, err := json.Marshal(n.Functions)
		if err != nil {
			return err
		}
		var embedding []byte
		if n.Vector != nil {
			embedding = encodeFloat32s(n.Vector)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO graph_nodes (id, project_id, path, language, kind, name, functions, sample, embedding, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET path=excluded.path, language=excluded.language, kind=excluded.kind,
				name=excluded.name, functions=excluded.functions, sample=excluded.sample,
				embedding=excluded.embedding, updated_at=excluded.updated_at`,
			n.ID, n.ProjectID, n.Path, n.Language, string(n.Kind), n.Name, string(fnJSON), n.Sample, embedding, now, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanNode(row interface {
	Scan(...any) error
}) (*CodeNode, error) {
	var n CodeNode
	var kind, fnJSON string
	var embedding []byte
	var created, updated int64
	if err := row.Scan(&n.ID, &n.ProjectID, &n.Path, &n.Language, &kind, &n.Name, &fnJSON, &n.Sample, &embedding, &created, &updated); err != nil {
		return nil, err
	}
	n.Kind = NodeKind(kind)
	_ = json.Unmarshal([]byte(fnJSON), &n.Functions)
	if len(embedding) > 0 {
		n.Vector = decodeFloat32s(embedding)
	}
	n.CreatedAt, n.UpdatedAt = created, updated
	return &n, nil
}

const nodeColumns = `id, project_id, path, language, kind, name, functions, sample, embedding, created_at, updated_at`

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*CodeNode, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM graph_nodes WHERE id=?`, nodeColumns), id)
	return scanNode(row)
}

func (s *SQLiteStore) GetNodesByPath(ctx context.Context, projectID, path string) ([]*CodeNode, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM graph_nodes WHERE project_id=? AND path=?`, nodeColumns), projectID, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*CodeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteNodesByPath removes every node for a path and cascades to edges
// touching them, per the spec's per-path cascade delete requirement.
func (s *SQLiteStore) DeleteNodesByPath(ctx context.Context, projectID, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM graph_nodes WHERE project_id=? AND path=?`, projectID, path)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	_ = rows.Close()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM graph_edges WHERE source_id=? OR target_id=?`, id, id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_nodes WHERE project_id=? AND path=?`, projectID, path); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveRelationships(ctx context.Context, rels []*CodeRelationship) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, r := range rels {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO graph_edges (id, project_id, source_id, target_id, type, weight, confidence, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET weight=excluded.weight, confidence=excluded.confidence, reason=excluded.reason`,
			r.ID, r.ProjectID, r.SourceID, r.TargetID, string(r.Type), r.Weight, r.Confidence, r.Reason, time.Now().Unix()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetRelationships(ctx context.Context, nodeID string) ([]*CodeRelationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, source_id, target_id, type, weight, confidence, reason, created_at
		FROM graph_edges WHERE source_id=? OR target_id=?`, nodeID, nodeID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*CodeRelationship
	for rows.Next() {
		var r CodeRelationship
		var typ string
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.SourceID, &r.TargetID, &typ, &r.Weight, &r.Confidence, &r.Reason, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Type = RelationshipType(typ)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// SearchGraphNodes performs a brute-force cosine nearest-neighbor scan over a
// project's node vectors. Node counts are orders of magnitude smaller than
// block counts (one per file, roughly), so this avoids standing up a second
// HNSW index purely for graph search.
func (s *SQLiteStore) SearchGraphNodes(ctx context.Context, projectID string, embedding []float32, k int) ([]*CodeNode, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM graph_nodes WHERE project_id=? AND embedding IS NOT NULL`, nodeColumns), projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var candidates []*CodeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		n.Distance = cosineDistance(embedding, n.Vector)
		candidates = append(candidates, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 2
	}
	cos := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	return float32(1 - cos)
}

func (s *SQLiteStore) SaveGraphRAGMetadata(ctx context.Context, meta *GraphRAGMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graphrag_metadata (project_id, last_commit_hash, node_count, edge_count, built_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET last_commit_hash=excluded.last_commit_hash,
			node_count=excluded.node_count, edge_count=excluded.edge_count, built_at=excluded.built_at`,
		meta.ProjectID, meta.LastCommitHash, meta.NodeCount, meta.EdgeCount, meta.BuiltAt)
	return err
}

func (s *SQLiteStore) GetGraphRAGMetadata(ctx context.Context, projectID string) (*GraphRAGMetadata, error) {
	var m GraphRAGMetadata
	m.ProjectID = projectID
	err := s.db.QueryRowContext(ctx, `SELECT last_commit_hash, node_count, edge_count, built_at FROM graphrag_metadata WHERE project_id=?`, projectID).
		Scan(&m.LastCommitHash, &m.NodeCount, &m.EdgeCount, &m.BuiltAt)
	if err == sql.ErrNoRows {
		return &GraphRAGMetadata{ProjectID: projectID}, nil
	}
	return &m, err
}
